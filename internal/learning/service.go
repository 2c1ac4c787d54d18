// Package learning records interaction feedback for future model improvement.
// The service is intentionally a stub: interactions are logged, nothing is
// persisted and no training happens.
package learning

import "log"

// Service learns from user interactions.
type Service struct{}

// NewService creates a learning service.
func NewService() *Service {
	return &Service{}
}

// LearnFromChat records a chat interaction with a user rating (1..5).
func (s *Service) LearnFromChat(userQuestion, aiResponse string, rating int) {
	log.Printf("Learning from chat: rating=%d question_len=%d response_len=%d",
		rating, len(userQuestion), len(aiResponse))
}

// AnalyzeCodeExecution records the outcome of a code execution.
func (s *Service) AnalyzeCodeExecution(code, language string, success bool, executionTime float64, errMsg string) {
	log.Printf("Analyzing code execution: language=%s success=%v time=%.3fs error=%q",
		language, success, executionTime, errMsg)
}

// Stats returns learning statistics.
func (s *Service) Stats() map[string]any {
	return map[string]any{"message": "Learning statistics are not implemented yet."}
}

// CodeSuggestions returns code suggestions based on past learning.
func (s *Service) CodeSuggestions(code, language string) []string {
	return []string{}
}

// LanguageRecommendations returns language usage recommendations.
func (s *Service) LanguageRecommendations() []string {
	return []string{}
}
