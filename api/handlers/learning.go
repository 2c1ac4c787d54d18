package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/coding-agent/backend/internal/learning"
	"github.com/coding-agent/backend/internal/model"
)

// LearningHandler handles the learning feedback endpoints.
type LearningHandler struct {
	learning *learning.Service
}

// NewLearningHandler creates a new LearningHandler.
func NewLearningHandler(learningSvc *learning.Service) *LearningHandler {
	return &LearningHandler{learning: learningSvc}
}

// Stats handles GET /api/learning/stats.
func (h *LearningHandler) Stats(c *gin.Context) {
	if h.learning == nil {
		sendError(c, http.StatusServiceUnavailable, "LEARNING_UNAVAILABLE", "Learning service is not available")
		return
	}
	c.JSON(http.StatusOK, h.learning.Stats())
}

// SuggestionsRequest represents the request body for code suggestions.
type SuggestionsRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// Suggestions handles POST /api/learning/suggestions.
func (h *LearningHandler) Suggestions(c *gin.Context) {
	if h.learning == nil {
		c.JSON(http.StatusOK, gin.H{
			"suggestions": []string{},
			"error":       "Learning service is not available",
		})
		return
	}

	var req SuggestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"suggestions": []string{},
			"error":       "Invalid request body",
		})
		return
	}

	language := req.Language
	if language == "" {
		language = model.DefaultLanguage
	}

	c.JSON(http.StatusOK, gin.H{
		"suggestions": h.learning.CodeSuggestions(req.Code, language),
		"language":    language,
	})
}

// FeedbackRequest represents the request body for chat feedback.
type FeedbackRequest struct {
	UserQuestion string `json:"user_question"`
	AIResponse   string `json:"ai_response"`
	Rating       *int   `json:"rating"`
}

// Feedback handles POST /api/learning/feedback.
func (h *LearningHandler) Feedback(c *gin.Context) {
	if h.learning == nil {
		sendError(c, http.StatusServiceUnavailable, "LEARNING_UNAVAILABLE", "Learning service is not available")
		return
	}

	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	rating := 3
	if req.Rating != nil {
		rating = *req.Rating
	}
	if rating < 1 || rating > 5 {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Rating must be between 1 and 5")
		return
	}

	h.learning.LearnFromChat(req.UserQuestion, req.AIResponse, rating)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Feedback recorded",
	})
}

// Languages handles GET /api/learning/languages.
func (h *LearningHandler) Languages(c *gin.Context) {
	if h.learning == nil {
		c.JSON(http.StatusOK, gin.H{
			"recommendations": []string{},
			"error":           "Learning service is not available",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"recommendations": h.learning.LanguageRecommendations(),
	})
}

// RegisterRoutes registers the learning handler routes on a Gin router group.
func (h *LearningHandler) RegisterRoutes(rg *gin.RouterGroup) {
	lg := rg.Group("/learning")
	{
		lg.GET("/stats", h.Stats)
		lg.POST("/suggestions", h.Suggestions)
		lg.POST("/feedback", h.Feedback)
		lg.GET("/languages", h.Languages)
	}
}
