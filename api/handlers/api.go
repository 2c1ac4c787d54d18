package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/coding-agent/backend/internal/ai"
	"github.com/coding-agent/backend/internal/executor"
	"github.com/coding-agent/backend/internal/learning"
	"github.com/coding-agent/backend/internal/model"
	"github.com/coding-agent/backend/internal/repository"
)

// AIService is the surface of the text-generation collaborator the API uses.
type AIService interface {
	GenerateResponse(ctx context.Context, userMessage string, history []ai.Message) (string, error)
	AnalyzeCode(ctx context.Context, code string) (string, error)
	GenerateCodeAndTests(ctx context.Context, task string) (code, tests string, err error)
}

// APIHandler handles the chat, execution and analysis endpoints.
// Any collaborator may be nil; the affected endpoints then answer 503.
type APIHandler struct {
	ai         AIService
	runner     executor.Runner
	learning   *learning.Service
	executions *repository.ExecutionRepository
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(aiSvc AIService, runner executor.Runner, learningSvc *learning.Service, executions *repository.ExecutionRepository) *APIHandler {
	return &APIHandler{
		ai:         aiSvc,
		runner:     runner,
		learning:   learningSvc,
		executions: executions,
	}
}

// ChatRequest represents the request body for the chat endpoint.
type ChatRequest struct {
	Message string       `json:"message"`
	History []ai.Message `json:"history"`
}

// Chat handles POST /api/chat - generates an AI reply for a chat message.
func (h *APIHandler) Chat(c *gin.Context) {
	if h.ai == nil {
		sendError(c, http.StatusServiceUnavailable, "AI_UNAVAILABLE", "AI service is not available, check the configuration")
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Message must not be empty")
		return
	}

	response, err := h.ai.GenerateResponse(c.Request.Context(), req.Message, req.History)
	if err != nil {
		log.Printf("Chat generation failed: %v", err)
		sendError(c, http.StatusInternalServerError, "AI_ERROR", "An error occurred, please try again")
		return
	}

	// Implicit feedback from a plain chat turn defaults to a neutral rating.
	if h.learning != nil {
		h.learning.LearnFromChat(req.Message, response, 3)
	}

	c.JSON(http.StatusOK, gin.H{
		"response":  response,
		"timestamp": unixNow(),
	})
}

// Execute handles POST /api/execute - runs code synchronously.
// Error replies keep the ExecutionResult shape so clients can treat every
// outcome uniformly.
func (h *APIHandler) Execute(c *gin.Context) {
	if h.runner == nil {
		c.JSON(http.StatusServiceUnavailable, model.ExecutionResult{
			Success: false,
			Error:   model.ErrExecutionDisabled.Error(),
		})
		return
	}

	var req model.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ExecutionResult{
			Success: false,
			Error:   "Invalid request body: " + err.Error(),
		})
		return
	}

	if strings.TrimSpace(req.Code) == "" {
		c.JSON(http.StatusBadRequest, model.ExecutionResult{
			Success: false,
			Error:   model.ErrCodeEmpty.Error(),
		})
		return
	}

	language := req.Language
	if language == "" {
		language = model.DefaultLanguage
	}

	result := h.runner.Execute(c.Request.Context(), req.Code, language)

	if !result.FromCache {
		if h.learning != nil {
			errMsg := ""
			if !result.Success {
				errMsg = result.Error
			}
			h.learning.AnalyzeCodeExecution(req.Code, language, result.Success, result.ExecutionTime, errMsg)
		}
		h.recordExecution(c.Request.Context(), language, result)
	}

	c.JSON(http.StatusOK, result)
}

// Analyze handles POST /api/analyze - asks the AI for code feedback.
func (h *APIHandler) Analyze(c *gin.Context) {
	if h.ai == nil {
		sendError(c, http.StatusServiceUnavailable, "AI_UNAVAILABLE", "AI service is not available, check the configuration")
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	if strings.TrimSpace(req.Code) == "" {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", model.ErrCodeEmpty.Error())
		return
	}

	analysis, err := h.ai.AnalyzeCode(c.Request.Context(), req.Code)
	if err != nil {
		log.Printf("Code analysis failed: %v", err)
		sendError(c, http.StatusInternalServerError, "AI_ERROR", "An error occurred during code analysis")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"analysis":  analysis,
		"timestamp": unixNow(),
	})
}

// Generate handles POST /api/generate - generates code and tests for a task.
func (h *APIHandler) Generate(c *gin.Context) {
	if h.ai == nil {
		sendError(c, http.StatusServiceUnavailable, "AI_UNAVAILABLE", "AI service is not available, check the configuration")
		return
	}

	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	if strings.TrimSpace(req.Prompt) == "" {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Prompt is required")
		return
	}

	code, tests, err := h.ai.GenerateCodeAndTests(c.Request.Context(), req.Prompt)
	if err != nil {
		log.Printf("Code generation failed: %v", err)
		sendError(c, http.StatusInternalServerError, "AI_ERROR", "Could not generate code and tests")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":   code,
		"tests":  tests,
		"prompt": req.Prompt,
	})
}

// ListExecutions handles GET /api/executions - returns recent execution history.
func (h *APIHandler) ListExecutions(c *gin.Context) {
	if h.executions == nil {
		sendError(c, http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "Execution history is not available")
		return
	}

	records, err := h.executions.ListRecent(c.Request.Context(), 50)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list executions: "+err.Error())
		return
	}

	if records == nil {
		records = []*model.ExecutionRecord{}
	}
	c.JSON(http.StatusOK, records)
}

// Health handles GET /api/health - reports per-service availability.
func (h *APIHandler) Health(c *gin.Context) {
	availability := func(ok bool) string {
		if ok {
			return "available"
		}
		return "unavailable"
	}

	status := gin.H{
		"status": "healthy",
		"services": gin.H{
			"ai_service":       availability(h.ai != nil),
			"code_service":     availability(h.runner != nil),
			"learning_service": availability(h.learning != nil),
		},
	}

	if h.ai == nil && h.runner == nil {
		status["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}

	c.JSON(http.StatusOK, status)
}

// Status handles GET /api/status - confirms the API is loaded.
func (h *APIHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"message": "API loaded successfully",
	})
}

// recordExecution stores a synchronous run in the history, best-effort.
func (h *APIHandler) recordExecution(ctx context.Context, language string, result model.ExecutionResult) {
	if h.executions == nil {
		return
	}

	rec := model.ExecutionRecord{
		ID:            uuid.NewString(),
		Language:      language,
		Success:       result.Success,
		ExecutionTime: result.ExecutionTime,
		CreatedAt:     time.Now(),
	}
	if !result.Success {
		rec.Error = result.Error
	}

	if err := h.executions.Record(ctx, rec); err != nil {
		log.Printf("Failed to record execution: %v", err)
	}
}

// RegisterRoutes registers the API handler routes on a Gin router group.
func (h *APIHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/chat", h.Chat)
	rg.POST("/execute", h.Execute)
	rg.POST("/analyze", h.Analyze)
	rg.POST("/generate", h.Generate)
	rg.GET("/executions", h.ListExecutions)
	rg.GET("/health", h.Health)
	rg.GET("/status", h.Status)
}
