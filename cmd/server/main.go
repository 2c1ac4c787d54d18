package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/coding-agent/backend/api/handlers"
	"github.com/coding-agent/backend/internal/ai"
	"github.com/coding-agent/backend/internal/config"
	"github.com/coding-agent/backend/internal/db"
	"github.com/coding-agent/backend/internal/executor"
	"github.com/coding-agent/backend/internal/learning"
	"github.com/coding-agent/backend/internal/repository"
	"github.com/coding-agent/backend/internal/ws"
)

func main() {
	cfg := config.Load()
	for _, issue := range cfg.Validate() {
		log.Printf("Config warning: %s", issue)
	}

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	// Initialize database
	database, err := db.InitDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.CloseDB()

	executionRepo := repository.NewExecutionRepository(database)

	// Initialize collaborators; a missing one degrades the affected
	// endpoints instead of refusing to start.
	var aiSvc handlers.AIService
	if cfg.AIAvailable() {
		gemini, err := ai.New(cfg.GeminiAPIKey, cfg.GeminiModel,
			ai.WithCodeModel(cfg.GeminiCodeModel),
			ai.WithDefaults(ai.Options{
				Temperature: cfg.GeminiTemperature,
				MaxTokens:   cfg.GeminiMaxTokens,
			}))
		if err != nil {
			log.Printf("Failed to initialize AI service: %v", err)
		} else {
			aiSvc = gemini
		}
	} else {
		log.Printf("GEMINI_API_KEY not set, AI endpoints disabled")
	}

	var runner executor.Runner
	if cfg.CodeExecutionEnabled {
		runner = executor.NewSubprocess(cfg.PythonBin,
			executor.WithTimeout(cfg.CodeExecutionTimeout),
			executor.WithMaxOutput(cfg.MaxOutputLength))
	} else {
		log.Printf("Code execution disabled by configuration")
	}

	learningSvc := learning.NewService()

	// Streaming core
	registry := ws.NewRegistry(ws.NewRateLimiter(cfg.ExecutionCooldown))
	defer registry.Close()

	controller := ws.NewController(registry, runner, cfg.CodeExecutionEnabled)
	controller.SetRecorder(executionRepo)
	wsHandler := ws.NewHandler(registry, controller)

	// Handlers
	apiHandler := handlers.NewAPIHandler(aiSvc, runner, learningSvc, executionRepo)
	learningHandler := handlers.NewLearningHandler(learningSvc)
	webSocketHandler := handlers.NewWebSocketHandler(wsHandler)

	// Router
	r := gin.Default()
	r.Use(corsMiddleware(cfg.AllowedOrigins))

	api := r.Group("/api")
	{
		apiHandler.RegisterRoutes(api)
		learningHandler.RegisterRoutes(api)
	}
	webSocketHandler.RegisterRoutes(r)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down server...")
		registry.Close()
		db.CloseDB()
		os.Exit(0)
	}()

	log.Printf("Starting server on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// corsMiddleware returns a CORS middleware allowing the configured origins.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowed[origin] || allowed["*"] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
