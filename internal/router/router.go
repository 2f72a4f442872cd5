package router

import (
	"net/http"
	"time"

	"github.com/exambuddy/exambuddy-backend/internal/config"
	"github.com/exambuddy/exambuddy-backend/internal/handler"
	"github.com/exambuddy/exambuddy-backend/internal/middleware"
	"github.com/exambuddy/exambuddy-backend/internal/response"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam    *handler.ExamHandler
	Attempt *handler.AttemptHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Starting a session is the expensive operation (random selection hits
	// the question bank); keep it rate limited per IP.
	startLimiter := middleware.NewRateLimiter(30, time.Minute)

	api := router.Group("/api/v1")
	api.Use(middleware.RequireCandidateJWT(cfg.JWTSecret))
	{
		api.POST("/exams/start", startLimiter.Middleware(), handlers.Exam.StartExam)
		api.POST("/exams/:session_id/present", handlers.Exam.RecordPresentation)
		api.POST("/exams/:session_id/answers", handlers.Exam.SubmitAnswer)
		api.GET("/exams/:session_id/review", handlers.Exam.EnterReview)
		api.GET("/exams/:session_id/score", handlers.Exam.GetProgress)
		api.POST("/exams/:session_id/submit", handlers.Exam.FinalizeExam)
		api.DELETE("/exams/:session_id", handlers.Exam.CancelExam)

		api.GET("/attempts", handlers.Attempt.ListMyAttempts)
		api.GET("/attempts/:attempt_id", handlers.Attempt.GetAttempt)
		api.GET("/projects/:project_id/attempts", handlers.Attempt.ListProjectAttempts)
	}

	return router
}
