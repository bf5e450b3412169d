package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/examinator/internal/config"
	"github.com/stemsi/examinator/internal/handler"
	"github.com/stemsi/examinator/internal/middleware"
	"github.com/stemsi/examinator/internal/response"
	"github.com/stemsi/examinator/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Health    *handler.HealthHandler
	Course    *handler.CourseHandler
	Exam      *handler.ExamHandler
	Candidate *handler.CandidateHandler
	Monitor   *handler.MonitorHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	tokens *service.TokenService,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", middleware.HeaderExamToken}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.OptionsResponseStatusCode = http.StatusOK
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Compress())

	router.GET("/health", handlers.Health.Health)

	// ─── 1. Authenticated API ──────────────────────────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.RequireIdentity(tokens))
	{
		api.GET("/courses", middleware.CacheControl(300), handlers.Course.ListCourses)
		api.GET("/courses/:course_id/exams", handlers.Exam.ListCourseExams)
		api.GET("/me/exams", middleware.NoStore(), handlers.Candidate.MyExams)
	}

	// ─── 2. Candidate Routes ───────────────────────────────────────────
	submitLimiter := middleware.NewRateLimiter(cfg.SubmitRatePerSecond, cfg.SubmitBurst)
	candidate := api.Group("/exams/:exam_id")
	candidate.Use(middleware.NoStore())
	{
		candidate.POST("/join", handlers.Candidate.JoinExam)
		candidate.POST("/answers",
			middleware.RequireExamToken(tokens),
			submitLimiter.Middleware(),
			handlers.Candidate.SubmitAnswer,
		)
	}

	// ─── 3. Staff Routes ───────────────────────────────────────────────
	staff := api.Group("")
	staff.Use(middleware.RequireStaff())
	{
		staff.POST("/exams", handlers.Exam.CreateExam)
		staff.GET("/exams/:exam_id", handlers.Exam.GetExam)
		staff.POST("/exams/:exam_id/cancel", handlers.Exam.CancelExam)
		staff.GET("/exams/:exam_id/results", handlers.Exam.GetResults)
	}

	// ─── 4. WebSocket Group (token in query) ───────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSIdentity(tokens), middleware.RequireStaff())
	{
		ws.GET("/exams/:exam_id/monitor", handlers.Monitor.MonitorExam)
	}

	return router
}
