package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/stemsi/examinator/internal/blob"
	"github.com/stemsi/examinator/internal/config"
	"github.com/stemsi/examinator/internal/database"
	"github.com/stemsi/examinator/internal/handler"
	"github.com/stemsi/examinator/internal/logger"
	"github.com/stemsi/examinator/internal/repository"
	"github.com/stemsi/examinator/internal/router"
	"github.com/stemsi/examinator/internal/service"
	"github.com/stemsi/examinator/internal/validator"
	"github.com/stemsi/examinator/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Int("courses", len(cfg.Courses)).
		Msg("Starting Examinator")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Open Blob Store ───────────────────────────────────────────────
	files, err := blob.NewFileStore(cfg.BlobDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.BlobDir).Msg("Failed to open blob store")
	}
	defer files.Close()
	blobs := blob.NewCachedStore(files, rdb, cfg.BlobCacheTTL, log)

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	sessionRepo := repository.NewExamSessionRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	tokens := service.NewTokenService(cfg)
	catalog := service.NewCourseCatalog(cfg.Courses)
	scheduler := worker.NewRedisScheduler(rdb)
	monitorService := service.NewMonitorService(rdb, examRepo, sessionRepo)

	examService := service.NewExamService(service.ExamServiceDeps{
		Exams:     examRepo,
		Sessions:  sessionRepo,
		Profiles:  profileRepo,
		Blobs:     blobs,
		Scheduler: scheduler,
		Events:    monitorService,
		Tokens:    tokens,
		Catalog:   catalog,
	}, cfg, log)
	enrollmentService := service.NewEnrollmentService(examRepo, sessionRepo, profileRepo, blobs, monitorService, tokens, log)
	submissionService := service.NewSubmissionService(examRepo, sessionRepo, monitorService, log)
	finisherService := service.NewFinisherService(examRepo, sessionRepo, profileRepo, blobs, monitorService, tokens, cfg.FinisherConcurrency, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Health: handler.NewHealthHandler(func(ctx context.Context) error {
			return database.Ping(ctx, pool, rdb)
		}, log),
		Course:    handler.NewCourseHandler(catalog),
		Exam:      handler.NewExamHandler(examService, log),
		Candidate: handler.NewCandidateHandler(enrollmentService, submissionService, log),
		Monitor:   handler.NewMonitorHandler(monitorService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	finisherWorker := worker.NewFinisherWorker(scheduler, finisherService, cfg.SchedulerPollInterval, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		finisherWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(tokens, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the finisher worker. An interrupted run re-arms its job.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}
