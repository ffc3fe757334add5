package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/certexam/certexam-backend/internal/cache"
	"github.com/certexam/certexam-backend/internal/config"
	"github.com/certexam/certexam-backend/internal/database"
	"github.com/certexam/certexam-backend/internal/handler"
	"github.com/certexam/certexam-backend/internal/logger"
	"github.com/certexam/certexam-backend/internal/middleware"
	"github.com/certexam/certexam-backend/internal/repository"
	"github.com/certexam/certexam-backend/internal/router"
	"github.com/certexam/certexam-backend/internal/service"
	"github.com/certexam/certexam-backend/internal/storage"
	"github.com/certexam/certexam-backend/internal/validator"
	"github.com/certexam/certexam-backend/internal/worker"
	"github.com/rs/zerolog"
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
		Msg("Starting CertExam Backend")

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

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	codeRepo := repository.NewCodeRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	eventRepo := repository.NewEventRepository(pool)

	bankCache := cache.NewQuestionBankCache(rdb, examRepo, cfg.QuestionCacheTTL, log)
	publisher := worker.NewEventPublisher(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	hasher := service.NewHasher(cfg.BcryptCost)

	authService := service.NewAuthService(cfg, rdb, userRepo, hasher, log)
	examService := service.NewExamService(bankCache, examRepo, codeRepo, hasher, bankCache, log)
	sessionService := service.NewExamSessionService(service.ExamSessionDeps{
		Bank:     bankCache,
		Exams:    examRepo,
		Codes:    codeRepo,
		Sessions: sessionRepo,
		Answers:  answerRepo,
		Users:    userRepo,
		Hasher:   hasher,
		Events:   publisher,
	}, log)
	resultService := service.NewResultService(examRepo, sessionRepo, answerRepo, userRepo, eventRepo, log)
	mediaService := service.NewMediaService(cfg.MediaUploadsEnabled, cfg.MaxUploadBytes, storage.NewFSStore(cfg.UploadDir), log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService, log),
		Exam:    handler.NewExamHandler(examService, sessionService, log),
		Session: handler.NewSessionHandler(sessionService, log),
		Admin:   handler.NewAdminHandler(examService, resultService, log),
		Media:   handler.NewMediaHandler(mediaService, log),
		WS:      handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		System: handler.NewSystemHandler(rdb, map[string]handler.Pinger{
			"postgres": pool.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	eventWorker := worker.NewSessionEventWorker(eventRepo, rdb, log)
	go func() {
		eventWorker.Start(workerCtx)
		close(workerDone)
	}()

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load every exam into Redis BEFORE accepting traffic so the first
	// wave of candidates does not stampede PostgreSQL.
	if examIDs, err := examRepo.ListExamIDs(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	} else {
		bankCache.Prewarm(ctx, examIDs)
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	limiter := middleware.NewRateLimiter(rdb, "public", cfg.RateLimitPerMinute, time.Minute, log)
	r := router.SetupRouter(router.Services{
		Auth:     authService,
		Sessions: sessionService,
	}, handlers, limiter, cfg, log)

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

	// 2. Stop the event worker and wait for it to drain the queue.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Event worker did not stop in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
