// Package main is the entry point for the journey monitoring API server.
// Its sole responsibility is wiring dependencies together and starting the
// server plus its background workers. No business logic belongs here.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"github.com/Samilrotech/WHS-sub005/internal/clock"
	"github.com/Samilrotech/WHS-sub005/internal/config"
	"github.com/Samilrotech/WHS-sub005/internal/handler"
	"github.com/Samilrotech/WHS-sub005/internal/middleware"
	"github.com/Samilrotech/WHS-sub005/internal/notify"
	"github.com/Samilrotech/WHS-sub005/internal/repo"
	"github.com/Samilrotech/WHS-sub005/internal/service"
	"github.com/Samilrotech/WHS-sub005/migrations"
)

func main() {
	// --- Config -----------------------------------------------------------
	// .env is a development convenience; real deployments set the
	// environment directly, so a missing file is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// --- Database ---------------------------------------------------------
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	if err := migrate(cfg.DatabaseURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// --- Notification gateway --------------------------------------------
	// Redis-backed queue + webhook sender when configured; log-only
	// fallback otherwise. Events survive restarts only on the queue path.
	var (
		notifier    service.Notifier
		queue       *notify.Queue
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()

		queue = notify.NewQueue(redisClient, cfg.NotifyQueueKey)
		notifier = queue
		slog.Info("notification queue ready", "addr", cfg.RedisAddr, "key", cfg.NotifyQueueKey)
	} else {
		notifier = notify.NewLogNotifier(logger)
		slog.Info("no REDIS_ADDR configured, safety events will be logged only")
	}

	// --- Engine -----------------------------------------------------------
	journeyRepo := repo.NewJourneyRepo(pool)
	clk := clock.System{}

	journeySvc := service.NewJourneyService(journeyRepo, clk, notifier, logger)
	recorder := service.NewCheckpointRecorder(journeyRepo, clk, notifier, logger)
	scanner := service.NewOverdueScanner(journeyRepo, clk, notifier, logger, cfg.ScanInterval, cfg.ScanJourneyTimeout)

	// --- Background workers ----------------------------------------------
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner.Run(workerCtx)
	}()

	if queue != nil {
		sender := notify.NewSender(logger, cfg.NotifyWebhookURL, queue)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sender.Run(workerCtx)
		}()
	}

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger →
	// Recoverer → CORS → body size cap.
	srvHandlers := handler.NewServer(journeySvc, recorder, scanner)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))
	r.Mount("/", srvHandlers.Routes())

	// --- HTTP Server ------------------------------------------------------
	// Explicit timeouts prevent slowloris and resource exhaustion attacks.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: wait for OS signal, stop the workers, then give
	// in-flight requests up to 15 seconds to complete.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	stopWorkers()
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// migrate applies any pending schema migrations through the embedded goose
// provider. goose needs database/sql, not a pgx pool, so it gets its own
// short-lived connection.
func migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return err
	}

	results, err := provider.Up(context.Background())
	if err != nil {
		return err
	}
	if len(results) > 0 {
		slog.Info("applied migrations", "count", len(results))
	}
	return nil
}
