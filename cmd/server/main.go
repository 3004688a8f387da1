// Package main is the entry point for the stockcore API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"stockcore/internal/app"
	corenumerator "stockcore/internal/core/numerator"
	"stockcore/internal/core/security"
	"stockcore/internal/domain/audit"
	"stockcore/internal/domain/auth"
	"stockcore/internal/domain/kitting"
	"stockcore/internal/domain/receiving"
	"stockcore/internal/infrastructure/cache"
	v1 "stockcore/internal/infrastructure/http/v1"
	"stockcore/internal/infrastructure/http/v1/dto"
	"stockcore/internal/infrastructure/http/v1/handlers"
	"stockcore/internal/infrastructure/jobs"
	"stockcore/internal/infrastructure/numerator"
	"stockcore/internal/infrastructure/storage/postgres"
	"stockcore/internal/infrastructure/storage/postgres/ledger_store"
)

// version is set at build time.
var version = "dev"

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := app.NewLogger(cfg)
	defer func() { _ = log.Sync() }()

	if err := cfg.RequireJWTSecret(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("starting stockcore server", "version", version, "env", cfg.AppEnv)

	// --- Database ---
	pool, err := postgres.NewPool(ctx, cfg.PoolConfig())
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool)
	store := ledger_store.New(txm, cfg.LedgerTxOptions())

	// --- Numbering ---
	prefixes := numerator.NewPrefixStore(txm.PoolQuerier(), cfg.PrefixCacheTTL, nil)
	numbering := corenumerator.NewNumbering(numerator.New(txm), prefixes, nil)

	notifier := cache.NewNotifier(pool.Unwrap())
	notifier.Subscribe(cache.ChannelNumberingPrefixes, func(_, _ string) { prefixes.Invalidate() })
	notifier.Start(ctx)
	defer notifier.Stop()

	// --- Redis ---
	rdb, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatalw("failed to connect to redis", "error", err)
	}
	defer rdb.Close()

	idempotency := cache.NewIdempotencyStore(rdb, cfg.IdempotencyTTL)

	// --- Activity log ---
	var activity audit.Logger
	switch cfg.ActivityMode {
	case app.ActivitySync:
		repo, err := postgres.NewActivityRepo(txm)
		if err != nil {
			log.Fatalw("failed to create activity repo", "error", err)
		}
		activity = repo
	default:
		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer client.Close()
		activity = jobs.NewActivityEnqueuer(client)
	}

	// --- Authorization ---
	checker, err := security.NewCELChecker(nil)
	if err != nil {
		log.Fatalw("failed to compile permission rules", "error", err)
	}
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWTSecret))

	// --- Engines ---
	kittingService := kitting.NewService(kitting.Config{
		Store:     store,
		Checker:   checker,
		Numbering: numbering,
		Activity:  activity,
	})
	receivingService := receiving.NewService(receiving.Config{
		Store:     store,
		Checker:   checker,
		Numbering: numbering,
		Activity:  activity,
	})

	// --- Router ---
	dto.RegisterValidators()
	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		JWTValidator: jwtService,
		Kitting:      kittingService,
		Receiving:    receivingService,
		Idempotency:  idempotency,
		HealthChecks: map[string]handlers.Pinger{
			"postgres": store,
			"redis": handlers.PingFunc(func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			}),
		},
		Version: version,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", cfg.AppAddr, "activity_mode", cfg.ActivityMode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("server failed", "error", err)
			stop()
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	log.Info("server stopped")
}
