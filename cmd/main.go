package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"roomchat/backend/internal/access"
	"roomchat/backend/internal/api/handler"
	"roomchat/backend/internal/chathub"
	"roomchat/backend/internal/config"
	"roomchat/backend/internal/identity"
	"roomchat/backend/internal/localization"
	"roomchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "roomchat terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func setupDependencies(ctx context.Context, cfg config.Config, log *slog.Logger) (*gorm.DB, *redis.Client, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, nil, err
	}

	db, err := gorm.Open(postgres.Open(dsn), storage.GormConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect PostgreSQL: %w", err)
	}

	if cfg.RedisAddr == "" {
		log.Warn("REDIS_ADDR not set, running as a single instance")
		return db, nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect Redis: %w", err)
	}
	return db, rdb, nil
}

func run() (int, error) {
	cfg, loadedDotEnv, err := config.Load()
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)
	if !loadedDotEnv {
		log.Warn("No .env file loaded, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, rdb, err := setupDependencies(ctx, cfg, log)
	if err != nil {
		return exitRuntime, err
	}
	if rdb != nil {
		defer func() {
			log.Info("Closing Redis...")
			_ = rdb.Close()
		}()
	}

	store := storage.NewStorageService(db, rdb, log)
	if err := store.AutoMigrate(); err != nil {
		return exitRuntime, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("Database ready, migrations complete", "relay", rdb != nil)

	locale, err := localization.NewDefault()
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to load translations: %w", err)
	}

	policy := access.NewPolicy(store)
	opts := chathub.Options{
		InstanceID:         uuid.NewString(),
		TypingBacklogLimit: cfg.TypingBacklogLimit,
		DefaultLanguage:    cfg.DefaultLanguage,
	}
	if rdb != nil {
		opts.Relay = store
	}
	router := chathub.NewRouter(log, store, policy, chathub.NewSessionRegistry(), locale, opts)

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		if err := router.RunRelay(ctx); err != nil {
			log.Error("Relay subscriber stopped", "error", err)
		}
	}()

	if !strings.EqualFold(cfg.LogLevel, "DEBUG") {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	verifier := identity.NewJWTVerifier(cfg.JWTSecret, store)
	h := handler.NewHandler(router, store, policy, verifier, locale, cfg, log)
	h.RegisterRoutes(engine)

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", "addr", cfg.Port, "instance_id", opts.InstanceID)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return exitRuntime, fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	}
	stop()
	<-relayDone
	if err := router.Shutdown(shutdownCtx); err != nil {
		log.Error("Router shutdown timed out", "error", err)
	}

	log.Info("Shutdown complete")
	return exitOK, nil
}
