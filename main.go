package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"connect-hub/liveness-service/internal/challenge"
	"connect-hub/liveness-service/internal/config"
	"connect-hub/liveness-service/internal/credential"
	"connect-hub/liveness-service/internal/handlers"
	"connect-hub/liveness-service/internal/middleware"
	"connect-hub/liveness-service/internal/models"
	"connect-hub/liveness-service/internal/orchestrator"
	"connect-hub/liveness-service/internal/store"
	"connect-hub/liveness-service/internal/vision"
	"connect-hub/liveness-service/internal/workerpool"
)

// storeBundle couples a challenge.Store with the matching
// credential.RevocationStore backend, since both the challenge and
// credential packages persist through the same configured driver.
type storeBundle struct {
	challengeStore challenge.Store
	revocation     credential.RevocationStore
}

func buildStore(cfg *config.Config) (*storeBundle, error) {
	switch cfg.StorageDriver {
	case "redis":
		s, err := store.NewRedisStore(cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return &storeBundle{challengeStore: s, revocation: s}, nil
	case "sql":
		s, err := store.NewSQLStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &storeBundle{challengeStore: s, revocation: s}, nil
	default:
		s := store.NewMemoryStore(cfg.SnapshotPath, cfg.SnapshotEncryptionKey)
		return &storeBundle{challengeStore: s, revocation: s}, nil
	}
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	bundle, err := buildStore(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize storage backend", zap.Error(err), zap.String("driver", cfg.StorageDriver))
	}

	landmarkProvider := vision.NewDlibLandmarkProvider(cfg.FaceModelPath)
	defer landmarkProvider.Close()

	matcher := vision.NewMatcher(landmarkProvider, cfg)
	lifecycle := challenge.NewLifecycle(bundle.challengeStore, models.GesturePool, cfg.ChallengeLength, cfg.ChallengeExpirySeconds)
	issuer := credential.NewIssuer(cfg.JWTSecret, cfg.JWTExpiryMinutes, bundle.revocation)

	pool := workerpool.New(cfg.WorkerPoolSize, cfg.WorkerPoolSize*4)
	defer pool.Close()

	orch := orchestrator.New(lifecycle, bundle.challengeStore, matcher, issuer, pool, logger)
	verificationHandler := handlers.NewVerificationHandler(orch, logger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS())
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RateLimit(cfg.RateLimitRPS))
	router.Use(middleware.Metrics())

	router.GET("/health", verificationHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/challenge", verificationHandler.GenerateChallenge)
		v1.POST("/verify", verificationHandler.Verify)
		v1.POST("/attack-sim", verificationHandler.AttackSim)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting liveness verification service", zap.Int("port", cfg.Port), zap.String("storage_driver", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}
