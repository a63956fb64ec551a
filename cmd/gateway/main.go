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

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nkelo-gateway/internal/cache"
	"nkelo-gateway/internal/genai"
	"nkelo-gateway/internal/handlers"
	"nkelo-gateway/internal/httpserver"
	"nkelo-gateway/internal/metrics"
	"nkelo-gateway/internal/orchestrator"
	"nkelo-gateway/internal/progress"
	"nkelo-gateway/internal/store"
	"nkelo-gateway/pkg/logging"
)

type Config struct {
	Port         string
	CacheBackend string // "db", "redis" or "memory"
	CacheTTL     time.Duration
	RedisAddr    string
	DBDriver     string // "sqlite" or "postgres"
	DBPath       string
	DBDSN        string
	GeminiKey    string
	GeminiURL    string
	FlashModel   string
	ProModel     string
}

func LoadConfig() Config {
	return Config{
		Port:         getenv("PORT", "8080"),
		CacheBackend: getenv("CACHE_BACKEND", "db"),
		CacheTTL:     getdur("CACHE_TTL", 5*time.Minute),
		RedisAddr:    getenv("REDIS_ADDR", "127.0.0.1:6379"),
		DBDriver:     getenv("DB_DRIVER", store.DriverSQLite),
		DBPath:       getenv("DB_PATH", "data/nkelo.db"),
		DBDSN:        os.Getenv("DB_DSN"),
		GeminiKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiURL:    getenv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		FlashModel:   os.Getenv("GEMINI_FLASH_MODEL"),
		ProModel:     os.Getenv("GEMINI_PRO_MODEL"),
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("gateway exited with error: %v", err)
	}
}

func run() error {
	// ----- Env + logger -----
	_ = godotenv.Load()

	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	cfg := LoadConfig()

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.String("db_driver", cfg.DBDriver),
		zap.String("gemini_base_url", cfg.GeminiURL),
	)

	// ----- Durable store (cache table + user progress) -----
	db, err := store.Open(store.Config{
		Driver: cfg.DBDriver,
		Path:   cfg.DBPath,
		DSN:    cfg.DBDSN,
	}, logger)
	if err != nil {
		logger.Error("store open failed", zap.Error(err))
		return err
	}

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.CacheBackend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})

		// Fail fast if Redis is misconfigured
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established",
			zap.String("addr", cfg.RedisAddr),
		)
	}

	// ----- Response cache -----
	responseCache := cache.NewResponseCache(cache.Config{
		Backend: cfg.CacheBackend,
		TTL:     cfg.CacheTTL,
		Prefix:  "nkelo",
	}, redisClient, db)
	responseCache = cache.NewLoggingCache(responseCache)

	// ----- Generation client -----
	if cfg.GeminiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}

	generator, err := genai.NewClient(genai.Config{
		BaseURL: cfg.GeminiURL,
		APIKey:  cfg.GeminiKey,
	}, logger)
	if err != nil {
		return err
	}
	if closer, ok := generator.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// ----- Orchestrator + handler -----
	orc := orchestrator.New(
		responseCache,
		generator,
		progress.NewDBXPStore(db),
		orchestrator.Config{
			FlashModel: cfg.FlashModel,
			ProModel:   cfg.ProModel,
		},
	)
	assistHandler := handlers.NewAssistHandler(orc)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, assistHandler)

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting gateway",
		zap.String("addr", srv.Addr),
		zap.String("cache_backend", cfg.CacheBackend),
	)

	// Start server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}

// getenv returns the value of the environment variable key or def if not set.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
