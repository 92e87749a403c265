package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tilsley/scmreader/apps/server/internal/platform/postgres"
	"github.com/tilsley/scmreader/apps/server/internal/platform/telemetry"
	"github.com/tilsley/scmreader/apps/server/internal/platform/validation"
	"github.com/tilsley/scmreader/apps/server/internal/readers/handler"
	"github.com/tilsley/scmreader/apps/server/internal/readers/store"
	"github.com/tilsley/scmreader/apps/server/internal/readers/store/pgmigrations"
	"github.com/tilsley/scmreader/pkg/config"
	"github.com/tilsley/scmreader/pkg/logging"
	"github.com/tilsley/scmreader/pkg/readerset"
	"github.com/tilsley/scmreader/pkg/reading"
	"github.com/tilsley/scmreader/schemas"
)

const serviceName = "scmreader-server"

func main() {
	log := logging.New(serviceName)
	ctx := context.Background()

	// --- Observability ---

	telCfg, err := telemetry.ConfigFromEnv(serviceName)
	if err != nil {
		fatal(log, "telemetry config invalid", err)
	}
	tel, err := telemetry.New(ctx, telCfg)
	if err != nil {
		fatal(log, "telemetry init failed", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "error", err)
		}
	}()

	// --- Readers ---

	cfgPath := config.Path("")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatal(log, "config load failed", err)
	}
	readers, err := readerset.Build(cfg, reading.Deps{Log: log})
	if err != nil {
		fatal(log, "reader setup failed", err)
	}
	log.Info("readers registered", "config", cfgPath, "readers", readers.String())

	var reader reading.URLReader = readers

	// --- Platform: Redis response cache (optional) ---

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		ttl, err := time.ParseDuration(envOr("REDIS_CACHE_TTL", "24h"))
		if err != nil {
			fatal(log, "invalid REDIS_CACHE_TTL", err)
		}
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		defer rdb.Close() //nolint:errcheck
		if err := rdb.Ping(ctx).Err(); err != nil {
			fatal(log, "redis ping failed", err)
		}
		reader = reading.NewCachingReader(reader, store.NewRedisResponseCache(rdb, ttl), log)
		log.Info("response cache enabled", "addr", addr, "ttl", ttl)
	}

	// --- Platform: Postgres fetch log (optional) ---

	var recorder reading.FetchRecorder
	var overview handler.OverviewSource
	if pgURL := os.Getenv("POSTGRES_URL"); pgURL != "" {
		pool, err := postgres.New(ctx, pgURL, pgmigrations.FS)
		if err != nil {
			fatal(log, "postgres init failed", err)
		}
		defer pool.Close()
		fetchLog := store.NewPGFetchLog(pool)
		recorder, overview = fetchLog, fetchLog
		log.Info("fetch log enabled")
	}
	reader = reading.NewObservedReader(reader, recorder, log)

	// --- HTTP ---

	router := gin.New()

	validator, err := validation.New(schemas.OpenAPISpec, "/health", "/readers", "/fetches/overview")
	if err != nil {
		fatal(log, "openapi validation middleware init failed", err)
	}
	router.Use(gin.Recovery(), otelgin.Middleware(serviceName), validator)

	handler.RegisterRoutes(router, handler.Options{
		Reader:  reader,
		Readers: readers.Readers(),
		Fetches: overview,
		Log:     log,
	})

	port := envOr("PORT", "8080")
	log.Info("starting scmreader", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("server failed", "error", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
