package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/amedis-online/booking-agent/internal/amedis"
	"github.com/amedis-online/booking-agent/internal/api/router"
	appconfig "github.com/amedis-online/booking-agent/internal/config"
	"github.com/amedis-online/booking-agent/internal/flow"
	"github.com/amedis-online/booking-agent/internal/har"
	"github.com/amedis-online/booking-agent/internal/http/handlers"
	"github.com/amedis-online/booking-agent/internal/kb"
	"github.com/amedis-online/booking-agent/internal/observability/metrics"
	"github.com/amedis-online/booking-agent/internal/session"
	"github.com/amedis-online/booking-agent/internal/tools"
	"github.com/amedis-online/booking-agent/internal/webchat"
	"github.com/amedis-online/booking-agent/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking-agent API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	upstreamMetrics := metrics.NewUpstreamMetrics(nil)
	chatMetrics := metrics.NewChatMetrics(nil)

	client := amedis.NewClient(logger.WithComponent("amedis"),
		amedis.WithBaseURL(cfg.AmedisBaseURL),
		amedis.WithTimeout(cfg.HTTPTimeout),
		amedis.WithMetrics(upstreamMetrics),
	)

	var knowledge *kb.KB
	if cfg.KBEnabled && cfg.KBPath != "" {
		loaded, err := kb.Load(cfg.KBPath)
		if err != nil {
			logger.Warn("knowledge base unavailable", "path", cfg.KBPath, "error", err)
		} else {
			knowledge = loaded
			logger.Info("knowledge base loaded", "path", cfg.KBPath)
		}
	}

	if cfg.HARPath != "" {
		capture := har.ParseFile(cfg.HARPath)
		logger.Info("HAR capture parsed",
			"path", cfg.HARPath,
			"patient_ids", len(capture.PatientIDs),
			"insurer", capture.Insurer,
		)
	}

	controller := flow.NewController(client, logger.WithComponent("flow"),
		flow.WithKB(knowledge),
		flow.WithMetrics(chatMetrics),
	)

	var sessions session.Store = session.NewMemoryStore()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		sessions = session.NewRedisStore(redisClient, nil)
		logger.Info("using redis session store", "addr", cfg.RedisAddr)
	}

	registry := tools.NewRegistry(
		func(baseURL string) tools.Upstream {
			if baseURL == "" {
				return client
			}
			return amedis.NewClient(logger.WithComponent("amedis"),
				amedis.WithBaseURL(baseURL),
				amedis.WithTimeout(cfg.HTTPTimeout),
				amedis.WithMetrics(upstreamMetrics),
			)
		},
		tools.WithGuestToken(cfg.GuestToken),
		tools.WithHARPath(cfg.HARPath),
		tools.WithKB(knowledge),
		tools.WithLogger(logger.WithComponent("tools")),
	)

	r := router.New(&router.Config{
		Logger:         logger,
		ToolsHandler:   handlers.NewToolsHandler(registry, logger.WithComponent("handlers")),
		Webchat:        webchat.NewHandler(controller, sessions, logger.WithComponent("webchat")),
		MetricsHandler: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
