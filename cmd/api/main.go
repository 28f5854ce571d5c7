// Package main is the entrypoint for the Bookmarks API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/bookmarks/bookmarks/internal/auth"
	"github.com/bookmarks/bookmarks/internal/cache"
	"github.com/bookmarks/bookmarks/internal/config"
	"github.com/bookmarks/bookmarks/internal/events"
	"github.com/bookmarks/bookmarks/internal/handler"
	"github.com/bookmarks/bookmarks/internal/metrics"
	"github.com/bookmarks/bookmarks/internal/middleware"
	"github.com/bookmarks/bookmarks/internal/repository"
	"github.com/bookmarks/bookmarks/internal/resource"
	"github.com/bookmarks/bookmarks/internal/seed"
	"github.com/bookmarks/bookmarks/internal/server"
	"github.com/bookmarks/bookmarks/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	var (
		recorder       metrics.Recorder = metrics.NewNoop()
		metricsHandler http.Handler
	)
	if cfg.MetricsEnabled {
		prom := metrics.NewPrometheus()
		recorder = prom
		metricsHandler = prom.Handler()
	}

	if cfg.SeedDemoData {
		created, err := seed.Run(ctx, repo, repo, cfg.SeedUsernameList(), cfg.SeedPassword)
		if err != nil {
			logger.Error("failed to seed demo data", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("demo data seeded", slog.Int("accounts_created", len(created)))
	}

	bookmarkStore := cache.NewCachedBookmarkStore(repo, cacheClient, logger, recorder)

	var publisher service.EventPublisher
	if cfg.EventsEnabled {
		publisher = events.NewPublisher(cacheClient.Client(), logger, recorder)
	}
	bookmarkService := service.NewBookmarkService(repo, bookmarkStore, publisher, recorder)

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:           logger,
		Limiter:          cacheClient,
		PrincipalEnabled: cfg.RateLimitAPIEnabled,
		IPEnabled:        cfg.RateLimitIPEnabled,
		IPRPS:            cfg.RateLimitIPRPS,
		IPBurst:          cfg.RateLimitIPBurst,
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.AllowedOrigins()

	r := handler.NewRouter(handler.RouterConfig{
		Logger:  logger,
		Metrics: recorder,
		Root:    handler.New(),
		Health: handler.NewHealthHandler(logger,
			handler.HealthCheck{Name: "database", Checker: repo},
			handler.HealthCheck{Name: "redis", Checker: cacheClient},
		),
		Bookmarks: handler.NewBookmarkHandler(
			bookmarkService,
			resource.NewAssembler(cfg.BaseURL),
			logger,
			cfg.StrictBookmarkOwnership,
		),
		APIKeys:        handler.NewAPIKeyHandler(logger, repo, cacheClient, auth.EnvForAppEnv(cfg.AppEnv)),
		MetricsHandler: metricsHandler,
		Auth: middleware.AuthConfig{
			Logger:   logger,
			Keys:     repo,
			Accounts: repo,
			Cache:    cacheClient,
			Metrics:  recorder,
		},
		RateLimit:   rateLimitCfg,
		Security:    middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()},
		CORS:        corsCfg,
		MaxBodySize: cfg.MaxRequestBodySize,
	})

	srv := server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	if cfg.EventsEnabled {
		subscriber := events.NewSubscriber(
			cacheClient.Client(),
			events.LogHandler(logger),
			logger,
			events.NewConsumerID(),
			recorder,
		)
		go func() {
			if err := subscriber.Run(ctx); err != nil {
				logger.Error("event subscriber stopped", slog.String("error", err.Error()))
			}
		}()
		srv.OnShutdown("events.subscriber", subscriber.Shutdown)
	}

	logger.Info("starting server",
		slog.Int("port", cfg.AppPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("env", cfg.AppEnv),
		slog.Bool("events", cfg.EventsEnabled),
		slog.Bool("metrics", cfg.MetricsEnabled),
	)

	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With(slog.String("service", "bookmarks"))
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

// redactURL drops the password from a connection URL, keeping the user name.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

// sanitizeError replaces every secret in err's message with its redacted form.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
