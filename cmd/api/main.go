// Package main is the entrypoint for the Inkpost API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/inkpost/inkpost/internal/auth"
	"github.com/inkpost/inkpost/internal/cache"
	"github.com/inkpost/inkpost/internal/config"
	"github.com/inkpost/inkpost/internal/handler"
	"github.com/inkpost/inkpost/internal/metrics"
	"github.com/inkpost/inkpost/internal/middleware"
	"github.com/inkpost/inkpost/internal/repository"
	"github.com/inkpost/inkpost/internal/server"
	"github.com/inkpost/inkpost/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Initialize database
	gateway, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return errors.New("failed to connect to database")
	}
	logger.Info("connected to database", slog.String("database_url", redactURL(cfg.DatabaseURL)))

	// Initialize cache. Without Redis there is no principal cache and no rate limiting.
	var cacheClient *cache.Cache
	if cfg.CacheEnabled() {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			gateway.Close()
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			return errors.New("failed to connect to redis")
		}
		logger.Info("connected to Redis")
	} else {
		logger.Warn("REDIS_URL not set; principal cache and rate limiting disabled")
	}

	recorder := metrics.NewInMemory()
	content := service.NewContentService(gateway, recorder)

	router := handler.NewRouter(handler.RouterConfig{
		Logger:    logger,
		Content:   content,
		Health:    newHealthHandler(gateway, cacheClient),
		Metrics:   recorder,
		Recorder:  recorder,
		Providers: buildProviders(cfg, gateway, cacheClient, recorder, logger),
		Security:  middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()},
		CORS:      corsConfig(cfg),
		RateLimit: rateLimitConfig(cfg, cacheClient, logger),

		MaxBodyBytes: cfg.MaxRequestBodySize,
	})

	srv := server.New(router, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	srv.OnShutdown("database", func(context.Context) error {
		gateway.Close()
		return nil
	})
	if cacheClient != nil {
		srv.OnShutdown("cache", func(context.Context) error {
			return cacheClient.Close()
		})
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"trusted_identity_headers", cfg.TrustedIdentityHeaders,
	)

	return srv.Run(ctx)
}

// buildProviders returns the identity providers in resolution order.
// API keys are always accepted; proxy headers only when explicitly trusted.
func buildProviders(cfg *config.Config, gateway repository.Gateway, cacheClient *cache.Cache, recorder metrics.Recorder, logger *slog.Logger) []auth.Provider {
	// A nil *cache.Cache must not become a non-nil interface.
	var principals auth.PrincipalCache
	if cacheClient != nil {
		principals = cacheClient
	}

	providers := []auth.Provider{
		auth.NewAPIKeyProvider(gateway, principals, recorder, logger),
	}
	if cfg.TrustedIdentityHeaders {
		providers = append(providers, auth.NewHeaderProvider(gateway, auth.HeaderConfig{
			EmailHeader: cfg.IdentityEmailHeader,
			NameHeader:  cfg.IdentityNameHeader,
			ImageHeader: cfg.IdentityImageHeader,
		}))
	}
	return providers
}

func newHealthHandler(gateway repository.Gateway, cacheClient *cache.Cache) *handler.HealthHandler {
	if cacheClient == nil {
		return handler.NewHealthHandler(gateway, nil)
	}
	return handler.NewHealthHandler(gateway, cacheClient)
}

func corsConfig(cfg *config.Config) middleware.CORSConfig {
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()
	return corsCfg
}

func rateLimitConfig(cfg *config.Config, cacheClient *cache.Cache, logger *slog.Logger) middleware.RateLimitConfig {
	rlCfg := middleware.RateLimitConfig{
		Logger:  logger,
		Enabled: cfg.RateLimitEnabled && cacheClient != nil,
		RPS:     cfg.RateLimitRPS,
		Burst:   cfg.RateLimitBurst,
	}
	if cacheClient != nil {
		rlCfg.Limiter = cacheClient
	}
	return rlCfg
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "inkpost")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s&]+`)

// redactURL strips credentials from a connection string before it is logged.
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

	if query := parsed.Query(); query.Has("password") {
		query.Set("password", "redacted")
		parsed.RawQuery = query.Encode()
	}

	return parsed.String()
}

// sanitizeError removes connection strings and passwords from driver errors.
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
