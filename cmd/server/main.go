package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	echoapi "github.com/enginex/gate/api/echo"
	"github.com/enginex/gate/cache"
	redisstore "github.com/enginex/gate/cache/redis"
	"github.com/enginex/gate/config"
	"github.com/enginex/gate/internal/notify"
	"github.com/enginex/gate/internal/payload"
	"github.com/enginex/gate/internal/reputation"
	"github.com/enginex/gate/internal/server"
	"github.com/enginex/gate/log"
	"github.com/enginex/gate/services"
	"github.com/enginex/gate/tracing"
)

const (
	rateWindowReset    = 60 * time.Second
	rateWindowEviction = 5 * time.Minute
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
		fallbackLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
		fallbackLogger.Warn().
			Str("configured_log_level", cfg.LogLevel).
			Str("fallback_log_level", logLevel.String()).
			Err(parseErr).
			Msg("Invalid LOG_LEVEL configured, defaulting to 'info'")
	}
	appLogger := log.NewZerologAdapter(logLevel, cfg.LogPretty)

	ctx := context.Background()
	appLogger.Info(ctx, "Starting gate server...", map[string]interface{}{
		"http_port":   cfg.HTTPPort,
		"auth_method": cfg.AuthMethod,
		"log_level":   cfg.LogLevel,
	})
	if cfg.PassiveMode {
		appLogger.Warn(ctx, "Passive Mode is enabled. All traffic is redirected to the fallback URL.")
	}
	if cfg.TestMode {
		appLogger.Warn(ctx, "Test Mode is enabled. The antibot mechanism is turned off.")
	}

	tracerProvider, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize TracerProvider", err)
	}

	// --- Stores ---
	credentialStore := cache.NewMemoryCredentialStore()
	rateWindows := cache.NewRateWindowStore(rateWindowReset, rateWindowEviction)

	var sessionStore cache.SessionStore
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			appLogger.Fatal(ctx, "Failed to connect to Redis", err)
		}
		sessionStore = redisstore.NewSessionStore(redisClient, "gate", cfg.SessionTTL())
	} else {
		sessionStore = cache.NewMemorySessionStore(cfg.SessionTTL())
	}

	// Restarting invalidates every previously bound session.
	if err := sessionStore.Clear(ctx); err != nil {
		appLogger.Error(ctx, "Could not clear session store", err)
	} else {
		appLogger.Info(ctx, "All sessions have been cleared.")
	}

	// --- Collaborator clients ---
	s3Client, err := payload.NewS3Client(ctx, cfg.S3Region, cfg.S3Endpoint)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize S3 client", err)
	}
	payloadResolver := payload.NewResolver(s3Client, cfg.S3Bucket, cfg.S3FileKey, cfg.ExternalCallTimeout(), appLogger)

	reputationClient := reputation.NewClient(
		cfg.ReputationPublicKey,
		cfg.ReputationSecretKey,
		cfg.ReputationDomains,
		cfg.ExternalCallTimeout(),
	)

	var notifier notify.Notifier
	var geo notify.GeoLookup
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifier = notify.NewTelegramClient(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.ExternalCallTimeout())
		geo = notify.NewGeoClient(cfg.ExternalCallTimeout())
	}

	// --- Services ---
	credentialService := services.NewCredentialService(credentialStore, cfg.SingleUseCredentials)

	trustService := services.NewTrustService(services.TrustServiceOptions{
		PassiveMode:   cfg.PassiveMode,
		TestMode:      cfg.TestMode,
		ScoreOverride: cfg.ScoreOverride,
		Reputation:    reputationClient,
		RateWindows:   rateWindows,
		CallTimeout:   cfg.ExternalCallTimeout(),
		Logger:        appLogger,
	})

	destinationResolver := services.NewDestinationResolver(services.OSURLs{
		Windows: cfg.WindowsURL,
		Mac:     cfg.MacURL,
		Android: cfg.AndroidURL,
		IOS:     cfg.IOSURL,
		Others:  cfg.OthersURL,
	}, cfg.AppendPayload)

	gateService := services.NewGateService(services.GateServiceOptions{
		AuthMethod:    cfg.AuthMethod,
		AllowKeys:     cfg.AllowKeys,
		FallbackURL:   cfg.FallbackURL,
		PassiveMode:   cfg.PassiveMode,
		Credentials:   credentialService,
		Sessions:      sessionStore,
		Payloads:      payloadResolver,
		Destinations:  destinationResolver,
		Notifier:      notifier,
		Geo:           geo,
		NotifyTimeout: cfg.ExternalCallTimeout(),
		Logger:        appLogger,
	})

	gateAPI := echoapi.NewGateAPI(gateService, trustService, sessionStore, cfg.SessionTTL())
	httpServer := server.NewHTTPServer(cfg, appLogger, gateAPI)

	go func() {
		appLogger.Info(ctx, "HTTP server listening", map[string]interface{}{
			"addr": httpServer.Addr,
		})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(ctx, "HTTP server failed", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info(ctx, "Shutting down gate server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown failed", err)
	}

	gateService.WaitNotifications()

	if err := credentialStore.Close(); err != nil {
		appLogger.Error(shutdownCtx, "Credential store close failed", err)
	}
	if err := rateWindows.Close(); err != nil {
		appLogger.Error(shutdownCtx, "Rate window store close failed", err)
	}
	if err := sessionStore.Close(); err != nil {
		appLogger.Error(shutdownCtx, "Session store close failed", err)
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			appLogger.Error(shutdownCtx, "Redis client close failed", err)
		}
	}

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "TracerProvider shutdown failed", err)
	}

	appLogger.Info(ctx, "Server stopped.")
}
