// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/lead-automation/internal/config"
	"github.com/capitalize-ai/lead-automation/internal/handler"
	natsclient "github.com/capitalize-ai/lead-automation/internal/nats"
	"github.com/capitalize-ai/lead-automation/internal/service"
	"github.com/capitalize-ai/lead-automation/internal/sms"
	"github.com/capitalize-ai/lead-automation/internal/storage"
	"github.com/capitalize-ai/lead-automation/internal/storage/memory"
	"github.com/capitalize-ai/lead-automation/pkg/logger"
	"github.com/capitalize-ai/lead-automation/pkg/tracing"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetGlobal(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting API server",
		zap.String("environment", cfg.Environment),
		zap.String("storage_driver", cfg.Database.Driver),
		zap.Bool("nats_enabled", cfg.NATS.Enabled),
		zap.Bool("sms_enabled", cfg.Twilio.SMSEnabled()),
	)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer func() { _ = tracing.Shutdown(context.Background(), tp) }()
		}
	}

	checks := make(map[string]handler.Pinger)

	repos, closeStore, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()
	checks["database"] = repos.pinger

	var events service.EventPublisher = service.NopPublisher{}
	if cfg.NATS.Enabled {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATS.URL,
			Name:     cfg.Tracing.ServiceName,
			CAFile:   cfg.NATS.CAFile,
			CertFile: cfg.NATS.CertFile,
			KeyFile:  cfg.NATS.KeyFile,
			Token:    cfg.NATS.Token,
		}, log)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer natsClient.Close()
		checks["nats"] = natsClient

		streams := natsclient.NewStreamManager(natsClient)
		if err := streams.EnsureStream(ctx); err != nil {
			return fmt.Errorf("ensure event stream: %w", err)
		}

		publisher, err := natsclient.NewAsyncPublisher(streams, natsclient.AsyncConfig{
			PoolSize:       cfg.NATS.PoolSize,
			PublishTimeout: cfg.NATS.PublishTimeout,
		}, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := publisher.Close(cfg.NATS.PublishTimeout); err != nil {
				log.Warn("event publisher did not drain", zap.Error(err))
			}
		}()
		events = publisher

		go reportStreamStats(ctx, streams, cfg.NATS.StatsInterval, log)
	}

	gateway, signatures, err := openGateway(cfg, log)
	if err != nil {
		return err
	}

	dedup := service.InboundConfig{DedupWindow: cfg.Webhook.DedupWindow}
	lifecycle := service.NewLifecycleService(repos.Repositories, events, log)
	gate := service.NewAutomationGate(repos.Repositories, lifecycle, events, log)
	inbound := service.NewInboundWebhookProcessor(repos.Repositories, gateway, dedup, log)
	carrier := service.NewCarrierWebhookProcessor(repos.Repositories, events, dedup, log)

	if cfg.Webhook.Secret == "" {
		log.Warn("webhook.secret is empty, bot platform webhook is unauthenticated")
	}

	expose := cfg.Webhook.ExposeDiagnostics
	router := handler.NewRouter(handler.RouterConfig{
		Logger:          log,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		JWTSecret:       cfg.JWT.Secret,
		RateLimit:       cfg.RateLimit.Requests,
		RateWindow:      cfg.RateLimit.Window,
		WebhookSecret:   cfg.Webhook.Secret,
		TwilioValidator: signatures,
		PublicBaseURL:   cfg.Webhook.PublicBaseURL,
		Health:          handler.NewHealthHandler(checks),
		Conversations:   handler.NewConversationHandler(lifecycle, expose),
		Automation:      handler.NewAutomationHandler(gate, expose),
		Webhooks:        handler.NewWebhookHandler(inbound, carrier, expose),
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}

type storageHandle struct {
	storage.Repositories
	pinger handler.Pinger
}

func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (storageHandle, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		store := memory.New()
		return storageHandle{Repositories: store.Repositories(), pinger: store}, func() {}, nil
	}

	pg, err := storage.NewPostgresRepo(ctx, storage.Config{
		DSN:             cfg.Database.PostgresDSN,
		AutoMigrate:     cfg.Database.AutoMigrate,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, log)
	if err != nil {
		return storageHandle{}, nil, err
	}
	closeFn := func() {
		if err := pg.Close(); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}
	return storageHandle{Repositories: pg.Repositories(), pinger: pg}, closeFn, nil
}

func openGateway(cfg *config.Config, log *logger.Logger) (sms.Gateway, *sms.SignatureValidator, error) {
	if !cfg.Twilio.SMSEnabled() {
		log.Warn("twilio credentials not configured, outbound SMS disabled")
		return sms.Disabled{}, nil, nil
	}

	twCfg := sms.TwilioConfig{
		AccountSID:          cfg.Twilio.AccountSID,
		AuthToken:           cfg.Twilio.AuthToken,
		FromNumber:          cfg.Twilio.FromNumber,
		MessagingServiceSID: cfg.Twilio.MessagingServiceSID,
	}
	if base := strings.TrimRight(cfg.Webhook.PublicBaseURL, "/"); base != "" {
		twCfg.StatusCallbackURL = base + "/webhooks/twilio/status"
	}

	gateway, err := sms.NewTwilioGateway(twCfg, log)
	if err != nil {
		return nil, nil, err
	}

	var signatures *sms.SignatureValidator
	if cfg.Webhook.ValidateTwilioSignature {
		signatures = sms.NewSignatureValidator(cfg.Twilio.AuthToken)
	}
	return gateway, signatures, nil
}

func reportStreamStats(ctx context.Context, streams *natsclient.StreamManager, interval time.Duration, log *logger.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := streams.ReportStats(ctx); err != nil {
				log.Warn("failed to report stream stats", zap.Error(err))
			}
		}
	}
}
