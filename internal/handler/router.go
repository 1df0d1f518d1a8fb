package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/lead-automation/internal/middleware"
	"github.com/capitalize-ai/lead-automation/internal/model"
	"github.com/capitalize-ai/lead-automation/internal/sms"
	"github.com/capitalize-ai/lead-automation/pkg/logger"
)

// RouterConfig carries everything the HTTP surface needs.
type RouterConfig struct {
	Logger         *logger.Logger
	AllowedOrigins []string
	JWTSecret      string
	RateLimit      int
	RateWindow     time.Duration

	WebhookSecret   string
	TwilioValidator *sms.SignatureValidator
	PublicBaseURL   string

	Health        *HealthHandler
	Conversations *ConversationHandler
	Automation    *AutomationHandler
	Webhooks      *WebhookHandler
}

// NewRouter builds the chi router with global middleware, the authenticated
// API and the webhook endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimit, cfg.RateWindow))

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/pause", cfg.Conversations.Pause)
			r.Post("/resume", cfg.Conversations.Resume)
			r.Post("/end", cfg.Conversations.End)
			r.Get("/status", cfg.Conversations.Status)
		})

		r.Route("/automation", func(r chi.Router) {
			r.Post("/toggle", cfg.Automation.Toggle)
			r.Get("/status", cfg.Automation.Status)
			r.Get("/permitted", cfg.Automation.Permitted)
		})
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.With(middleware.SharedSecret(cfg.WebhookSecret, model.SourceBotPlatform)).
			Post("/botpress", cfg.Webhooks.Botpress)

		r.Group(func(r chi.Router) {
			r.Use(middleware.TwilioSignature(cfg.TwilioValidator, cfg.PublicBaseURL))
			r.Post("/twilio/status", cfg.Webhooks.TwilioStatus)
			r.Post("/twilio/inbound", cfg.Webhooks.TwilioInbound)
		})
	})

	return r
}
