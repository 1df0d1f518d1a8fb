package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/lead-automation/internal/model"
	"github.com/capitalize-ai/lead-automation/internal/sms"
	"github.com/capitalize-ai/lead-automation/pkg/logger"
	"github.com/capitalize-ai/lead-automation/pkg/metrics"
)

const (
	// WebhookSecretHeader carries the bot platform's shared secret.
	WebhookSecretHeader = "X-Webhook-Secret"
	// TwilioSignatureHeader carries Twilio's request signature.
	TwilioSignatureHeader = "X-Twilio-Signature"
)

// SharedSecret rejects requests whose X-Webhook-Secret does not match secret.
// An empty secret disables the check.
func SharedSecret(secret, source string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(WebhookSecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				metrics.RecordWebhook(source, "unauthorized")
				logger.FromContext(r.Context()).Warn("webhook secret mismatch", zap.String("source", source))
				writeJSONError(w, http.StatusUnauthorized, "invalid webhook secret")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TwilioSignature verifies X-Twilio-Signature against the public URL Twilio
// called and the posted form. A nil validator disables the check.
func TwilioSignature(v *sms.SignatureValidator, publicBaseURL string) func(http.Handler) http.Handler {
	base := strings.TrimRight(publicBaseURL, "/")
	return func(next http.Handler) http.Handler {
		if v == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid form body")
				return
			}

			params := make(map[string]string, len(r.PostForm))
			for key, values := range r.PostForm {
				if len(values) > 0 {
					params[key] = values[0]
				}
			}

			if !v.Validate(base+r.URL.RequestURI(), params, r.Header.Get(TwilioSignatureHeader)) {
				metrics.RecordWebhook(model.SourceSMS, "unauthorized")
				logger.FromContext(r.Context()).Warn("twilio signature mismatch", zap.String("path", r.URL.Path))
				writeJSONError(w, http.StatusUnauthorized, "invalid twilio signature")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
