package middleware

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/capitalize-ai/lead-automation/internal/apperrors"
	"github.com/capitalize-ai/lead-automation/internal/sms"
	"github.com/capitalize-ai/lead-automation/pkg/logger"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuth(t *testing.T) {
	valid := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "agent-7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		OrganizationID: "org-1",
	})
	expired := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "agent-7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	wrongKey := signToken(t, jwt.SigningMethodHS256, []byte("other"), Claims{})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "valid", header: "Bearer " + valid, want: http.StatusNoContent},
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + valid, want: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, want: http.StatusUnauthorized},
		{name: "wrong key", header: "Bearer " + wrongKey, want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser, gotOrg string
			h := Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = GetUserID(r.Context())
				gotOrg = GetOrganizationID(r.Context())
				w.WriteHeader(http.StatusNoContent)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusNoContent {
				assert.Equal(t, "agent-7", gotUser)
				assert.Equal(t, "org-1", gotOrg)
			}
		})
	}
}

func TestLogging_CorrelationAndCaller(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := logger.FromZap(zap.New(core))
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "agent-7"},
		OrganizationID:   "org-1",
	})

	var seenCorrelation string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenCorrelation = GetCorrelationID(r.Context())
		logger.FromContext(r.Context()).Info("handled")
		w.WriteHeader(http.StatusAccepted)
	})
	h := Logging(log)(Auth(testSecret)(inner))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/pause", nil)
	req.Header.Set(CorrelationIDHeader, "corr-123")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "corr-123", rec.Header().Get(CorrelationIDHeader))
	assert.Equal(t, "corr-123", seenCorrelation)

	handled := logs.FilterMessage("handled").All()
	require.Len(t, handled, 1)
	fields := handled[0].ContextMap()
	assert.Equal(t, "corr-123", fields["request_id"])
	assert.Equal(t, "org-1", fields["organization_id"])

	completed := logs.FilterMessage("request completed").All()
	require.Len(t, completed, 1)
	fields = completed[0].ContextMap()
	assert.Equal(t, int64(http.StatusAccepted), fields["status"])
	assert.Equal(t, "agent-7", fields["user_id"])
}

func TestLogging_GeneratesCorrelationID(t *testing.T) {
	h := Logging(logger.NewNop())(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.NotEmpty(t, rec.Header().Get(CorrelationIDHeader))
}

type pauseBody struct {
	ContactID string `json:"contactId" validate:"required,max=8"`
	Reason    string `json:"reason,omitempty"`
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "valid", body: `{"contactId":"c-1"}`},
		{name: "empty body", body: ``, wantErr: "request body is required"},
		{name: "malformed", body: `{"contactId":`, wantErr: "invalid request body"},
		{name: "missing field", body: `{"reason":"x"}`, wantErr: "contactId is required"},
		{name: "too long", body: `{"contactId":"123456789"}`, wantErr: "contactId must not exceed 8 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst pauseBody
			err := DecodeAndValidate(req, &dst)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "c-1", dst.ContactID)
				return
			}
			require.ErrorIs(t, err, apperrors.ErrValidation)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSharedSecret(t *testing.T) {
	h := SharedSecret("hook-secret", "bot_platform")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/botpress", nil)
	req.Header.Set(WebhookSecretHeader, "hook-secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/webhooks/botpress", nil)
	req.Header.Set(WebhookSecretHeader, "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	open := SharedSecret("", "bot_platform")(okHandler())
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/botpress", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func twilioSign(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	payload := fullURL
	for _, k := range keys {
		payload += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestTwilioSignature(t *testing.T) {
	const base = "https://leads.example.test"
	form := url.Values{"MessageSid": {"SM1"}, "MessageStatus": {"delivered"}}
	h := TwilioSignature(sms.NewSignatureValidator("auth-token"), base+"/")(okHandler())

	newReq := func(signature string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/status", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set(TwilioSignatureHeader, signature)
		return req
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newReq(twilioSign("auth-token", base+"/webhooks/twilio/status", form)))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, newReq(twilioSign("someone-else", base+"/webhooks/twilio/status", form)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(1, time.Minute)(okHandler())

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
