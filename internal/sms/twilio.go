package sms

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/capitalize-ai/lead-automation/pkg/logger"
	"github.com/capitalize-ai/lead-automation/pkg/metrics"
	"github.com/capitalize-ai/lead-automation/pkg/phone"
)

// TwilioConfig holds carrier credentials and sender identity.
// Either FromNumber or MessagingServiceSID must be set.
type TwilioConfig struct {
	AccountSID          string
	AuthToken           string
	FromNumber          string
	MessagingServiceSID string
	StatusCallbackURL   string
}

// messageAPI is the subset of the Twilio REST client the gateway uses.
type messageAPI interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioGateway sends SMS through the Twilio Messages API.
type TwilioGateway struct {
	api    messageAPI
	cfg    TwilioConfig
	logger *logger.Logger
}

// NewTwilioGateway creates a gateway from credentials.
func NewTwilioGateway(cfg TwilioConfig, log *logger.Logger) (*TwilioGateway, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.New("twilio account sid and auth token are required")
	}
	if cfg.FromNumber == "" && cfg.MessagingServiceSID == "" {
		return nil, errors.New("twilio from number or messaging service sid is required")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return newTwilioGateway(client.Api, cfg, log), nil
}

func newTwilioGateway(api messageAPI, cfg TwilioConfig, log *logger.Logger) *TwilioGateway {
	return &TwilioGateway{api: api, cfg: cfg, logger: log}
}

// Send submits the message. The Twilio client has no context support, so
// cancellation is only honoured before the call is made.
func (g *TwilioGateway) Send(ctx context.Context, to, body string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dest := phone.E164(to)
	if dest == "" {
		metrics.RecordSMS("send", "invalid_number")
		return nil, fmt.Errorf("invalid destination number %q", to)
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(dest)
	params.SetBody(body)
	if g.cfg.MessagingServiceSID != "" {
		params.SetMessagingServiceSid(g.cfg.MessagingServiceSID)
	} else {
		params.SetFrom(g.cfg.FromNumber)
	}
	if g.cfg.StatusCallbackURL != "" {
		params.SetStatusCallback(g.cfg.StatusCallbackURL)
	}

	resp, err := g.api.CreateMessage(params)
	if err != nil {
		metrics.RecordSMS("send", "error")
		g.logger.Warn("twilio send failed", zap.String("to", dest), zap.Error(err))
		return nil, fmt.Errorf("twilio create message: %w", err)
	}

	result := &Result{}
	if resp != nil {
		if resp.Sid != nil {
			result.ProviderMessageID = *resp.Sid
		}
		if resp.Status != nil {
			result.Status = *resp.Status
		}
	}
	metrics.RecordSMS("send", "accepted")

	g.logger.Debug("twilio message accepted",
		zap.String("to", dest),
		zap.String("sid", result.ProviderMessageID),
		zap.String("status", result.Status),
	)
	return result, nil
}

// SignatureValidator checks X-Twilio-Signature headers.
type SignatureValidator struct {
	validator twclient.RequestValidator
}

// NewSignatureValidator creates a validator for the account's auth token.
func NewSignatureValidator(authToken string) *SignatureValidator {
	return &SignatureValidator{validator: twclient.NewRequestValidator(authToken)}
}

// Validate reports whether signature matches the full request URL and form params.
func (v *SignatureValidator) Validate(url string, params map[string]string, signature string) bool {
	return v.validator.Validate(url, params, signature)
}
