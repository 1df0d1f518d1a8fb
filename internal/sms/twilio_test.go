package sms

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap/zaptest"

	"github.com/capitalize-ai/lead-automation/pkg/logger"
)

type messageAPIMock struct {
	mock.Mock
}

func (m *messageAPIMock) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	args := m.Called(params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openapi.ApiV2010Message), args.Error(1)
}

func strPtr(s string) *string { return &s }

func TestTwilioGateway_Send(t *testing.T) {
	api := new(messageAPIMock)
	gw := newTwilioGateway(api, TwilioConfig{FromNumber: "+15550001111", StatusCallbackURL: "https://example.test/webhooks/twilio/status"}, logger.FromZap(zaptest.NewLogger(t)))

	api.On("CreateMessage", mock.MatchedBy(func(p *openapi.CreateMessageParams) bool {
		return p.To != nil && *p.To == "+19082448429" &&
			p.From != nil && *p.From == "+15550001111" &&
			p.Body != nil && *p.Body == "Hi there" &&
			p.StatusCallback != nil
	})).Return(&openapi.ApiV2010Message{Sid: strPtr("SM123"), Status: strPtr("queued")}, nil).Once()

	res, err := gw.Send(context.Background(), "908-244-8429", "Hi there")
	require.NoError(t, err)
	assert.Equal(t, "SM123", res.ProviderMessageID)
	assert.Equal(t, "queued", res.Status)
	api.AssertExpectations(t)
}

func TestTwilioGateway_Send_MessagingService(t *testing.T) {
	api := new(messageAPIMock)
	gw := newTwilioGateway(api, TwilioConfig{MessagingServiceSID: "MG1"}, logger.FromZap(zaptest.NewLogger(t)))

	api.On("CreateMessage", mock.MatchedBy(func(p *openapi.CreateMessageParams) bool {
		return p.MessagingServiceSid != nil && *p.MessagingServiceSid == "MG1" && p.From == nil
	})).Return(&openapi.ApiV2010Message{Sid: strPtr("SM9")}, nil).Once()

	res, err := gw.Send(context.Background(), "9082448429", "x")
	require.NoError(t, err)
	assert.Equal(t, "SM9", res.ProviderMessageID)
}

func TestTwilioGateway_Send_Error(t *testing.T) {
	api := new(messageAPIMock)
	gw := newTwilioGateway(api, TwilioConfig{FromNumber: "+15550001111"}, logger.FromZap(zaptest.NewLogger(t)))
	api.On("CreateMessage", mock.Anything).Return(nil, errors.New("21211 invalid To")).Once()

	_, err := gw.Send(context.Background(), "9082448429", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "21211")
}

func TestTwilioGateway_Send_InvalidNumber(t *testing.T) {
	api := new(messageAPIMock)
	gw := newTwilioGateway(api, TwilioConfig{FromNumber: "+15550001111"}, logger.FromZap(zaptest.NewLogger(t)))

	_, err := gw.Send(context.Background(), "n/a", "x")
	require.Error(t, err)
	api.AssertNotCalled(t, "CreateMessage", mock.Anything)
}

func TestTwilioGateway_Send_CancelledContext(t *testing.T) {
	api := new(messageAPIMock)
	gw := newTwilioGateway(api, TwilioConfig{FromNumber: "+15550001111"}, logger.FromZap(zaptest.NewLogger(t)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.Send(ctx, "9082448429", "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewTwilioGateway_RequiresCredentials(t *testing.T) {
	_, err := NewTwilioGateway(TwilioConfig{}, logger.NewNop())
	assert.Error(t, err)
	_, err = NewTwilioGateway(TwilioConfig{AccountSID: "AC1", AuthToken: "tok"}, logger.NewNop())
	assert.Error(t, err)
}

func TestDisabledGateway(t *testing.T) {
	_, err := Disabled{}.Send(context.Background(), "9082448429", "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func sign(token, url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	payload := url
	for _, k := range keys {
		payload += k + params[k]
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestSignatureValidator(t *testing.T) {
	url := "https://example.test/webhooks/twilio/status"
	params := map[string]string{"MessageSid": "SM123", "MessageStatus": "delivered"}
	v := NewSignatureValidator("secret-token")

	assert.True(t, v.Validate(url, params, sign("secret-token", url, params)))
	assert.False(t, v.Validate(url, params, sign("other-token", url, params)))
}
