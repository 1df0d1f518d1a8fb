package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/capitalize-ai/lead-automation/internal/model"
	"github.com/capitalize-ai/lead-automation/internal/sms"
	"github.com/capitalize-ai/lead-automation/internal/storage"
	"github.com/capitalize-ai/lead-automation/internal/storage/memory"
	"github.com/capitalize-ai/lead-automation/pkg/logger"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []*model.LifecycleEvent
}

func (c *capturePublisher) Publish(_ context.Context, event *model.LifecycleEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *capturePublisher) types() []model.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.EventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

func (c *capturePublisher) last() *model.LifecycleEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return nil
	}
	return c.events[len(c.events)-1]
}

type gatewayMock struct {
	mock.Mock
}

func (m *gatewayMock) Send(ctx context.Context, to, body string) (*sms.Result, error) {
	args := m.Called(ctx, to, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sms.Result), args.Error(1)
}

type fixture struct {
	store     *memory.Store
	repos     storage.Repositories
	events    *capturePublisher
	gateway   *gatewayMock
	log       *logger.Logger
	lifecycle *LifecycleService
	gate      *AutomationGate
	inbound   *InboundWebhookProcessor
	carrier   *CarrierWebhookProcessor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	f := &fixture{
		store:   store,
		repos:   store.Repositories(),
		events:  &capturePublisher{},
		gateway: new(gatewayMock),
		log:     logger.FromZap(zaptest.NewLogger(t)),
	}
	f.rebuild()
	return f
}

// rebuild wires the services over f.repos, so tests can swap in mocks.
func (f *fixture) rebuild() {
	f.lifecycle = NewLifecycleService(f.repos, f.events, f.log)
	f.gate = NewAutomationGate(f.repos, f.lifecycle, f.events, f.log)
	f.inbound = NewInboundWebhookProcessor(f.repos, f.gateway, InboundConfig{DedupWindow: time.Hour}, f.log)
	f.carrier = NewCarrierWebhookProcessor(f.repos, f.events, InboundConfig{DedupWindow: time.Hour}, f.log)
}

func (f *fixture) seedContact(t *testing.T) model.Contact {
	t.Helper()
	return f.store.PutContact(model.Contact{
		Phone:     gofakeit.Phone(),
		FirstName: gofakeit.FirstName(),
		LastName:  gofakeit.LastName(),
	})
}

func (f *fixture) seedConversation(t *testing.T, contactID string, status model.ConversationStatus, withIDs bool) *model.Conversation {
	t.Helper()
	conv := &model.Conversation{
		ID:                 gofakeit.UUID(),
		ContactID:          contactID,
		ConversationStatus: status,
	}
	if status == model.StatusPaused {
		reason := model.PauseReasonUser
		conv.AutomationPauseReason = &reason
	}
	if withIDs {
		botConv, botUser := "bp-conv-"+gofakeit.LetterN(8), "bp-user-"+gofakeit.LetterN(8)
		conv.BotpressConversationID = &botConv
		conv.BotpressUserID = &botUser
	}
	require.NoError(t, f.repos.Conversations.Create(context.Background(), conv))
	return conv
}

func (f *fixture) conversation(t *testing.T, id string) *model.Conversation {
	t.Helper()
	conv, err := f.repos.Conversations.FindByID(context.Background(), id)
	require.NoError(t, err)
	return conv
}

func (f *fixture) qualification(t *testing.T, contactID string) *model.QualificationStatus {
	t.Helper()
	qs, err := f.repos.Qualifications.FindByContactID(context.Background(), contactID)
	require.NoError(t, err)
	return qs
}
