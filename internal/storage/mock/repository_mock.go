package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/capitalize-ai/lead-automation/internal/model"
)

// --- ContactRepo Mock ---

// ContactRepoMock mocks the ContactRepo interface
type ContactRepoMock struct {
	mock.Mock
}

// FindByID mocks the FindByID method
func (m *ContactRepoMock) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

// FindByPhone mocks the FindByPhone method
func (m *ContactRepoMock) FindByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

// --- ConversationRepo Mock ---

// ConversationRepoMock mocks the ConversationRepo interface
type ConversationRepoMock struct {
	mock.Mock
}

// FindCurrentByContact mocks the FindCurrentByContact method
func (m *ConversationRepoMock) FindCurrentByContact(ctx context.Context, contactID string) (*model.Conversation, error) {
	args := m.Called(ctx, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

// FindByID mocks the FindByID method
func (m *ConversationRepoMock) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

// ListRecent mocks the ListRecent method
func (m *ConversationRepoMock) ListRecent(ctx context.Context, limit int) ([]model.Conversation, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Conversation), args.Error(1)
}

// Create mocks the Create method
func (m *ConversationRepoMock) Create(ctx context.Context, conv *model.Conversation) error {
	args := m.Called(ctx, conv)
	return args.Error(0)
}

// UpdateStatus mocks the UpdateStatus method
func (m *ConversationRepoMock) UpdateStatus(ctx context.Context, id string, from model.ConversationStatus, update model.ConversationUpdate) error {
	args := m.Called(ctx, id, from, update)
	return args.Error(0)
}

// --- QualificationStatusRepo Mock ---

// QualificationStatusRepoMock mocks the QualificationStatusRepo interface
type QualificationStatusRepoMock struct {
	mock.Mock
}

// FindByContactID mocks the FindByContactID method
func (m *QualificationStatusRepoMock) FindByContactID(ctx context.Context, contactID string) (*model.QualificationStatus, error) {
	args := m.Called(ctx, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QualificationStatus), args.Error(1)
}

// Upsert mocks the Upsert method
func (m *QualificationStatusRepoMock) Upsert(ctx context.Context, qs *model.QualificationStatus) (*model.QualificationStatus, error) {
	args := m.Called(ctx, qs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QualificationStatus), args.Error(1)
}

// --- MessageRepo Mock ---

// MessageRepoMock mocks the MessageRepo interface
type MessageRepoMock struct {
	mock.Mock
}

// Create mocks the Create method
func (m *MessageRepoMock) Create(ctx context.Context, msg *model.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// UpdateDelivery mocks the UpdateDelivery method
func (m *MessageRepoMock) UpdateDelivery(ctx context.Context, id string, update model.DeliveryUpdate) error {
	args := m.Called(ctx, id, update)
	return args.Error(0)
}

// FindByID mocks the FindByID method
func (m *MessageRepoMock) FindByID(ctx context.Context, id string) (*model.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

// FindByExternalID mocks the FindByExternalID method
func (m *MessageRepoMock) FindByExternalID(ctx context.Context, externalID string) (*model.Message, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

// --- WebhookReceiptRepo Mock ---

// WebhookReceiptRepoMock mocks the WebhookReceiptRepo interface
type WebhookReceiptRepoMock struct {
	mock.Mock
}

// Claim mocks the Claim method
func (m *WebhookReceiptRepoMock) Claim(ctx context.Context, receipt *model.WebhookReceipt, window time.Duration) (bool, *model.WebhookReceipt, error) {
	args := m.Called(ctx, receipt, window)
	var existing *model.WebhookReceipt
	if v := args.Get(1); v != nil {
		existing = v.(*model.WebhookReceipt)
	}
	return args.Bool(0), existing, args.Error(2)
}

// AttachMessage mocks the AttachMessage method
func (m *WebhookReceiptRepoMock) AttachMessage(ctx context.Context, externalID, messageID string) error {
	args := m.Called(ctx, externalID, messageID)
	return args.Error(0)
}

// Release mocks the Release method
func (m *WebhookReceiptRepoMock) Release(ctx context.Context, externalID string) error {
	args := m.Called(ctx, externalID)
	return args.Error(0)
}
