// Package storage defines the persistence interfaces and their PostgreSQL implementation.
package storage

import (
	"context"
	"time"

	"github.com/capitalize-ai/lead-automation/internal/model"
)

// ContactRepo defines contact storage operations.
type ContactRepo interface {
	FindByID(ctx context.Context, id string) (*model.Contact, error)
	FindByPhone(ctx context.Context, phone string) (*model.Contact, error)
}

// ConversationRepo defines conversation storage operations.
type ConversationRepo interface {
	// FindCurrentByContact returns the contact's current conversation: the most
	// recently created row (last-created wins). It returns nil, nil when the
	// contact has none.
	FindCurrentByContact(ctx context.Context, contactID string) (*model.Conversation, error)
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	ListRecent(ctx context.Context, limit int) ([]model.Conversation, error)
	Create(ctx context.Context, conv *model.Conversation) error
	// UpdateStatus writes the lifecycle columns only if the row is still in
	// status from. A miss returns apperrors.ErrConflict.
	UpdateStatus(ctx context.Context, id string, from model.ConversationStatus, update model.ConversationUpdate) error
}

// QualificationStatusRepo defines qualification status storage operations.
type QualificationStatusRepo interface {
	// FindByContactID returns nil, nil when no row exists.
	FindByContactID(ctx context.Context, contactID string) (*model.QualificationStatus, error)
	// Upsert inserts or updates the row keyed on contact id and returns the stored row.
	Upsert(ctx context.Context, qs *model.QualificationStatus) (*model.QualificationStatus, error)
}

// MessageRepo defines message storage operations.
type MessageRepo interface {
	Create(ctx context.Context, msg *model.Message) error
	UpdateDelivery(ctx context.Context, id string, update model.DeliveryUpdate) error
	FindByID(ctx context.Context, id string) (*model.Message, error)
	FindByExternalID(ctx context.Context, externalID string) (*model.Message, error)
}

// WebhookReceiptRepo defines webhook dedup ledger operations.
type WebhookReceiptRepo interface {
	// Claim records the receipt unless one newer than window already exists.
	// When not claimed, the existing receipt is returned.
	Claim(ctx context.Context, receipt *model.WebhookReceipt, window time.Duration) (claimed bool, existing *model.WebhookReceipt, err error)
	AttachMessage(ctx context.Context, externalID, messageID string) error
	// Release drops a claim whose processing failed before a message was written.
	Release(ctx context.Context, externalID string) error
}

// Repositories bundles every repository a service set needs.
type Repositories struct {
	Contacts       ContactRepo
	Conversations  ConversationRepo
	Qualifications QualificationStatusRepo
	Messages       MessageRepo
	Receipts       WebhookReceiptRepo
}
