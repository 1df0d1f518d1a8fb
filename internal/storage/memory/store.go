// Package memory provides an in-process storage driver with the same semantics
// as the PostgreSQL repositories. It backs local runs and service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/lead-automation/internal/apperrors"
	"github.com/capitalize-ai/lead-automation/internal/model"
	"github.com/capitalize-ai/lead-automation/internal/storage"
	"github.com/capitalize-ai/lead-automation/pkg/phone"
)

type conversationRow struct {
	conv model.Conversation
	seq  uint64
}

type messageRow struct {
	msg model.Message
	seq uint64
}

// Store holds every table in maps guarded by one mutex.
type Store struct {
	mu             sync.RWMutex
	seq            uint64
	contacts       map[string]model.Contact
	conversations  map[string]*conversationRow
	qualifications map[string]model.QualificationStatus
	messages       map[string]*messageRow
	receipts       map[string]model.WebhookReceipt
}

// New creates an empty store.
func New() *Store {
	return &Store{
		contacts:       make(map[string]model.Contact),
		conversations:  make(map[string]*conversationRow),
		qualifications: make(map[string]model.QualificationStatus),
		messages:       make(map[string]*messageRow),
		receipts:       make(map[string]model.WebhookReceipt),
	}
}

// Repositories returns repository views over the store.
func (s *Store) Repositories() storage.Repositories {
	return storage.Repositories{
		Contacts:       contactRepo{s},
		Conversations:  conversationRepo{s},
		Qualifications: qualificationRepo{s},
		Messages:       messageRepo{s},
		Receipts:       receiptRepo{s},
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// PutContact inserts or replaces a contact. The phone is normalized.
func (s *Store) PutContact(c model.Contact) model.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Phone = phone.Normalize(c.Phone)
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.contacts[c.ID] = c
	return c
}

func (s *Store) nextSeq() uint64 {
	s.seq++
	return s.seq
}

type contactRepo struct{ s *Store }

func (r contactRepo) FindByID(_ context.Context, id string) (*model.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.contacts[id]
	if !ok {
		return nil, apperrors.NotFound("contact %s not found", id)
	}
	return &c, nil
}

func (r contactRepo) FindByPhone(_ context.Context, raw string) (*model.Contact, error) {
	key := phone.Normalize(raw)
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var found *model.Contact
	for _, c := range r.s.contacts {
		if c.Phone != key {
			continue
		}
		if found == nil || c.CreatedAt.After(found.CreatedAt) {
			c := c
			found = &c
		}
	}
	if found == nil {
		return nil, apperrors.NotFound("contact with phone %s not found", key)
	}
	return found, nil
}

type conversationRepo struct{ s *Store }

// newer orders rows by created_at, then insertion order.
func newer(a, b *conversationRow) bool {
	if !a.conv.CreatedAt.Equal(b.conv.CreatedAt) {
		return a.conv.CreatedAt.After(b.conv.CreatedAt)
	}
	return a.seq > b.seq
}

func (r conversationRepo) FindCurrentByContact(_ context.Context, contactID string) (*model.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var current *conversationRow
	for _, row := range r.s.conversations {
		if row.conv.ContactID != contactID {
			continue
		}
		if current == nil || newer(row, current) {
			current = row
		}
	}
	if current == nil {
		return nil, nil
	}
	conv := current.conv
	return &conv, nil
}

func (r conversationRepo) FindByID(_ context.Context, id string) (*model.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.s.conversations[id]
	if !ok {
		return nil, apperrors.NotFound("conversation %s not found", id)
	}
	conv := row.conv
	return &conv, nil
}

func (r conversationRepo) ListRecent(_ context.Context, limit int) ([]model.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rows := make([]*conversationRow, 0, len(r.s.conversations))
	for _, row := range r.s.conversations {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return newer(rows[i], rows[j]) })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]model.Conversation, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.conv)
	}
	return out, nil
}

func (r conversationRepo) Create(_ context.Context, conv *model.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if _, exists := r.s.conversations[conv.ID]; exists {
		return apperrors.Duplicate("conversation %s already exists", conv.ID)
	}
	if conv.ConversationStatus != model.StatusEnded {
		for _, row := range r.s.conversations {
			if row.conv.ContactID == conv.ContactID && row.conv.ConversationStatus != model.StatusEnded {
				return apperrors.Duplicate("contact %s already has a live conversation", conv.ContactID)
			}
		}
	}
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}
	r.s.conversations[conv.ID] = &conversationRow{conv: *conv, seq: r.s.nextSeq()}
	return nil
}

func (r conversationRepo) UpdateStatus(_ context.Context, id string, from model.ConversationStatus, update model.ConversationUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.conversations[id]
	if !ok || row.conv.ConversationStatus != from {
		return apperrors.Conflict("conversation %s is no longer %s", id, from)
	}
	update.Apply(&row.conv)
	return nil
}

type qualificationRepo struct{ s *Store }

func (r qualificationRepo) FindByContactID(_ context.Context, contactID string) (*model.QualificationStatus, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	qs, ok := r.s.qualifications[contactID]
	if !ok {
		return nil, nil
	}
	return &qs, nil
}

func (r qualificationRepo) Upsert(_ context.Context, qs *model.QualificationStatus) (*model.QualificationStatus, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.qualifications[qs.ContactID]
	if !ok {
		stored = *qs
		if stored.ID == "" {
			stored.ID = uuid.NewString()
		}
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = time.Now().UTC()
		}
	} else {
		stored.AutomationEnabled = qs.AutomationEnabled
		stored.AutomationChangeReason = qs.AutomationChangeReason
		stored.UpdatedBy = qs.UpdatedBy
		stored.UpdatedAt = qs.UpdatedAt
	}
	r.s.qualifications[qs.ContactID] = stored
	out := stored
	return &out, nil
}

type messageRepo struct{ s *Store }

func (r messageRepo) Create(_ context.Context, msg *model.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if _, exists := r.s.messages[msg.ID]; exists {
		return apperrors.Duplicate("message %s already exists", msg.ID)
	}
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	if msg.UpdatedAt.IsZero() {
		msg.UpdatedAt = msg.CreatedAt
	}
	stored := *msg
	stored.Metadata = copyMetadata(msg.Metadata)
	r.s.messages[msg.ID] = &messageRow{msg: stored, seq: r.s.nextSeq()}
	return nil
}

func (r messageRepo) UpdateDelivery(_ context.Context, id string, update model.DeliveryUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.messages[id]
	if !ok {
		return apperrors.NotFound("message %s not found", id)
	}
	row.msg.Metadata = copyMetadata(row.msg.Metadata)
	update.Apply(&row.msg)
	return nil
}

func (r messageRepo) FindByID(_ context.Context, id string) (*model.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.s.messages[id]
	if !ok {
		return nil, apperrors.NotFound("message %s not found", id)
	}
	msg := row.msg
	msg.Metadata = copyMetadata(row.msg.Metadata)
	return &msg, nil
}

func (r messageRepo) FindByExternalID(_ context.Context, externalID string) (*model.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var found *messageRow
	for _, row := range r.s.messages {
		if row.msg.ExternalMessageID == nil || *row.msg.ExternalMessageID != externalID {
			continue
		}
		if found == nil || row.seq > found.seq {
			found = row
		}
	}
	if found == nil {
		return nil, apperrors.NotFound("message with external id %s not found", externalID)
	}
	msg := found.msg
	msg.Metadata = copyMetadata(found.msg.Metadata)
	return &msg, nil
}

// Messages returns every message of a conversation in insertion order.
func (s *Store) Messages(conversationID string) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]*messageRow, 0)
	for _, row := range s.messages {
		if row.msg.ConversationID == conversationID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]model.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.msg)
	}
	return out
}

type receiptRepo struct{ s *Store }

func (r receiptRepo) Claim(_ context.Context, receipt *model.WebhookReceipt, window time.Duration) (bool, *model.WebhookReceipt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	prior, ok := r.s.receipts[receipt.ExternalID]
	if ok && prior.ReceivedAt.After(receipt.ReceivedAt.Add(-window)) {
		return false, &prior, nil
	}
	r.s.receipts[receipt.ExternalID] = *receipt
	return true, nil, nil
}

func (r receiptRepo) AttachMessage(_ context.Context, externalID, messageID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	receipt, ok := r.s.receipts[externalID]
	if !ok {
		return nil
	}
	receipt.MessageID = &messageID
	r.s.receipts[externalID] = receipt
	return nil
}

func (r receiptRepo) Release(_ context.Context, externalID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.receipts, externalID)
	return nil
}

func copyMetadata(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
