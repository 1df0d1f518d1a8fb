package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/capitalize-ai/lead-automation/internal/apperrors"
	"github.com/capitalize-ai/lead-automation/internal/model"
)

type conversationRepo struct {
	db *gorm.DB
}

// NewConversationRepo creates a PostgreSQL conversation repository.
func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepo{db: db}
}

// FindCurrentByContact returns the most recently created conversation for the contact.
func (r *conversationRepo) FindCurrentByContact(ctx context.Context, contactID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := withRetry(ctx, readRetryMaxElapsedTime, "find_current", "conversation", func() error {
		return r.db.WithContext(ctx).
			Where("contact_id = ?", contactID).
			Order("created_at DESC, id DESC").
			Take(&conv).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, mapDBError(err, "failed to find current conversation for contact %s", contactID)
	}
	return &conv, nil
}

// FindByID finds a conversation by its store id.
func (r *conversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := withRetry(ctx, readRetryMaxElapsedTime, "find_by_id", "conversation", func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).Take(&conv).Error
	})
	if err != nil {
		return nil, mapDBError(err, "failed to find conversation %s", id)
	}
	return &conv, nil
}

// ListRecent returns the most recently created conversations across all contacts.
func (r *conversationRepo) ListRecent(ctx context.Context, limit int) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := withRetry(ctx, readRetryMaxElapsedTime, "list_recent", "conversation", func() error {
		return r.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&convs).Error
	})
	if err != nil {
		return nil, mapDBError(err, "failed to list recent conversations")
	}
	return convs, nil
}

// Create inserts a new conversation. Generated ids are UUIDv7 so that id order
// follows insertion order when created_at ties.
func (r *conversationRepo) Create(ctx context.Context, conv *model.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.Must(uuid.NewV7()).String()
	}
	err := withRetry(ctx, writeRetryMaxElapsedTime, "create", "conversation", func() error {
		return r.db.WithContext(ctx).Create(conv).Error
	})
	return mapDBError(err, "failed to create conversation for contact %s", conv.ContactID)
}

// UpdateStatus performs a compare-and-set on conversation_status.
func (r *conversationRepo) UpdateStatus(ctx context.Context, id string, from model.ConversationStatus, update model.ConversationUpdate) error {
	var rows int64
	err := withRetry(ctx, writeRetryMaxElapsedTime, "update_status", "conversation", func() error {
		result := r.db.WithContext(ctx).
			Model(&model.Conversation{}).
			Where("id = ? AND conversation_status = ?", id, from).
			Updates(map[string]any{
				"conversation_status":     update.Status,
				"automation_pause_reason": update.PauseReason,
				"ended_at":                update.EndedAt,
				"updated_at":              update.UpdatedAt,
			})
		rows = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return mapDBError(err, "failed to update conversation %s", id)
	}
	if rows == 0 {
		return apperrors.Conflict("conversation %s is no longer %s", id, from)
	}
	return nil
}
