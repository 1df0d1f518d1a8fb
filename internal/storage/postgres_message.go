package storage

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/capitalize-ai/lead-automation/internal/model"
)

type messageRepo struct {
	db *gorm.DB
}

// NewMessageRepo creates a PostgreSQL message repository.
func NewMessageRepo(db *gorm.DB) MessageRepo {
	return &messageRepo{db: db}
}

// Create inserts a message.
func (r *messageRepo) Create(ctx context.Context, msg *model.Message) error {
	err := withRetry(ctx, writeRetryMaxElapsedTime, "create", "message", func() error {
		return r.db.WithContext(ctx).Create(msg).Error
	})
	return mapDBError(err, "failed to create message for conversation %s", msg.ConversationID)
}

// UpdateDelivery locks the row, merges the update and writes the delivery columns.
func (r *messageRepo) UpdateDelivery(ctx context.Context, id string, update model.DeliveryUpdate) error {
	err := withRetry(ctx, writeRetryMaxElapsedTime, "update_delivery", "message", func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var msg model.Message
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", id).
				Take(&msg).Error; err != nil {
				return err
			}

			update.Apply(&msg)

			return tx.Model(&model.Message{}).
				Where("id = ?", id).
				Updates(map[string]any{
					"delivery_status":     msg.DeliveryStatus,
					"external_message_id": msg.ExternalMessageID,
					"metadata":            msg.Metadata,
					"updated_at":          msg.UpdatedAt,
				}).Error
		})
	})
	return mapDBError(err, "failed to update delivery for message %s", id)
}

// FindByID finds a message by id.
func (r *messageRepo) FindByID(ctx context.Context, id string) (*model.Message, error) {
	var msg model.Message
	err := withRetry(ctx, readRetryMaxElapsedTime, "find_by_id", "message", func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).Take(&msg).Error
	})
	if err != nil {
		return nil, mapDBError(err, "failed to find message %s", id)
	}
	return &msg, nil
}

// FindByExternalID finds the newest message carrying the transport or platform id.
func (r *messageRepo) FindByExternalID(ctx context.Context, externalID string) (*model.Message, error) {
	var msg model.Message
	err := withRetry(ctx, readRetryMaxElapsedTime, "find_by_external_id", "message", func() error {
		return r.db.WithContext(ctx).
			Where("external_message_id = ?", externalID).
			Order("created_at DESC").
			Take(&msg).Error
	})
	if err != nil {
		return nil, mapDBError(err, "failed to find message by external id %s", externalID)
	}
	return &msg, nil
}
