package storage

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/capitalize-ai/lead-automation/internal/model"
)

type receiptRepo struct {
	db *gorm.DB
}

// NewWebhookReceiptRepo creates a PostgreSQL webhook receipt repository.
func NewWebhookReceiptRepo(db *gorm.DB) WebhookReceiptRepo {
	return &receiptRepo{db: db}
}

// Claim inserts the receipt. If a receipt with the same external id exists and
// is still inside window, the claim fails and the existing row is returned.
// An expired receipt is taken over in place.
func (r *receiptRepo) Claim(ctx context.Context, receipt *model.WebhookReceipt, window time.Duration) (bool, *model.WebhookReceipt, error) {
	var (
		claimed  bool
		existing *model.WebhookReceipt
	)

	err := withRetry(ctx, writeRetryMaxElapsedTime, "claim", "webhook_receipt", func() error {
		claimed, existing = false, nil

		result := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(receipt)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			claimed = true
			return nil
		}

		var prior model.WebhookReceipt
		if err := r.db.WithContext(ctx).
			Where("external_id = ?", receipt.ExternalID).
			Take(&prior).Error; err != nil {
			return err
		}

		cutoff := receipt.ReceivedAt.Add(-window)
		if prior.ReceivedAt.After(cutoff) {
			existing = &prior
			return nil
		}

		// Expired: take over only if nobody else refreshed it first.
		refresh := r.db.WithContext(ctx).
			Model(&model.WebhookReceipt{}).
			Where("external_id = ? AND received_at = ?", receipt.ExternalID, prior.ReceivedAt).
			Updates(map[string]any{
				"source":      receipt.Source,
				"message_id":  nil,
				"received_at": receipt.ReceivedAt,
			})
		if refresh.Error != nil {
			return refresh.Error
		}
		if refresh.RowsAffected == 0 {
			existing = &prior
			return nil
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, nil, mapDBError(err, "failed to claim webhook receipt %s", receipt.ExternalID)
	}
	return claimed, existing, nil
}

// AttachMessage links the receipt to the message written for it.
func (r *receiptRepo) AttachMessage(ctx context.Context, externalID, messageID string) error {
	err := withRetry(ctx, writeRetryMaxElapsedTime, "attach_message", "webhook_receipt", func() error {
		return r.db.WithContext(ctx).
			Model(&model.WebhookReceipt{}).
			Where("external_id = ?", externalID).
			Update("message_id", messageID).Error
	})
	return mapDBError(err, "failed to attach message to webhook receipt %s", externalID)
}

// Release deletes the receipt so a redelivery can be processed.
func (r *receiptRepo) Release(ctx context.Context, externalID string) error {
	err := withRetry(ctx, writeRetryMaxElapsedTime, "release", "webhook_receipt", func() error {
		return r.db.WithContext(ctx).
			Where("external_id = ?", externalID).
			Delete(&model.WebhookReceipt{}).Error
	})
	return mapDBError(err, "failed to release webhook receipt %s", externalID)
}
