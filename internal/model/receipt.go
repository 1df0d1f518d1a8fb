package model

import (
	"time"

	"gorm.io/gorm/schema"
)

// WebhookReceipt deduplicates at-least-once webhook deliveries by external id.
// MessageID stays nil until the message row for the claim is written.
type WebhookReceipt struct {
	ExternalID string    `json:"external_id" gorm:"column:external_id;primaryKey"`
	Source     string    `json:"source" gorm:"column:source"`
	MessageID  *string   `json:"message_id,omitempty" gorm:"column:message_id"`
	ReceivedAt time.Time `json:"received_at" gorm:"column:received_at;index"`
}

// TableName specifies the table name for GORM, respecting the Namer.
func (WebhookReceipt) TableName(namer schema.Namer) string {
	return namer.TableName("webhook_receipts")
}
