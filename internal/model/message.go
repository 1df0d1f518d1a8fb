package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/schema"
)

// Direction is relative to the system: outbound messages go to the lead.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// DeliveryStatus tracks a message through the SMS transport.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// Message sources.
const (
	SourceBotPlatform = "bot_platform"
	SourceSMS         = "sms"
)

// MessageTypeText is the only message type the service writes.
const MessageTypeText = "text"

// Message is an append-only record of one inbound or outbound message.
// Only delivery fields change after insert.
type Message struct {
	ID                string            `json:"id" gorm:"column:id;primaryKey;type:uuid"`
	ConversationID    string            `json:"conversation_id" gorm:"column:conversation_id;index"`
	Direction         Direction         `json:"direction" gorm:"column:direction;not null"`
	Source            string            `json:"source" gorm:"column:source"`
	MessageType       string            `json:"message_type" gorm:"column:message_type"`
	Content           string            `json:"content" gorm:"column:content"`
	DeliveryStatus    DeliveryStatus    `json:"delivery_status" gorm:"column:delivery_status;not null"`
	ExternalMessageID *string           `json:"external_message_id,omitempty" gorm:"column:external_message_id;index"`
	Metadata          datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb;column:metadata"`
	CreatedAt         time.Time         `json:"created_at" gorm:"column:created_at"`
	UpdatedAt         time.Time         `json:"updated_at" gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM, respecting the Namer.
func (Message) TableName(namer schema.Namer) string {
	return namer.TableName("messages")
}

// DeliveryUpdate records the outcome of a send attempt or carrier callback.
// Metadata keys are merged into the existing metadata.
type DeliveryUpdate struct {
	Status            DeliveryStatus
	ExternalMessageID *string
	Metadata          map[string]any
	UpdatedAt         time.Time
}

// Apply merges the update onto m.
func (u DeliveryUpdate) Apply(m *Message) {
	m.DeliveryStatus = u.Status
	if u.ExternalMessageID != nil {
		m.ExternalMessageID = u.ExternalMessageID
	}
	if len(u.Metadata) > 0 {
		if m.Metadata == nil {
			m.Metadata = datatypes.JSONMap{}
		}
		for k, v := range u.Metadata {
			m.Metadata[k] = v
		}
	}
	m.UpdatedAt = u.UpdatedAt
}
