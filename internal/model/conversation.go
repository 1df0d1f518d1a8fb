// Package model defines data structures for the lead automation service.
package model

import (
	"time"

	"gorm.io/gorm/schema"
)

// ConversationStatus is the lifecycle state of a lead conversation.
type ConversationStatus string

const (
	// StatusNotStarted has no row; it is the absence of a conversation.
	StatusNotStarted ConversationStatus = "not_started"
	StatusActive     ConversationStatus = "active"
	StatusPaused     ConversationStatus = "paused"
	StatusEnded      ConversationStatus = "ended"
)

// Pause reasons written to automation_pause_reason.
const (
	PauseReasonUser               = "user_paused"
	PauseReasonAutomationDisabled = "automation_disabled"
)

// Conversation is the messaging thread between the system and one contact.
// The current conversation for a contact is the most recently created row.
type Conversation struct {
	ID                     string             `json:"id" gorm:"column:id;primaryKey;type:uuid"`
	ContactID              string             `json:"contact_id" gorm:"column:contact_id;index"`
	ConversationStatus     ConversationStatus `json:"conversation_status" gorm:"column:conversation_status;not null"`
	AutomationPauseReason  *string            `json:"automation_pause_reason" gorm:"column:automation_pause_reason"`
	BotpressConversationID *string            `json:"botpress_conversation_id" gorm:"column:botpress_conversation_id"`
	BotpressUserID         *string            `json:"botpress_user_id" gorm:"column:botpress_user_id"`
	LastOutreachAttempt    *time.Time         `json:"last_outreach_attempt" gorm:"column:last_outreach_attempt"`
	EndedAt                *time.Time         `json:"ended_at" gorm:"column:ended_at"`
	CreatedAt              time.Time          `json:"created_at" gorm:"column:created_at;index"`
	UpdatedAt              time.Time          `json:"updated_at" gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM, respecting the Namer.
func (Conversation) TableName(namer schema.Namer) string {
	return namer.TableName("conversations")
}

// HasIntegrationIDs reports whether both bot platform correlation ids are set.
func (c *Conversation) HasIntegrationIDs() bool {
	return c.BotpressConversationID != nil && *c.BotpressConversationID != "" &&
		c.BotpressUserID != nil && *c.BotpressUserID != ""
}

// PauseReason returns the pause reason or "".
func (c *Conversation) PauseReason() string {
	if c.AutomationPauseReason == nil {
		return ""
	}
	return *c.AutomationPauseReason
}

// ConversationUpdate holds the mutable lifecycle columns of a conversation.
type ConversationUpdate struct {
	Status      ConversationStatus
	PauseReason *string
	EndedAt     *time.Time
	UpdatedAt   time.Time
}

// Apply copies the update onto c.
func (u ConversationUpdate) Apply(c *Conversation) {
	c.ConversationStatus = u.Status
	c.AutomationPauseReason = u.PauseReason
	c.EndedAt = u.EndedAt
	c.UpdatedAt = u.UpdatedAt
}

// ConversationSummary is the trimmed view echoed in webhook diagnostics.
type ConversationSummary struct {
	ID                 string             `json:"id"`
	ContactID          string             `json:"contact_id"`
	ConversationStatus ConversationStatus `json:"conversation_status"`
	CreatedAt          time.Time          `json:"created_at"`
}

// Summaries trims conversations for diagnostics.
func Summaries(convs []Conversation) []ConversationSummary {
	out := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		out = append(out, ConversationSummary{
			ID:                 c.ID,
			ContactID:          c.ContactID,
			ConversationStatus: c.ConversationStatus,
			CreatedAt:          c.CreatedAt,
		})
	}
	return out
}
