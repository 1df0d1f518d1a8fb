package model

import (
	"time"
)

// EventType represents the type of lifecycle event.
type EventType string

const (
	EventConversationPaused  EventType = "conversation.paused"
	EventConversationResumed EventType = "conversation.resumed"
	EventConversationEnded   EventType = "conversation.ended"
	EventAutomationEnabled   EventType = "automation.enabled"
	EventAutomationDisabled  EventType = "automation.disabled"
	EventMessageDelivered    EventType = "message.delivered"
	EventMessageFailed       EventType = "message.failed"
	EventLeadReplied         EventType = "lead.replied"
)

// LifecycleEvent is published to the event stream after a persisted change.
type LifecycleEvent struct {
	ID             string         `json:"id"`
	Type           EventType      `json:"type"`
	ContactID      string         `json:"contact_id"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
