package model

// PauseRequest is the request to pause a contact's conversation.
type PauseRequest struct {
	ContactID string `json:"contactId" validate:"required,max=64"`
	Reason    string `json:"reason,omitempty" validate:"max=256"`
}

// PauseResponse is the response after a pause.
type PauseResponse struct {
	Success            bool               `json:"success"`
	Message            string             `json:"message"`
	ConversationID     string             `json:"conversationId"`
	ConversationStatus ConversationStatus `json:"conversationStatus"`
	Reason             string             `json:"reason"`
}

// ResumeRequest is the request to resume a contact's conversation.
type ResumeRequest struct {
	ContactID string `json:"contactId" validate:"required,max=64"`
}

// ResumeResponse is the response after a resume.
type ResumeResponse struct {
	Success                bool               `json:"success"`
	Message                string             `json:"message"`
	ConversationID         string             `json:"conversationId"`
	ConversationStatus     ConversationStatus `json:"conversationStatus"`
	BotpressConversationID string             `json:"botpressConversationId"`
	BotpressUserID         string             `json:"botpressUserId"`
}

// EndRequest is the request to end a contact's conversation.
type EndRequest struct {
	ContactID string `json:"contactId" validate:"required,max=64"`
	Reason    string `json:"reason,omitempty" validate:"max=256"`
}

// EndResponse is the response after ending a conversation.
type EndResponse struct {
	Success            bool               `json:"success"`
	Message            string             `json:"message"`
	ConversationID     string             `json:"conversationId"`
	ConversationStatus ConversationStatus `json:"conversationStatus"`
}

// ConversationStatusResponse is the conversation status read. Conversation is
// null when the status is not_started.
type ConversationStatusResponse struct {
	ContactID          string             `json:"contactId"`
	ConversationStatus ConversationStatus `json:"conversation_status"`
	Conversation       *Conversation      `json:"conversation"`
}

// AutomationToggleRequest is the request to enable or disable automation.
type AutomationToggleRequest struct {
	ContactID         string `json:"contactId" validate:"required,max=64"`
	AutomationEnabled *bool  `json:"automation_enabled" validate:"required"`
	Reason            string `json:"reason,omitempty" validate:"max=256"`
}

// AutomationToggleResponse is the response after a toggle.
type AutomationToggleResponse struct {
	Success             bool                 `json:"success"`
	ContactID           string               `json:"contactId"`
	AutomationEnabled   bool                 `json:"automation_enabled"`
	QualificationStatus *QualificationStatus `json:"qualification_status"`
}

// AutomationStatusResponse is the automation status read.
type AutomationStatusResponse struct {
	ContactID           string               `json:"contactId"`
	AutomationEnabled   bool                 `json:"automation_enabled"`
	QualificationStatus *QualificationStatus `json:"qualification_status"`
}

// AutomationPermittedResponse answers whether an automated send may go out now.
type AutomationPermittedResponse struct {
	ContactID string `json:"contactId"`
	Permitted bool   `json:"permitted"`
}

// InboundEvent is a message originated by the bot platform.
type InboundEvent struct {
	ConversationID string         `json:"conversationId"`
	Text           string         `json:"text"`
	UserID         string         `json:"userId,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ExternalMessageID returns the bot platform's message id, if the event carries one.
func (e *InboundEvent) ExternalMessageID() string {
	for _, key := range []string{"messageId", "botpressMessageId", "id"} {
		if v, ok := e.Metadata[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// InboundResponse is the response after an inbound webhook is processed.
type InboundResponse struct {
	Success        bool   `json:"success"`
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	Duplicate      bool   `json:"duplicate,omitempty"`
	// DeliveryStatus of the original message, set on duplicate deliveries.
	DeliveryStatus DeliveryStatus `json:"deliveryStatus,omitempty"`
}

// CarrierStatusCallback is a delivery report from the SMS carrier.
type CarrierStatusCallback struct {
	ProviderMessageID string
	Status            string
	ErrorCode         string
}

// CarrierReply is an SMS sent by the lead.
type CarrierReply struct {
	ProviderMessageID string
	From              string
	Body              string
}

// CarrierReplyResponse is the result of logging a lead reply.
type CarrierReplyResponse struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	ContactID      string `json:"contactId"`
	Duplicate      bool   `json:"duplicate,omitempty"`
}
