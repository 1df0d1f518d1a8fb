package model

import (
	"github.com/capitalize-ai/lead-automation/internal/apperrors"
)

// Action is a request to move a conversation through its lifecycle.
type Action string

const (
	ActionPause              Action = "pause"
	ActionResume             Action = "resume"
	ActionEnd                Action = "end"
	ActionOutreachInitiated  Action = "outreach_initiated"
	ActionAutomationDisabled Action = "automation_disabled"
	ActionInboundWebhook     Action = "inbound_webhook"
)

type transitionKey struct {
	from   ConversationStatus
	action Action
}

type transitionRule struct {
	to      ConversationStatus
	changed bool
	reject  string
}

func moveTo(to ConversationStatus) transitionRule { return transitionRule{to: to, changed: true} }
func stay(s ConversationStatus) transitionRule    { return transitionRule{to: s} }
func reject(msg string) transitionRule            { return transitionRule{reject: msg} }

var transitions = map[transitionKey]transitionRule{
	{StatusNotStarted, ActionPause}:              reject("cannot pause: no conversation has been started for this contact"),
	{StatusNotStarted, ActionResume}:             reject("cannot resume: no conversation exists for this contact, initiate outreach instead"),
	{StatusNotStarted, ActionEnd}:                reject("cannot end: no conversation exists for this contact"),
	{StatusNotStarted, ActionOutreachInitiated}:  moveTo(StatusActive),
	{StatusNotStarted, ActionAutomationDisabled}: stay(StatusNotStarted),

	{StatusActive, ActionPause}:              moveTo(StatusPaused),
	{StatusActive, ActionResume}:             stay(StatusActive),
	{StatusActive, ActionEnd}:                moveTo(StatusEnded),
	{StatusActive, ActionOutreachInitiated}:  stay(StatusActive),
	{StatusActive, ActionAutomationDisabled}: moveTo(StatusPaused),
	{StatusActive, ActionInboundWebhook}:     stay(StatusActive),

	{StatusPaused, ActionPause}:              stay(StatusPaused),
	{StatusPaused, ActionResume}:             moveTo(StatusActive),
	{StatusPaused, ActionEnd}:                moveTo(StatusEnded),
	{StatusPaused, ActionOutreachInitiated}:  stay(StatusPaused),
	{StatusPaused, ActionAutomationDisabled}: stay(StatusPaused),
	{StatusPaused, ActionInboundWebhook}:     stay(StatusPaused),

	{StatusEnded, ActionPause}:              reject("cannot pause an ended conversation"),
	{StatusEnded, ActionResume}:             reject("cannot resume an ended conversation, use the reset flow to start a new one"),
	{StatusEnded, ActionEnd}:                stay(StatusEnded),
	{StatusEnded, ActionOutreachInitiated}:  reject("conversation has ended, a new conversation must be created to re-engage"),
	{StatusEnded, ActionAutomationDisabled}: stay(StatusEnded),
	{StatusEnded, ActionInboundWebhook}:     stay(StatusEnded),
}

// NextStatus applies action to from. It returns the resulting status and
// whether the status changed; rejected moves return an InvalidTransition error.
func NextStatus(from ConversationStatus, action Action) (ConversationStatus, bool, error) {
	rule, ok := transitions[transitionKey{from, action}]
	if !ok {
		return from, false, apperrors.InvalidTransition("action %q is not valid from status %q", action, from)
	}
	if rule.reject != "" {
		return from, false, apperrors.InvalidTransition("%s", rule.reject)
	}
	return rule.to, rule.changed, nil
}

// StatusOf returns the lifecycle status of an optional current conversation.
func StatusOf(conv *Conversation) ConversationStatus {
	if conv == nil {
		return StatusNotStarted
	}
	return conv.ConversationStatus
}
