// Package service implements the conversation lifecycle, automation gating and
// webhook reconciliation for leads.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/capitalize-ai/lead-automation/internal/apperrors"
	"github.com/capitalize-ai/lead-automation/internal/model"
)

var tracer = otel.Tracer("github.com/capitalize-ai/lead-automation/internal/service")

// EventPublisher fans lifecycle events out to subscribers. Publishing is
// fire-and-forget; implementations handle their own failures.
type EventPublisher interface {
	Publish(ctx context.Context, event *model.LifecycleEvent)
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, *model.LifecycleEvent) {}

func newEvent(eventType model.EventType, contactID, conversationID, reason string, metadata map[string]any) *model.LifecycleEvent {
	return &model.LifecycleEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		Type:           eventType,
		ContactID:      contactID,
		ConversationID: conversationID,
		Reason:         reason,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}
}

type actorKey struct{}

// ContextWithActor records who is acting, for audit columns.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}

func requireContactID(contactID string) (string, error) {
	id := strings.TrimSpace(contactID)
	if id == "" {
		return "", apperrors.Validation("contactId is required")
	}
	return id, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
