// Package sms sends outbound text messages through the carrier.
package sms

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by the disabled gateway.
var ErrNotConfigured = errors.New("sms gateway is not configured")

// Result is the carrier's acknowledgement of an accepted message.
type Result struct {
	ProviderMessageID string
	Status            string
}

// Gateway sends a text to a phone number.
type Gateway interface {
	Send(ctx context.Context, to, body string) (*Result, error)
}

// Disabled is a Gateway that refuses every send. It is used when no carrier
// credentials are configured so that messages are still logged as failed.
type Disabled struct{}

// Send always fails with ErrNotConfigured.
func (Disabled) Send(context.Context, string, string) (*Result, error) {
	return nil, ErrNotConfigured
}
