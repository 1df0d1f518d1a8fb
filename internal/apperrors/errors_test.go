package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := InvalidTransition("cannot pause an ended conversation")

	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "cannot pause an ended conversation", err.Error())
}

func TestError_WrappedStillMatches(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := fmt.Errorf("load conversation: %w", Storage(cause, "failed to load conversation"))

	assert.True(t, errors.Is(err, ErrStorage))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "connection reset by peer")

	appErr, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, ErrStorage, appErr.Kind)
}

func TestError_WithDetail(t *testing.T) {
	err := NotFound("conversation not found").
		WithDetail("searchedId", "abc").
		WithDetail("recentConversations", []string{"x"})

	assert.Equal(t, "abc", err.Details["searchedId"])
	assert.Len(t, err.Details, 2)
	assert.True(t, IsNotFoundError(err))
}

func TestCheckers(t *testing.T) {
	assert.True(t, IsValidationError(Validation("text is required")))
	assert.True(t, IsMissingIntegrationDataError(MissingIntegrationData("missing ids")))
	assert.True(t, IsDeliveryError(Delivery(errors.New("twilio 21211"), "sms send failed")))
	assert.True(t, IsConflictError(Conflict("status changed")))
	assert.False(t, IsDuplicateError(Conflict("status changed")))
}
