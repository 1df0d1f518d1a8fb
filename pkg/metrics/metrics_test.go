package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordSecondaryWriteFailure(t *testing.T) {
	before := testutil.ToFloat64(SecondaryWriteFailuresTotal.WithLabelValues("qualification_sync"))
	RecordSecondaryWriteFailure("qualification_sync")
	after := testutil.ToFloat64(SecondaryWriteFailuresTotal.WithLabelValues("qualification_sync"))
	assert.Equal(t, before+1, after)
}

func TestRecordTransition(t *testing.T) {
	c := ConversationTransitionsTotal.WithLabelValues("pause", "active", "paused", "applied")
	before := testutil.ToFloat64(c)
	RecordTransition("pause", "active", "paused", "applied")
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "ok", statusLabel(nil))
	assert.Equal(t, "error", statusLabel(errors.New("boom")))
}

func TestObserveDBOperation(t *testing.T) {
	ObserveDBOperation("find_by_id", "contact", 10*time.Millisecond, nil)
	ObserveDBOperation("find_by_id", "contact", 10*time.Millisecond, errors.New("boom"))
	assert.GreaterOrEqual(t, testutil.CollectAndCount(DBOperationDuration), 2)
}
