package model

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func TestTableNames(t *testing.T) {
	testCases := []struct {
		model    any
		expected string
	}{
		{model: &Contact{}, expected: "contacts"},
		{model: &Conversation{}, expected: "conversations"},
		{model: &Message{}, expected: "messages"},
		{model: &QualificationStatus{}, expected: "qualification_status"},
		{model: &WebhookReceipt{}, expected: "webhook_receipts"},
	}

	cache := &sync.Map{}
	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			s, err := schema.Parse(tc.model, cache, schema.NamingStrategy{})
			require.NoError(t, err)
			assert.Equal(t, tc.expected, s.Table)
		})
	}
}
