package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"dashed", "908-244-8429", "9082448429"},
		{"e164", "+19082448429", "9082448429"},
		{"parens", "(908) 244 8429", "9082448429"},
		{"eleven digits", "19082448429", "9082448429"},
		{"already canonical", "9082448429", "9082448429"},
		{"dotted", "908.244.8429", "9082448429"},
		{"international kept", "+447911123456", "447911123456"},
		{"empty", "", ""},
		{"letters only", "call me", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_FormatsResolveToSameKey(t *testing.T) {
	assert.Equal(t, Normalize("908-244-8429"), Normalize("+19082448429"))
}

func TestE164(t *testing.T) {
	assert.Equal(t, "+19082448429", E164("908-244-8429"))
	assert.Equal(t, "+19082448429", E164("+1 (908) 244-8429"))
	assert.Equal(t, "+447911123456", E164("+44 7911 123456"))
	assert.Equal(t, "", E164("n/a"))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("+19082448429"))
	assert.False(t, Valid("244-8429"))
}
