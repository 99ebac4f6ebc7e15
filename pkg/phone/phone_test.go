package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already e164", "+14155551234", "+14155551234"},
		{"ten digit NA", "4155551234", "+14155551234"},
		{"eleven digit with country code", "14155551234", "+14155551234"},
		{"formatted NA", "(415) 555-1234", "+14155551234"},
		{"dots and spaces", "415.555.1234", "+14155551234"},
		{"plus with punctuation", "+1 (415) 555-1234", "+14155551234"},
		{"international with plus", "+442071838750", "+442071838750"},
		{"leading whitespace", "  +14155551234  ", "+14155551234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"letters", "call-me-maybe"},
		{"too short", "+1234"},
		{"leading zero after plus", "+0123456789"},
		{"nine digits no plus", "415555123"},
		{"eleven digits not starting with 1", "24155551234"},
		{"plus in the middle", "415+5551234"},
		{"too long", "+123456789012345678"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.input)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

// Normalizing an accepted output again must return it unchanged.
func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"+14155551234",
		"4155551234",
		"14155551234",
		"(212) 555-0100",
		"+442071838750",
	}
	for _, in := range inputs {
		first, err := Normalize(in)
		require.NoError(t, err, in)
		second, err := Normalize(first)
		require.NoError(t, err, first)
		assert.Equal(t, first, second)
		assert.True(t, Valid(second))
	}
}
