package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeContent(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"strips trailing spaces per line", "hello  \nworld\t\n", "hello\nworld\n"},
		{"strips trailing carriage returns", "hello\r\nworld\r", "hello\nworld"},
		{"collapses three blank lines to two", "a\n\n\n\nb", "a\n\n\nb"},
		{"keeps two blank lines", "a\n\n\nb", "a\n\n\nb"},
		{"empty input unchanged", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeContent(tt.input))
		})
	}
}

func TestContentHashIgnoresTrailingWhitespace(t *testing.T) {
	a := ContentHash("line one\nline two")
	b := ContentHash("line one   \nline two\t")
	assert.Equal(t, a, b)
}

func TestContentHashDistinguishesContent(t *testing.T) {
	assert.NotEqual(t, ContentHash("page one"), ContentHash("page two"))
}

func TestContentHashIsBase64URL(t *testing.T) {
	hash := ContentHash("some content")
	// SHA-256 is 32 bytes; unpadded base64url is 43 characters
	assert.Len(t, hash, 43)
	assert.NotContains(t, hash, "+")
	assert.NotContains(t, hash, "/")
	assert.NotContains(t, hash, "=")
}
