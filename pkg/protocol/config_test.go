package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value any
		want  []string
	}{
		{"single", "a@example.com", []string{"a@example.com"}},
		{"comma separated", "a@example.com, b@example.com", []string{"a@example.com", "b@example.com"}},
		{"list", []any{"a@example.com", " b@example.com "}, []string{"a@example.com", "b@example.com"}},
		{"string slice", []string{"a", ""}, []string{"a"}},
		{"missing", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, StringList(map[string]any{"to": tt.value}, "to"))
		})
	}
}

func TestStringOr(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "GET", StringOr(map[string]any{}, "method", "GET"))
	assert.Equal(t, "GET", StringOr(map[string]any{"method": "  "}, "method", "GET"))
	assert.Equal(t, "POST", StringOr(map[string]any{"method": "POST"}, "method", "GET"))
}
