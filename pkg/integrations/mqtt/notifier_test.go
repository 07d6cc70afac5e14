package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prefix, channel, want string
	}{
		{"autoflow/notifications", "ops", "autoflow/notifications/ops"},
		{"autoflow/notifications/", "ops", "autoflow/notifications/ops"},
		{"autoflow", "", "autoflow/general"},
		{"autoflow", "a/b#c+", "autoflow/a_b_c_"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Topic(tt.prefix, tt.channel))
	}
}
