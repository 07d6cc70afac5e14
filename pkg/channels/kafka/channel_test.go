package kafka

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
)

func TestParseBrokers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, ParseBrokers(" k1:9092, ,k2:9092"))
	assert.Empty(t, ParseBrokers(""))
}

func TestCreateChannel_NoBrokers(t *testing.T) {
	t.Parallel()

	_, _, err := CreateChannel(watermill.NopLogger{}, nil, "autoflow")
	assert.ErrorIs(t, err, ErrNoBrokers)
}
