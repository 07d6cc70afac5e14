package notify

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failing struct{ err error }

func (f failing) Notify(context.Context, Notification) error { return f.err }

func TestFanout(t *testing.T) {
	t.Parallel()

	rec := &Recorder{}
	boom := errors.New("broker down")

	fan := Fanout{LogNotifier{Logger: slog.New(slog.NewTextHandler(os.Stdout, nil))}, failing{err: boom}, rec}

	err := fan.Notify(context.Background(), Notification{Channel: "ops", Message: "deploy done"})
	require.ErrorIs(t, err, boom)

	sent := rec.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ops", sent[0].Channel)
}

func TestFanout_Empty(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Fanout{}.Notify(context.Background(), Notification{}))
}
