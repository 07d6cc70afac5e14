package actions

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/autoflow/pkg/protocol"
	"github.com/dukex/autoflow/pkg/registry"
)

func TestRegisterBuiltins(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.New(logger)

	require.NoError(t, RegisterBuiltins(reg, Dependencies{}, logger))

	assert.Equal(t, []string{
		"ai_analysis",
		"api_call",
		"create_task",
		"generate_report",
		"send_email",
		"send_notification",
		"update_record",
	}, reg.Types())

	for _, info := range reg.Describe() {
		assert.NotEmpty(t, info.Name, info.Type)
		assert.NotEmpty(t, info.Description, info.Type)
		assert.NotNil(t, info.Schema, info.Type)
	}
}

func TestBuiltins_SchemasAreValid(t *testing.T) {
	t.Parallel()

	handlers, err := Builtins(Dependencies{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	for _, handler := range handlers {
		provider, ok := handler.(protocol.SchemaProvider)
		require.True(t, ok, handler.Type())

		err := protocol.ValidateConfig(handler.Type(), provider.Schema(), map[string]any{})

		var cfgErr *protocol.ConfigError
		require.ErrorAs(t, err, &cfgErr, handler.Type())
		assert.NotEmpty(t, cfgErr.Missing, handler.Type())
	}
}
