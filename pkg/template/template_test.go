package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/autoflow/pkg/models"
)

func TestRenderString(t *testing.T) {
	t.Parallel()

	out, err := RenderString("Order {{ .id }} total {{ .total }}", map[string]any{"id": "A-1", "total": 10})
	require.NoError(t, err)
	assert.Equal(t, "Order A-1 total 10", out)

	out, err = RenderString("plain text", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)

	out, err = RenderString("Hi {{ .missing }}!", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Hi !", out)

	out, err = RenderString("{{ .user.missing }} and {{ if .flag }}{{ .absent }}{{ end }}.", map[string]any{
		"user": map[string]any{},
		"flag": true,
	})
	require.NoError(t, err)
	assert.Equal(t, " and .", out)

	out, err = RenderString("literal <no value> kept for {{ .id }}", map[string]any{"id": "A-1"})
	require.NoError(t, err)
	assert.Equal(t, "literal <no value> kept for A-1", out)

	out, err = RenderString("{{ .note }}", map[string]any{"note": "<no value>"})
	require.NoError(t, err)
	assert.Equal(t, "<no value>", out)

	out, err = RenderString(`{{ $id := .id }}{{ range .items }}{{ $id }}-{{ . }} {{ end }}`, map[string]any{
		"id":    "o",
		"items": []any{1, nil},
	})
	require.NoError(t, err)
	assert.Equal(t, "o-1 o- ", out)

	out, err = RenderString(`{{ default "anon" .name }}`, map[string]any{"name": ""})
	require.NoError(t, err)
	assert.Equal(t, "anon", out)

	out, err = RenderString(`{{ json .items }}`, map[string]any{"items": []any{"a"}})
	require.NoError(t, err)
	assert.Equal(t, `["a"]`, out)

	_, err = RenderString("{{ .name ", nil)
	assert.Error(t, err)
}

func TestRenderWithContext(t *testing.T) {
	t.Parallel()

	tc := models.TriggerContext{
		ExecutionID: "exec-1",
		WorkflowID:  "wf-1",
		Actor:       models.Actor{Name: "Ana", Email: "ana@example.com"},
		Payload:     map[string]any{"order": map[string]any{"id": "A-9"}},
	}

	out, err := RenderWithContext("{{ .actor.name }} placed {{ .trigger.order.id }} ({{ .workflow_id }})", tc)
	require.NoError(t, err)
	assert.Equal(t, "Ana placed A-9 (wf-1)", out)
}

func TestRenderValue(t *testing.T) {
	t.Parallel()

	tc := models.TriggerContext{Payload: map[string]any{"id": "42"}}

	out, err := RenderValue(map[string]any{
		"path":  "/orders/{{ .trigger.id }}",
		"count": 3,
		"tags":  []any{"order-{{ .trigger.id }}", true},
	}, tc)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"path":  "/orders/42",
		"count": 3,
		"tags":  []any{"order-42", true},
	}, out)
}
