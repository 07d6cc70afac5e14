// Package template renders Go text templates embedded in action configs.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"text/template/parse"
	"time"

	"github.com/dukex/autoflow/pkg/models"
)

var funcs = template.FuncMap{
	"now": func() string {
		return time.Now().UTC().Format(time.RFC3339)
	},
	"rand": func(max int) int {
		if max <= 0 {
			return 0
		}

		num := make([]byte, 1)

		_, err := rand.Read(num)
		if err != nil {
			return 0
		}

		return int(num[0]) % max
	},
	"json": func(v any) (string, error) {
		data, err := json.Marshal(v)

		return string(data), err
	},
	"default": func(fallback, v any) any {
		if v == nil {
			return fallback
		}

		if s, ok := v.(string); ok && s == "" {
			return fallback
		}

		return v
	},
	emptyIfNil: func(v any) any {
		if v == nil {
			return ""
		}

		return v
	},
}

const emptyIfNil = "emptyIfNil"

// NeedsTemplating reports whether s contains template actions.
func NeedsTemplating(s string) bool {
	return strings.Contains(s, "{{")
}

// RenderString executes templateStr against data and returns the raw text.
// Missing map keys render as empty strings.
func RenderString(templateStr string, data any) (string, error) {
	if !NeedsTemplating(templateStr) {
		return templateStr, nil
	}

	tmpl, err := template.New("config").Funcs(funcs).Option("missingkey=zero").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	// missingkey=zero still prints "<no value>" for the nil values of map[string]any.
	for _, t := range tmpl.Templates() {
		if t.Tree != nil {
			emptyNilOutput(t.Tree, t.Tree.Root)
		}
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return buf.String(), nil
}

// emptyNilOutput appends emptyIfNil to the pipeline of every action that prints.
func emptyNilOutput(tree *parse.Tree, node parse.Node) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}

		for _, child := range n.Nodes {
			emptyNilOutput(tree, child)
		}
	case *parse.ActionNode:
		pipe := n.Pipe
		if len(pipe.Decl) > 0 || len(pipe.Cmds) == 0 {
			return
		}

		last := pipe.Cmds[len(pipe.Cmds)-1]

		cmd, ok := last.Copy().(*parse.CommandNode)
		if !ok {
			return
		}

		cmd.Args = []parse.Node{parse.NewIdentifier(emptyIfNil).SetTree(tree).SetPos(last.Pos)}
		pipe.Cmds = append(pipe.Cmds, cmd)
	case *parse.IfNode:
		emptyNilOutput(tree, n.List)
		emptyNilOutput(tree, n.ElseList)
	case *parse.RangeNode:
		emptyNilOutput(tree, n.List)
		emptyNilOutput(tree, n.ElseList)
	case *parse.WithNode:
		emptyNilOutput(tree, n.List)
		emptyNilOutput(tree, n.ElseList)
	}
}

// RenderWithContext renders against the data a TriggerContext exposes to templates.
func RenderWithContext(input string, tc models.TriggerContext) (string, error) {
	return RenderString(input, tc.TemplateData())
}

// RenderValue renders every string found in v, descending into maps and slices.
// Non-string leaves are returned unchanged.
func RenderValue(v any, tc models.TriggerContext) (any, error) {
	data := tc.TemplateData()

	return renderValue(v, data)
}

func renderValue(v any, data map[string]any) (any, error) {
	switch x := v.(type) {
	case string:
		return RenderString(x, data)
	case map[string]any:
		out := make(map[string]any, len(x))

		for k, item := range x {
			rendered, err := renderValue(item, data)
			if err != nil {
				return nil, err
			}

			out[k] = rendered
		}

		return out, nil
	case []any:
		out := make([]any, len(x))

		for i, item := range x {
			rendered, err := renderValue(item, data)
			if err != nil {
				return nil, err
			}

			out[i] = rendered
		}

		return out, nil
	default:
		return v, nil
	}
}
