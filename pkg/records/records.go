// Package records is the generic key/value record store behind the task, record and report actions.
// Only allow-listed targets and columns are ever written; identifiers never come from action config.
package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

var (
	ErrUnknownTarget  = errors.New("unknown record target")
	ErrUnknownColumn  = errors.New("column not allowed for target")
	ErrRecordNotFound = errors.New("record not found")
)

// Target is an allow-listed destination for record writes.
type Target struct {
	Name      string   `json:"name"       yaml:"name"       validate:"required"`
	Table     string   `json:"table"      yaml:"table"      validate:"required"`
	KeyColumn string   `json:"key_column" yaml:"key_column" validate:"required"`
	Columns   []string `json:"columns"    yaml:"columns"    validate:"required,min=1"`
}

// Allows reports whether column may be written on this target.
func (t Target) Allows(column string) bool {
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}

	return false
}

// Store persists records for allow-listed targets.
type Store interface {
	Upsert(ctx context.Context, target Target, key string, fields map[string]any) error
	Get(ctx context.Context, target Target, key string) (map[string]any, error)
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Targets is the immutable allow-list of record targets.
type Targets struct {
	byName map[string]Target
}

// NewTargets validates every identifier of every target.
func NewTargets(targets []Target) (*Targets, error) {
	byName := make(map[string]Target, len(targets))

	for _, t := range targets {
		if t.Name == "" {
			return nil, errors.New("record target without name")
		}

		for _, id := range append([]string{t.Table, t.KeyColumn}, t.Columns...) {
			if !identifier.MatchString(id) {
				return nil, fmt.Errorf("record target %s: invalid identifier %q", t.Name, id)
			}
		}

		if _, dup := byName[t.Name]; dup {
			return nil, fmt.Errorf("record target %s declared twice", t.Name)
		}

		byName[t.Name] = t
	}

	return &Targets{byName: byName}, nil
}

// Resolve returns the target named name after checking that every field is an allowed column.
func (t *Targets) Resolve(name string, fields map[string]any) (Target, error) {
	target, ok := t.byName[name]
	if !ok {
		return Target{}, fmt.Errorf("%w: %s", ErrUnknownTarget, name)
	}

	var rejected []string

	for column := range fields {
		if !target.Allows(column) {
			rejected = append(rejected, column)
		}
	}

	if len(rejected) > 0 {
		sort.Strings(rejected)

		return Target{}, fmt.Errorf("%w %s: %v", ErrUnknownColumn, name, rejected)
	}

	return target, nil
}

// Names returns the allow-listed target names in sorted order.
func (t *Targets) Names() []string {
	names := make([]string, 0, len(t.byName))
	for name := range t.byName {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

const (
	TasksTarget   = "tasks"
	ReportsTarget = "reports"
)

// DefaultTargets are the targets the built-in task and report actions write to.
func DefaultTargets() []Target {
	return []Target{
		{
			Name:      TasksTarget,
			Table:     "tasks",
			KeyColumn: "id",
			Columns:   []string{"title", "description", "assignee", "priority", "due_date", "status", "scope_id", "workflow_id", "execution_id", "created_at"},
		},
		{
			Name:      ReportsTarget,
			Table:     "reports",
			KeyColumn: "id",
			Columns:   []string{"report_type", "title", "content", "scope_id", "workflow_id", "execution_id", "created_at"},
		},
	}
}

// Text renders a field value for stores that keep text columns. Scalars keep their
// natural form; everything else is JSON encoded.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}

		return string(data)
	}
}
