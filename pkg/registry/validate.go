package registry

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/protocol"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateDefinition performs the save-time checks that the engine otherwise defers to
// run time: struct constraints, registered action types and handler config schemas.
// Templated config values are validated as plain strings.
func (r *Registry) ValidateDefinition(def *models.WorkflowDefinition) error {
	if def == nil {
		return errors.New("workflow definition is nil")
	}

	if err := validate.Struct(def); err != nil {
		return fmt.Errorf("workflow %s: %w", def.ID, err)
	}

	var errs []error

	for i, action := range def.Actions {
		handler, ok := r.Lookup(action.Type)
		if !ok {
			errs = append(errs, fmt.Errorf("action %d: unknown action type: %s", i, action.Type))

			continue
		}

		if err := protocol.ValidateHandlerConfig(action.Type, handler, action.Config); err != nil {
			errs = append(errs, fmt.Errorf("action %d: %w", i, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("workflow %s: %w", def.ID, errors.Join(errs...))
	}

	return nil
}
