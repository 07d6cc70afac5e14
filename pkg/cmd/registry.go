package cmd

import (
	"fmt"
	"log/slog"

	"github.com/dukex/autoflow/pkg/actions"
	"github.com/dukex/autoflow/pkg/registry"
)

// NewRegistry registers the built-in handlers first, so a plugin exporting the same type
// replaces the built-in one.
func NewRegistry(logger *slog.Logger, pluginsPath string, deps actions.Dependencies) (*registry.Registry, error) {
	reg := registry.New(logger.With("module", "registry"))

	err := actions.RegisterBuiltins(reg, deps, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to register built-in actions: %w", err)
	}

	if pluginsPath != "" {
		_, err = reg.LoadHandlerPlugins(pluginsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load action plugins: %w", err)
		}
	}

	return reg, nil
}
