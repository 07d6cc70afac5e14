package protocol

import (
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

// ValidateConfig checks config against a JSON schema and returns a *ConfigError
// describing every violation, or nil when the config is valid.
func ValidateConfig(actionType string, schema map[string]any, config map[string]any) error {
	if schema == nil {
		return nil
	}

	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(config))
	if err != nil {
		return fmt.Errorf("%s: validating config: %w", actionType, err)
	}

	if result.Valid() {
		return nil
	}

	cfgErr := &ConfigError{ActionType: actionType}

	for _, resultErr := range result.Errors() {
		if resultErr.Type() == "required" {
			if property, ok := resultErr.Details()["property"].(string); ok {
				cfgErr.Missing = append(cfgErr.Missing, property)

				continue
			}
		}

		cfgErr.Problems = append(cfgErr.Problems, resultErr.String())
	}

	sort.Strings(cfgErr.Missing)

	return cfgErr
}

// ValidateHandlerConfig validates config when the handler provides a schema.
func ValidateHandlerConfig(actionType string, handler ActionHandler, config map[string]any) error {
	provider, ok := handler.(SchemaProvider)
	if !ok {
		return nil
	}

	return ValidateConfig(actionType, provider.Schema(), config)
}
