// Package config loads the optional autoflow YAML file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dukex/autoflow/pkg/engine"
	"github.com/dukex/autoflow/pkg/integrations/ai"
	"github.com/dukex/autoflow/pkg/integrations/email"
	"github.com/dukex/autoflow/pkg/integrations/mqtt"
	"github.com/dukex/autoflow/pkg/metrics/influx"
	"github.com/dukex/autoflow/pkg/records"
)

// File is the structure of autoflow.yaml. Collaborator sections are optional; a nil section
// means the collaborator is not configured and a log-only fallback is used.
type File struct {
	Engine  engine.Config    `yaml:"engine"`
	Targets []records.Target `yaml:"targets" validate:"dive"`

	SMTP   *email.SMTPConfig `yaml:"smtp"`
	MQTT   *mqtt.Config      `yaml:"mqtt"`
	AI     *ai.Config        `yaml:"ai"`
	Influx *influx.Config    `yaml:"influx"`
}

// Default is used when no file is given.
func Default() *File {
	return &File{
		Engine:  engine.Config{ActionTimeout: engine.DefaultActionTimeout},
		Targets: records.DefaultTargets(),
	}
}

// Load reads and validates the file at path. An empty path yields Default().
func Load(path string) (*File, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes YAML config. Missing engine timeout and targets fall back to the defaults.
func Parse(data []byte) (*File, error) {
	cfg := Default()
	cfg.Targets = nil

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if cfg.Engine.ActionTimeout == 0 {
		cfg.Engine.ActionTimeout = engine.DefaultActionTimeout
	}

	if len(cfg.Targets) == 0 {
		cfg.Targets = records.DefaultTargets()
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and that the target allow-list is well formed.
func Validate(cfg *File) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed on %q", verrs[0].Namespace(), verrs[0].Tag())
		}

		return fmt.Errorf("invalid config: %w", err)
	}

	if _, err := records.NewTargets(cfg.Targets); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}
