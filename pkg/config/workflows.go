package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dukex/autoflow/pkg/models"
)

type workflowsFile struct {
	Workflows []*models.WorkflowDefinition `yaml:"workflows"`
}

// LoadWorkflows reads workflow definitions from a YAML or JSON file. The file holds either a
// "workflows" list, a bare list or a single definition.
func LoadWorkflows(path string) ([]*models.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflows file %s: %w", path, err)
	}

	return ParseWorkflows(data)
}

func ParseWorkflows(data []byte) ([]*models.WorkflowDefinition, error) {
	var node yaml.Node
	err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&node)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to parse workflows: %w", err)
	}

	if len(node.Content) == 0 {
		return nil, nil
	}

	root := node.Content[0]

	switch root.Kind {
	case yaml.SequenceNode:
		var defs []*models.WorkflowDefinition
		if err := root.Decode(&defs); err != nil {
			return nil, fmt.Errorf("failed to parse workflows: %w", err)
		}

		return defs, nil

	case yaml.MappingNode:
		var file workflowsFile
		if err := root.Decode(&file); err != nil {
			return nil, fmt.Errorf("failed to parse workflows: %w", err)
		}

		if file.Workflows != nil {
			return file.Workflows, nil
		}

		var def models.WorkflowDefinition
		if err := root.Decode(&def); err != nil {
			return nil, fmt.Errorf("failed to parse workflow: %w", err)
		}

		return []*models.WorkflowDefinition{&def}, nil

	default:
		return nil, fmt.Errorf("failed to parse workflows: unexpected YAML node kind %d", root.Kind)
	}
}
