// Package expander implements the Pipeline Expander of spec.md
// section 4.4: parse, validate, matrix-expand, substitute, and
// stage-group a Pipeline Configuration document into a DAG of concrete
// Work items.
package expander

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/chime-frb/workflow-go/pkg/models"
)

// knownTopLevelKeys enforces the fail-closed rule of spec.md section 4.4
// point 1: unknown top-level keys reject the document outright.
var knownTopLevelKeys = map[string]bool{
	"version": true, "name": true, "defaults": true,
	"matrix": true, "schedule": true, "pipeline": true,
}

// Parse decodes a Pipeline Configuration document, rejecting unknown
// top-level keys and populating each Step.Name from its mapping key
// (Step carries no name field of its own in the wire format).
func Parse(doc []byte) (*models.PipelineConfiguration, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(doc, &root); err != nil {
		return nil, fmt.Errorf("parse pipeline configuration: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("parse pipeline configuration: empty document")
	}
	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse pipeline configuration: document root must be a mapping")
	}
	for i := 0; i < len(mapping.Content); i += 2 {
		key := mapping.Content[i].Value
		if !knownTopLevelKeys[key] {
			return nil, fmt.Errorf("parse pipeline configuration: unknown top-level key %q", key)
		}
	}

	var cfg models.PipelineConfiguration
	if err := mapping.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse pipeline configuration: %w", err)
	}

	for name, step := range cfg.Pipeline {
		step.Name = name
		cfg.Pipeline[name] = step
	}

	return &cfg, nil
}
