package internal

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// fixtureSchema describes a Django loaddata payload.
var fixtureSchema = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type":     "object",
		"required": []string{"model", "pk", "fields"},
		"properties": map[string]any{
			"model":  map[string]any{"type": "string", "pattern": `^[a-z0-9_]+\.[a-z0-9_]+$`},
			"pk":     map[string]any{"type": "integer", "minimum": 1},
			"fields": map[string]any{"type": "object"},
		},
	},
}

// FixtureValidator checks generated fixtures before they are written.
type FixtureValidator struct {
	resolved *jsonschema.Resolved
}

func NewFixtureValidator() (*FixtureValidator, error) {
	schemaBytes, err := json.Marshal(fixtureSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fixture schema: %w", err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(schemaBytes, &schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into jsonschema.Schema: %w", err)
	}
	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve fixture schema: %w", err)
	}
	return &FixtureValidator{resolved: resolved}, nil
}

// Validate accepts the encoded fixture document.
func (v *FixtureValidator) Validate(data []byte) error {
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("failed to unmarshal fixtures: %w", err)
	}
	if err := v.resolved.Validate(instance); err != nil {
		return fmt.Errorf("fixture validation failed: %w", err)
	}
	return nil
}
