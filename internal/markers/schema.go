package markers

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Patterns is the ordered list of template alternatives for one target.
type Patterns []string

// Targets maps target names to their alternatives.
type Targets map[string]Patterns

// Document describes the marker file layout for schema generation. Parsing
// goes through yaml.Node instead so key order survives.
type Document struct {
	Markers map[string]Targets `json:"markers" jsonschema:"description=Anchor text mapped to the targets matched in its enclosing function. An empty mapping only locates the anchor."`
	Chains  map[string]Targets `json:"chains,omitempty" jsonschema:"description=Target name mapped to the targets matched in the function that target resolved to."`
}

// Schema returns the JSON schema of the marker file.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := reflector.Reflect(&Document{})
	schema.Title = "irscan marker set"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}
