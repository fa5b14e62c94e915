package toolbox

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

var emptyObjectSchema = json.RawMessage(`{"type":"object"}`)

// compileSchema parses and resolves a tool's input schema. Tools take a JSON
// object, so the root must be an object schema.
func compileSchema(raw json.RawMessage) (*jsonschema.Resolved, error) {
	if len(raw) == 0 {
		raw = emptyObjectSchema
	}

	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}

	if s.Type != "object" {
		return nil, errors.New("schema root must have type object")
	}

	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema: %w", err)
	}

	return resolved, nil
}
