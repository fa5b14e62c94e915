package toolbox

import (
	"context"
	"encoding/json"
)

// Handler executes a tool with already-validated arguments and returns a
// JSON-serializable value.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Middleware wraps the handler of the named tool. Middlewares registered with
// ToolBox.Use run in registration order, the first one being the outermost.
type Middleware func(name string, next Handler) Handler

// Tool represents an executable tool with a name, description, JSON Schema, and handler.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     Handler
}

// Descriptor returns the handler-less view of the tool.
func (t Tool) Descriptor() Descriptor {
	return Descriptor{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: t.InputSchema,
	}
}

// Descriptor describes a tool to list-tools callers and to the chat model.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"parameters"`
}
