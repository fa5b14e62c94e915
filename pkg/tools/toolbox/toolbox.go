package toolbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// entry is a registered tool together with its resolved input schema.
type entry struct {
	tool   Tool
	schema *jsonschema.Resolved
}

// ToolBox is the dispatch registry. It maps tool names to schemas and
// handlers, lists them in registration order, and invokes them by name.
// It is populated at start-up and only read afterwards.
type ToolBox struct {
	mu          sync.RWMutex
	tools       map[string]entry
	order       []string
	middlewares []Middleware
}

// New creates a new ToolBox ready for use.
func New() *ToolBox {
	return &ToolBox{
		tools: make(map[string]entry),
	}
}

// Register adds one or more tools to the ToolBox. Registration stops at the
// first tool that is invalid or whose name is already taken; tools before it
// remain registered.
func (tb *ToolBox) Register(tools ...Tool) error {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	for _, t := range tools {
		if t.Name == "" {
			return errors.New("toolbox: tool name is empty")
		}

		if t.Handler == nil {
			return fmt.Errorf("toolbox: tool %q has no handler", t.Name)
		}

		if _, ok := tb.tools[t.Name]; ok {
			return &DuplicateNameError{Name: t.Name}
		}

		schema, err := compileSchema(t.InputSchema)
		if err != nil {
			return fmt.Errorf("toolbox: tool %q: %w", t.Name, err)
		}

		if len(t.InputSchema) == 0 {
			t.InputSchema = emptyObjectSchema
		}

		tb.tools[t.Name] = entry{tool: t, schema: schema}
		tb.order = append(tb.order, t.Name)
	}

	return nil
}

// Use appends middlewares applied to every handler invocation.
func (tb *ToolBox) Use(mw ...Middleware) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.middlewares = append(tb.middlewares, mw...)
}

// Len returns the number of registered tools.
func (tb *ToolBox) Len() int {
	tb.mu.RLock()
	defer tb.mu.RUnlock()

	return len(tb.order)
}

// Tools returns all registered tools in registration order.
func (tb *ToolBox) Tools() []Tool {
	tb.mu.RLock()
	defer tb.mu.RUnlock()

	result := make([]Tool, 0, len(tb.order))
	for _, name := range tb.order {
		result = append(result, tb.tools[name].tool)
	}

	return result
}

// List returns the descriptors of all registered tools in registration order.
func (tb *ToolBox) List() []Descriptor {
	tools := tb.Tools()

	result := make([]Descriptor, 0, len(tools))
	for _, t := range tools {
		result = append(result, t.Descriptor())
	}

	return result
}

// Call validates args against the named tool's schema and runs its handler.
// It never returns an error: unknown tools, invalid arguments, handler errors
// and handler panics are all reported as a failed Result.
func (tb *ToolBox) Call(ctx context.Context, name string, args map[string]any) (res Result) {
	tb.mu.RLock()
	e, ok := tb.tools[name]
	mws := tb.middlewares
	tb.mu.RUnlock()

	if !ok {
		return Fail(KindUnknownTool, "Unknown tool: %s", name)
	}

	if args == nil {
		args = map[string]any{}
	}

	if err := e.schema.Validate(args); err != nil {
		return Fail(KindInvalidArguments, "%s: invalid arguments: %v", name, err)
	}

	h := e.tool.Handler
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](name, h)
	}

	defer func() {
		if r := recover(); r != nil {
			res = Fail(KindHandler, "%s: panic: %v", name, r)
		}
	}()

	data, err := h(ctx, args)
	if err != nil {
		return Fail(classify(err), "%s: %v", name, err)
	}

	return Ok(data)
}
