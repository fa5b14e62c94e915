package toolbox

import "context"

// Caller is the transport-neutral view of a registry: the REST facade and the
// websocket endpoint talk to a Caller, whether the registry lives in-process
// or behind a subprocess. The error return is reserved for transport
// failures; tool failures are reported in Result.
type Caller interface {
	List(ctx context.Context) ([]Descriptor, error)
	Call(ctx context.Context, name string, args map[string]any) (Result, error)
}

// Local adapts a ToolBox to the Caller interface.
func Local(tb *ToolBox) Caller {
	return localCaller{tb: tb}
}

type localCaller struct {
	tb *ToolBox
}

func (l localCaller) List(_ context.Context) ([]Descriptor, error) {
	return l.tb.List(), nil
}

func (l localCaller) Call(ctx context.Context, name string, args map[string]any) (Result, error) {
	return l.tb.Call(ctx, name, args), nil
}
