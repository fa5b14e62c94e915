package toolbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(_ context.Context, args map[string]any) (any, error) {
	return args, nil
}

func errorHandler(_ context.Context, _ map[string]any) (any, error) {
	return nil, errors.New("tool failed")
}

func newEchoTool(name string) Tool {
	return Tool{
		Name:        name,
		Description: "Echoes input",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler:     echoHandler,
	}
}

func newSymbolTool(name string) Tool {
	return Tool{
		Name:        name,
		Description: "Needs a symbol",
		InputSchema: json.RawMessage(`{
			"type":"object",
			"properties":{
				"symbol":{"type":"string"},
				"interval":{"type":"string","enum":["1min","5min"]}
			},
			"required":["symbol"]
		}`),
		Handler: echoHandler,
	}
}

type upstreamErr struct{}

func (upstreamErr) Error() string  { return "Alpha Vantage API error: 403" }
func (upstreamErr) Upstream() bool { return true }

// lookup finds a registered tool by name through the public listing.
func lookup(tb *ToolBox, name string) (Tool, bool) {
	for _, t := range tb.Tools() {
		if t.Name == name {
			return t, true
		}
	}

	return Tool{}, false
}

func TestNew(t *testing.T) {
	tb := New()
	assert.NotNil(t, tb)
	assert.Empty(t, tb.Tools())
	assert.Zero(t, tb.Len())
}

func TestRegisterAndLookup(t *testing.T) {
	tb := New()
	require.NoError(t, tb.Register(newEchoTool("echo")))

	got, ok := lookup(tb, "echo")
	assert.True(t, ok)
	assert.Equal(t, "echo", got.Name)
}

func TestLookupNotFound(t *testing.T) {
	tb := New()

	_, ok := lookup(tb, "missing")
	assert.False(t, ok)
}

func TestRegisterDuplicate(t *testing.T) {
	tb := New()
	require.NoError(t, tb.Register(Tool{Name: "tool", Description: "original", Handler: echoHandler}))

	err := tb.Register(Tool{Name: "tool", Description: "replaced", Handler: echoHandler})
	require.ErrorIs(t, err, ErrDuplicateTool)

	var dup *DuplicateNameError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "tool", dup.Name)

	got, ok := lookup(tb, "tool")
	require.True(t, ok)
	assert.Equal(t, "original", got.Description)
	assert.Equal(t, 1, tb.Len())
}

func TestRegisterInvalid(t *testing.T) {
	tests := []struct {
		name string
		tool Tool
	}{
		{"empty name", Tool{Handler: echoHandler}},
		{"no handler", Tool{Name: "x"}},
		{"bad json", Tool{Name: "x", Handler: echoHandler, InputSchema: json.RawMessage(`{`)}},
		{"not an object", Tool{Name: "x", Handler: echoHandler, InputSchema: json.RawMessage(`{"type":"string"}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := New()
			assert.Error(t, tb.Register(tt.tool))
			assert.Zero(t, tb.Len())
		})
	}
}

func TestRegisterDefaultsSchema(t *testing.T) {
	tb := New()
	require.NoError(t, tb.Register(Tool{Name: "bare", Handler: echoHandler}))

	got, _ := lookup(tb, "bare")
	assert.JSONEq(t, `{"type":"object"}`, string(got.InputSchema))
}

func TestToolsInRegistrationOrder(t *testing.T) {
	tb := New()
	require.NoError(t, tb.Register(newEchoTool("c"), newEchoTool("a"), newEchoTool("b")))

	names := make([]string, 0, 3)
	for _, d := range tb.List() {
		names = append(names, d.Name)
	}

	assert.Equal(t, []string{"c", "a", "b"}, names)
}

func TestCallSuccess(t *testing.T) {
	tb := New()
	require.NoError(t, tb.Register(newEchoTool("echo")))

	res := tb.Call(context.Background(), "echo", map[string]any{"msg": "hi"})
	assert.True(t, res.Success)
	assert.Empty(t, res.Error)
	assert.Equal(t, map[string]any{"msg": "hi"}, res.Data)
}

func TestCallNilArgs(t *testing.T) {
	tb := New()
	require.NoError(t, tb.Register(newEchoTool("echo")))

	res := tb.Call(context.Background(), "echo", nil)
	assert.True(t, res.Success)
	assert.Equal(t, map[string]any{}, res.Data)
}

func TestCallNotFound(t *testing.T) {
	tb := New()

	res := tb.Call(context.Background(), "does_not_exist", map[string]any{})
	assert.False(t, res.Success)
	assert.Equal(t, "Unknown tool: does_not_exist", res.Error)
	assert.Equal(t, KindUnknownTool, res.ErrorKind)
}

func TestCallMissingRequired(t *testing.T) {
	tb := New()
	require.NoError(t, tb.Register(newSymbolTool("get_stock_quote")))

	res := tb.Call(context.Background(), "get_stock_quote", map[string]any{})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "get_stock_quote")
	assert.Contains(t, res.Error, "symbol")
	assert.Equal(t, KindInvalidArguments, res.ErrorKind)
}

func TestCallInvalidEnum(t *testing.T) {
	tb := New()
	require.NoError(t, tb.Register(newSymbolTool("intraday")))

	res := tb.Call(context.Background(), "intraday", map[string]any{"symbol": "IBM", "interval": "2min"})
	assert.False(t, res.Success)
	assert.Equal(t, KindInvalidArguments, res.ErrorKind)
}

func TestCallHandlerError(t *testing.T) {
	tb := New()
	require.NoError(t, tb.Register(Tool{Name: "fail", Handler: errorHandler}))

	res := tb.Call(context.Background(), "fail", nil)
	assert.False(t, res.Success)
	assert.Equal(t, "fail: tool failed", res.Error)
	assert.Equal(t, KindHandler, res.ErrorKind)
}

func TestCallUpstreamError(t *testing.T) {
	tb := New()
	require.NoError(t, tb.Register(Tool{
		Name: "quote",
		Handler: func(context.Context, map[string]any) (any, error) {
			return nil, errors.Join(errors.New("fetch"), upstreamErr{})
		},
	}))

	res := tb.Call(context.Background(), "quote", nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "403")
	assert.Equal(t, KindUpstream, res.ErrorKind)
}

func TestCallRecoversPanic(t *testing.T) {
	tb := New()
	require.NoError(t, tb.Register(Tool{
		Name: "boom",
		Handler: func(context.Context, map[string]any) (any, error) {
			panic("kaboom")
		},
	}))

	res := tb.Call(context.Background(), "boom", nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "kaboom")
	assert.Equal(t, KindHandler, res.ErrorKind)
}

func TestUseMiddlewareOrder(t *testing.T) {
	tb := New()
	require.NoError(t, tb.Register(newEchoTool("echo")))

	var trace []string
	mark := func(label string) Middleware {
		return func(name string, next Handler) Handler {
			return func(ctx context.Context, args map[string]any) (any, error) {
				trace = append(trace, label+":"+name)
				return next(ctx, args)
			}
		}
	}
	tb.Use(mark("outer"), mark("inner"))

	res := tb.Call(context.Background(), "echo", nil)
	require.True(t, res.Success)
	assert.Equal(t, []string{"outer:echo", "inner:echo"}, trace)
}

func TestConcurrentCalls(t *testing.T) {
	tb := New()
	require.NoError(t, tb.Register(newEchoTool("echo")))

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := tb.Call(context.Background(), "echo", map[string]any{"i": float64(i)})
			assert.True(t, res.Success)
			assert.Equal(t, map[string]any{"i": float64(i)}, res.Data)
		}()
	}
	wg.Wait()
}

func TestLocalCaller(t *testing.T) {
	tb := New()
	require.NoError(t, tb.Register(newEchoTool("echo")))

	c := Local(tb)

	list, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "echo", list[0].Name)

	res, err := c.Call(context.Background(), "missing", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestResultJSON(t *testing.T) {
	data, err := json.Marshal(Fail(KindUnknownTool, "Unknown tool: %s", "x"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"Unknown tool: x","error_kind":"unknown_tool"}`, string(data))

	data, err = json.Marshal(Ok(map[string]any{"price": "1.0"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":{"price":"1.0"}}`, string(data))
}
