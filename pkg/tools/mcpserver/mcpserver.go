// Package mcpserver serves a toolbox over MCP (newline-delimited JSON-RPC 2.0)
// using the official MCP Go SDK. The SDK answers initialize and tools/list;
// tools/call is dispatched through the toolbox so arguments are validated
// the same way for every transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"

	"github.com/germanamz/finassist/pkg/tools/toolbox"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const (
	// ErrorKindKey is the structured-content key carrying the toolbox.ErrorKind
	// of a failed call.
	ErrorKindKey = "error_kind"

	// IndexKey is the tool _meta key carrying the tool's registration index.
	// tools/list answers in name order; clients sort by it to recover the
	// registry's order.
	IndexKey = "finassist/index"
)

// MCPServer serves tools over the MCP protocol using the official MCP Go SDK.
type MCPServer struct {
	server *mcp.Server
	tools  *toolbox.ToolBox
	logger *zap.Logger
}

// New creates a new MCPServer with the given name and version that exposes
// every tool registered in tb at the time of the call.
func New(name, version string, tb *toolbox.ToolBox, logger *zap.Logger) *MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    name,
		Version: version,
	}, nil)

	s := &MCPServer{server: server, tools: tb, logger: logger}
	for i, t := range tb.Tools() {
		server.AddTool(toSDKTool(t, i), s.handler(t.Name))
	}

	return s
}

// Serve starts serving MCP requests. It reads requests from in and writes
// responses to out. It blocks until ctx is cancelled or the transport closes.
func (s *MCPServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	transport := &mcp.IOTransport{
		Reader: io.NopCloser(in),
		Writer: nopWriteCloser{out},
	}

	return s.Run(ctx, transport)
}

// Run serves MCP requests on an arbitrary SDK transport, such as the
// in-memory transports used in tests.
func (s *MCPServer) Run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

// toSDKTool converts a toolbox.Tool to an SDK *mcp.Tool.
func toSDKTool(t toolbox.Tool, index int) *mcp.Tool {
	return &mcp.Tool{
		Meta:        mcp.Meta{IndexKey: index},
		Name:        t.Name,
		Description: t.Description,
		InputSchema: t.InputSchema,
	}
}

// handler dispatches an SDK tool call to the toolbox. Data is returned as one
// JSON text item; failures set IsError and carry the error kind.
func (s *MCPServer) handler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]any{}
		if raw := req.Params.Arguments; len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil || args == nil {
				args = map[string]any{}
			}
		}

		res := s.tools.Call(ctx, name, args)
		if !res.Success {
			s.logger.Debug("tool call failed",
				zap.String("tool", name),
				zap.String("kind", string(res.ErrorKind)),
				zap.String("error", res.Error),
			)

			return errorResult(res), nil
		}

		text, err := json.Marshal(res.Data)
		if err != nil {
			return errorResult(toolbox.Fail(toolbox.KindHandler, "%s: encode result: %v", name, err)), nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(text)}},
		}, nil
	}
}

func errorResult(res toolbox.Result) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: res.Error}},
		StructuredContent: map[string]any{ErrorKindKey: string(res.ErrorKind)},
		IsError:           true,
	}
}

// nopWriteCloser wraps an io.Writer as an io.WriteCloser with a no-op Close.
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
