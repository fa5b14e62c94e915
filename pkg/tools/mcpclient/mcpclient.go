// Package mcpclient talks to a tool server over MCP. It is the subprocess
// side of the REST facade's proxy mode: the facade spawns the stdio server and
// forwards list and call requests through this client.
package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/germanamz/finassist/pkg/tools/mcpserver"
	"github.com/germanamz/finassist/pkg/tools/toolbox"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPClient communicates with an MCP server using the official MCP Go SDK.
// It implements toolbox.Caller. Exchanges are serialized: at most one request
// is in flight on the connection at a time.
type MCPClient struct {
	client  *mcp.Client
	session *mcp.ClientSession

	mu    sync.Mutex
	tools []toolbox.Descriptor
	names map[string]bool
}

// New spawns an MCP server process and returns a connected client. The child
// inherits the current environment and writes its logs to our stderr. The SDK
// performs the initialize handshake during Connect.
func New(ctx context.Context, command string, args ...string) (*MCPClient, error) {
	cmd := exec.Command(command, args...) //nolint:gosec // command is chosen by the operator
	cmd.Stderr = os.Stderr

	return Connect(ctx, &mcp.CommandTransport{Command: cmd})
}

// Connect creates an MCPClient over an arbitrary SDK transport, such as the
// in-memory transports used in tests.
func Connect(ctx context.Context, transport mcp.Transport) (*MCPClient, error) {
	client := mcp.NewClient(&mcp.Implementation{
		Name:    "finassist-proxy",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: connect: %w", err)
	}

	return &MCPClient{client: client, session: session}, nil
}

// List returns the server's tools in the server registry's order. The list is
// fetched once and cached; the server's registry does not change after
// start-up.
func (c *MCPClient) List(ctx context.Context) ([]toolbox.Descriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(ctx); err != nil {
		return nil, err
	}

	out := make([]toolbox.Descriptor, len(c.tools))
	copy(out, c.tools)

	return out, nil
}

func (c *MCPClient) loadLocked(ctx context.Context) error {
	if c.names != nil {
		return nil
	}

	result, err := c.session.ListTools(ctx, nil)
	if err != nil {
		return fmt.Errorf("mcpclient: list tools: %w", err)
	}

	sdkTools := result.Tools
	sort.SliceStable(sdkTools, func(i, j int) bool {
		return toolIndex(sdkTools[i]) < toolIndex(sdkTools[j])
	})

	tools := make([]toolbox.Descriptor, 0, len(sdkTools))
	names := make(map[string]bool, len(sdkTools))
	for _, sdkTool := range sdkTools {
		d, err := fromSDKTool(sdkTool)
		if err != nil {
			return fmt.Errorf("mcpclient: convert tool %q: %w", sdkTool.Name, err)
		}
		tools = append(tools, d)
		names[d.Name] = true
	}

	c.tools = tools
	c.names = names

	return nil
}

// Call invokes a tool on the server. Tool failures come back as a failed
// Result; the error return is reserved for transport failures.
func (c *MCPClient) Call(ctx context.Context, name string, args map[string]any) (toolbox.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(ctx); err != nil {
		return toolbox.Result{}, err
	}

	if !c.names[name] {
		return toolbox.Fail(toolbox.KindUnknownTool, "Unknown tool: %s", name), nil
	}

	if args == nil {
		args = map[string]any{}
	}

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return toolbox.Result{}, fmt.Errorf("mcpclient: call tool: %w", err)
	}

	return toResult(result), nil
}

// Close terminates the session. For a spawned server the SDK closes the
// child's stdin, waits, and escalates to signals if it does not exit.
func (c *MCPClient) Close() error {
	return c.session.Close()
}

// toolIndex reads the registration index mcpserver puts in a tool's _meta.
// Tools without one sort last, in the order the server sent them.
func toolIndex(t *mcp.Tool) float64 {
	switch v := t.Meta[mcpserver.IndexKey].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return math.MaxFloat64
	}
}

// fromSDKTool converts an SDK *mcp.Tool to a toolbox.Descriptor.
func fromSDKTool(sdkTool *mcp.Tool) (toolbox.Descriptor, error) {
	schemaBytes, err := json.Marshal(sdkTool.InputSchema)
	if err != nil {
		return toolbox.Descriptor{}, fmt.Errorf("marshal input schema: %w", err)
	}

	return toolbox.Descriptor{
		Name:        sdkTool.Name,
		Description: sdkTool.Description,
		InputSchema: json.RawMessage(schemaBytes),
	}, nil
}

// toResult decodes a CallToolResult produced by mcpserver. Non-JSON text from
// other servers is returned as a string.
func toResult(result *mcp.CallToolResult) toolbox.Result {
	text := extractText(result)

	if result.IsError {
		kind := toolbox.KindHandler
		if sc, ok := result.StructuredContent.(map[string]any); ok {
			if k, ok := sc[mcpserver.ErrorKindKey].(string); ok && k != "" {
				kind = toolbox.ErrorKind(k)
			}
		}

		if text == "" {
			text = "tool error"
		}

		return toolbox.Result{Error: text, ErrorKind: kind}
	}

	var data any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		data = text
	}

	return toolbox.Ok(data)
}

// extractText joins all TextContent items from a CallToolResult with newlines.
func extractText(result *mcp.CallToolResult) string {
	var texts []string
	for _, item := range result.Content {
		if tc, ok := item.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}

	return strings.Join(texts, "\n")
}
