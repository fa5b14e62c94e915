// Package tools provides the tool-dispatch layer and its MCP transports.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/finassist/pkg/tools/toolbox]: Tool type, ToolBox dispatch registry (schema validation, ordered listing, invoke by name) and the transport-neutral Caller interface
//   - [github.com/germanamz/finassist/pkg/tools/mcpserver]: MCP server exposing a ToolBox over stdio
//   - [github.com/germanamz/finassist/pkg/tools/mcpclient]: MCP client that spawns a server process and implements Caller with one request in flight at a time
//
// The toolbox sub-package is the foundation layer. mcpserver depends on
// toolbox; mcpclient depends on toolbox and on mcpserver's error-kind key.
// Both are thin wrappers around the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk).
package tools
