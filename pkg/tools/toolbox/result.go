package toolbox

import "fmt"

// ErrorKind classifies a failed tool call so transports can pick a status.
type ErrorKind string

const (
	KindUnknownTool      ErrorKind = "unknown_tool"
	KindInvalidArguments ErrorKind = "invalid_arguments"
	KindHandler          ErrorKind = "handler"
	KindUpstream         ErrorKind = "upstream"
)

// Result is the outcome of a tool call. Success is false iff Error is set.
type Result struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
}

// Ok returns a successful result carrying data.
func Ok(data any) Result {
	return Result{Success: true, Data: data}
}

// Fail returns a failed result of the given kind.
func Fail(kind ErrorKind, format string, args ...any) Result {
	return Result{
		Error:     fmt.Sprintf(format, args...),
		ErrorKind: kind,
	}
}
