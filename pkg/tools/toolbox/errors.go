package toolbox

import (
	"errors"
	"fmt"
)

// ErrDuplicateTool is matched by every DuplicateNameError.
var ErrDuplicateTool = errors.New("toolbox: duplicate tool")

// DuplicateNameError is returned by Register when a tool name is already taken.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("toolbox: tool %q already registered", e.Name)
}

func (e *DuplicateNameError) Is(target error) bool {
	return target == ErrDuplicateTool
}

// upstream is implemented by errors that originate from a remote service
// (the data provider or the chat service).
type upstream interface {
	Upstream() bool
}

// classify maps a handler error to the kind reported in Result.
func classify(err error) ErrorKind {
	var u upstream
	if errors.As(err, &u) && u.Upstream() {
		return KindUpstream
	}

	return KindHandler
}
