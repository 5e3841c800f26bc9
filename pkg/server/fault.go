package server

import (
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prismon/narrative-mcp/pkg/tools"
)

// Fault is a protocol-level failure that is reported to the client as a
// JSON-RPC error rather than as a tool result
type Fault struct {
	Code    int
	Message string
}

func (f *Fault) Error() string {
	return f.Message
}

// NewFault creates a Fault with a formatted message
func NewFault(code int, format string, args ...any) *Fault {
	return &Fault{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsFault maps any error onto a Fault. Registry errors keep their meaning;
// anything unrecognised becomes an internal error.
func AsFault(err error) *Fault {
	if err == nil {
		return nil
	}

	var fault *Fault
	if errors.As(err, &fault) {
		return fault
	}

	var unknown *tools.UnknownToolError
	if errors.As(err, &unknown) {
		return NewFault(mcp.METHOD_NOT_FOUND, "%s", unknown.Error())
	}

	var verr *tools.ValidationError
	if errors.As(err, &verr) {
		return NewFault(mcp.INVALID_PARAMS, "Invalid arguments for tool %s: %s", verr.Tool, verr.Error())
	}

	return NewFault(mcp.INTERNAL_ERROR, "%s", err.Error())
}
