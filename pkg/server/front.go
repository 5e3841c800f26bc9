package server

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prismon/narrative-mcp/pkg/tools"
)

// Methods answered by the front instead of mcp-go
const (
	MethodToolsList     = "tools/list"
	MethodToolsCall     = "tools/call"
	MethodResourcesRead = "resources/read"
	MethodResourcesList = "resources/list"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// Front routes JSON-RPC messages. tools/list, tools/call, resources/read and
// resources/list are handled here so tools keep registry order, faults keep
// their JSON-RPC codes and the resource listing reflects the live store;
// everything else goes to the mcp-go server.
type Front struct {
	mcp        *server.MCPServer
	registry   *tools.Registry
	dispatcher *Dispatcher
	router     *Router
}

// NewFront creates a front over an mcp-go server and the core handlers
func NewFront(mcpServer *server.MCPServer, registry *tools.Registry, dispatcher *Dispatcher, router *Router) *Front {
	return &Front{mcp: mcpServer, registry: registry, dispatcher: dispatcher, router: router}
}

// HandleMessage processes one JSON-RPC message. It returns nil for
// notifications, which get no response.
func (f *Front) HandleMessage(ctx context.Context, raw json.RawMessage) any {
	var req rpcRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(json.RawMessage("null"), mcp.PARSE_ERROR, "Parse error: "+err.Error())
	}

	if len(req.ID) == 0 {
		return f.delegate(ctx, raw)
	}

	switch req.Method {
	case MethodToolsList:
		return respond(req.ID, &mcp.ListToolsResult{Tools: f.registry.AllTools()}, nil)

	case MethodToolsCall:
		var params struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments,omitempty"`
		}
		if err := decodeParams(req.Params, &params); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, "Invalid tools/call params: "+err.Error())
		}
		result, err := f.dispatcher.Dispatch(ctx, params.Name, params.Arguments)
		return respond(req.ID, result, err)

	case MethodResourcesRead:
		var params struct {
			URI string `json:"uri"`
		}
		if err := decodeParams(req.Params, &params); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, "Invalid resources/read params: "+err.Error())
		}
		if params.URI == "" {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, "uri is required")
		}
		result, err := f.router.Read(ctx, params.URI)
		return respond(req.ID, result, err)

	case MethodResourcesList:
		return respond(req.ID, f.router.List(), nil)

	default:
		return f.delegate(ctx, raw)
	}
}

func (f *Front) delegate(ctx context.Context, raw json.RawMessage) any {
	if resp := f.mcp.HandleMessage(ctx, raw); resp != nil {
		return resp
	}
	return nil
}

func decodeParams(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func respond(id json.RawMessage, result any, err error) *rpcResponse {
	if err != nil {
		fault := AsFault(err)
		return errorResponse(id, fault.Code, fault.Message)
	}
	return &rpcResponse{JSONRPC: mcp.JSONRPC_VERSION, ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string) *rpcResponse {
	return &rpcResponse{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	}
}
