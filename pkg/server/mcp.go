package server

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/prismon/narrative-mcp/pkg/tools"
)

// Server identity reported during initialize
const (
	Name    = "narrative-mcp-server"
	Version = "0.1.0"
)

// NewMCPServer registers every tool and resource template with an mcp-go
// server. mcp-go answers initialize, ping and resources/templates/list
// from these registrations.
func NewMCPServer(registry *tools.Registry, dispatcher *Dispatcher, router *Router) *server.MCPServer {
	s := server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true), // subscribe=false, listChanged=true
	)

	for _, tool := range registry.AllTools() {
		s.AddTool(tool, dispatcher.Handle)
	}

	for _, template := range router.Templates() {
		s.AddResourceTemplate(template, router.HandleRead)
	}

	return s
}
