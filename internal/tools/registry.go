// Package tools provides the MCP tool handlers exposed over stdio, each
// delegating its actual work to an internal/ssh Dispatcher.
package tools

import (
	gwssh "github.com/ssh-hub/ssh-gateway/internal/ssh"

	"github.com/mark3labs/mcp-go/server"
)

// RegisterAll wires every tool handler onto s, backed by d.
func RegisterAll(s *server.MCPServer, d *gwssh.Dispatcher) {
	registerBashTool(s, d)
	registerFileTools(s, d)
	registerGlobTool(s, d)
	registerSyncTools(s, d)
	registerManagementTools(s, d)
}
