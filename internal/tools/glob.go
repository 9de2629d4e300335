package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	gwssh "github.com/ssh-hub/ssh-gateway/internal/ssh"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// globMaxResults caps how many paths a single glob call returns, mirroring
// the bound a shell "find | head" pipeline would apply so one broad
// pattern over a huge tree can't flood the response.
const globMaxResults = 1000

// globTimeout bounds how long the remote find invocation is allowed to
// run before the call is treated as a command timeout.
const globTimeout = 30 * time.Second

// registerGlobTool registers the glob tool: a remote "find" walk rooted at
// the session's working directory.
func registerGlobTool(s *server.MCPServer, d *gwssh.Dispatcher) {
	s.AddTool(
		mcp.NewTool("glob",
			mcp.WithDescription("List files under the server's working directory whose path matches a shell glob pattern"),
			mcp.WithString("server", mcp.Required(), mcp.Description("Configured server alias")),
			mcp.WithString("pattern", mcp.Required(), mcp.Description("Shell glob pattern, e.g. '*.log' or '**/*.conf'")),
		),
		createGlobHandler(d),
	)
}

func createGlobHandler(d *gwssh.Dispatcher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		alias, _ := req.RequireString("server")
		pattern, _ := req.RequireString("pattern")

		cmd := fmt.Sprintf("find . -path %s -type f 2>/dev/null | head -%d",
			shellQuote("./"+strings.TrimPrefix(pattern, "./")), globMaxResults)

		out, err := d.WithConnection(alias, func(sess *gwssh.Session) (string, error) {
			res, err := sess.Exec(ctx, cmd, globTimeout)
			if err != nil {
				return "", err
			}
			return res.Stdout, nil
		})
		if err != nil {
			gwssh.Log.Error().Err(err).Str("server", alias).Str("op", "glob").Msg("tool call failed")
			return mcp.NewToolResultError(err.Error()), nil
		}
		if strings.TrimSpace(out) == "" {
			return mcp.NewToolResultText("No files matched"), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}
