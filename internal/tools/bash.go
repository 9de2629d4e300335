package tools

import (
	"context"
	"strconv"
	"time"

	gwssh "github.com/ssh-hub/ssh-gateway/internal/ssh"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// registerBashTool registers the bash tool: a straight command execution
// against a pooled session's working directory.
func registerBashTool(s *server.MCPServer, d *gwssh.Dispatcher) {
	s.AddTool(
		mcp.NewTool("bash",
			mcp.WithDescription("Execute a shell command on a remote server"),
			mcp.WithString("server", mcp.Required(), mcp.Description("Configured server alias")),
			mcp.WithString("command", mcp.Required(), mcp.Description("Shell command to execute")),
			mcp.WithNumber("timeout_ms", mcp.Description("Command timeout in milliseconds (default: no timeout)")),
		),
		createBashHandler(d),
	)
}

func createBashHandler(d *gwssh.Dispatcher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		alias, _ := req.RequireString("server")
		command, _ := req.RequireString("command")
		timeoutMs := req.GetInt("timeout_ms", 0)

		var timeout time.Duration
		if timeoutMs > 0 {
			timeout = time.Duration(timeoutMs) * time.Millisecond
		}

		out, err := d.WithConnection(alias, func(sess *gwssh.Session) (string, error) {
			res, err := sess.Exec(ctx, command, timeout)
			if err != nil {
				return "", err
			}
			return formatExecResult(res), nil
		})
		if err != nil {
			gwssh.Log.Error().Err(err).Str("server", alias).Str("op", "bash").Msg("tool call failed")
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}

func formatExecResult(res gwssh.ExecResult) string {
	out := res.Stdout
	if res.Stderr != "" {
		out += "\n--- stderr ---\n" + res.Stderr
	}
	if res.ExitCode != 0 {
		out += "\n--- exit code ---\n" + strconv.Itoa(res.ExitCode)
	}
	return out
}
