package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	gwssh "github.com/ssh-hub/ssh-gateway/internal/ssh"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// syncBaseDir gates sync_push/sync_pull's local side the same way
// ValidatePathWithin gates any other local filesystem access, preventing a
// local_path argument from escaping the directory the gateway was started
// to serve files from.
var syncBaseDir = mustGetwd()

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// registerSyncTools registers sync_push (local -> remote) and sync_pull
// (remote -> local), both moving the file with cat over a session's
// command channel (Session.WriteFile / Session.ReadFile).
func registerSyncTools(s *server.MCPServer, d *gwssh.Dispatcher) {
	s.AddTool(
		mcp.NewTool("sync_push",
			mcp.WithDescription("Upload a local file to a remote server over the SSH command channel"),
			mcp.WithString("server", mcp.Required(), mcp.Description("Configured server alias")),
			mcp.WithString("local_path", mcp.Required(), mcp.Description("Local file path, relative to the gateway's working directory")),
			mcp.WithString("remote_path", mcp.Required(), mcp.Description("Destination path on the remote server")),
		),
		createSyncPushHandler(d),
	)

	s.AddTool(
		mcp.NewTool("sync_pull",
			mcp.WithDescription("Download a remote file to local disk over the SSH command channel"),
			mcp.WithString("server", mcp.Required(), mcp.Description("Configured server alias")),
			mcp.WithString("remote_path", mcp.Required(), mcp.Description("Source path on the remote server")),
			mcp.WithString("local_path", mcp.Required(), mcp.Description("Local destination path, relative to the gateway's working directory")),
		),
		createSyncPullHandler(d),
	)
}

func createSyncPushHandler(d *gwssh.Dispatcher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		alias, _ := req.RequireString("server")
		localPath, _ := req.RequireString("local_path")
		remotePath, _ := req.RequireString("remote_path")

		localFull, err := gwssh.ValidatePathWithin(syncBaseDir, localPath)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		data, err := os.ReadFile(localFull)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("reading local file: %v", err)), nil
		}

		_, err = d.WithConnection(alias, func(sess *gwssh.Session) (string, error) {
			return "", sess.WriteFile(ctx, remotePath, data)
		})
		if err != nil {
			gwssh.Log.Error().Err(err).Str("server", alias).Str("op", "sync_push").Msg("tool call failed")
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Pushed %d bytes from %s to %s:%s", len(data), localPath, alias, remotePath)), nil
	}
}

func createSyncPullHandler(d *gwssh.Dispatcher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		alias, _ := req.RequireString("server")
		remotePath, _ := req.RequireString("remote_path")
		localPath, _ := req.RequireString("local_path")

		localFull, err := gwssh.ValidatePathWithin(syncBaseDir, localPath)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := d.WithConnection(alias, func(sess *gwssh.Session) (string, error) {
			b, err := sess.ReadFile(ctx, remotePath)
			return string(b), err
		})
		if err != nil {
			gwssh.Log.Error().Err(err).Str("server", alias).Str("op", "sync_pull").Msg("tool call failed")
			return mcp.NewToolResultError(err.Error()), nil
		}

		if err := os.MkdirAll(filepath.Dir(localFull), 0o755); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("creating local directory: %v", err)), nil
		}
		if err := os.WriteFile(localFull, []byte(data), 0o644); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("writing local file: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Pulled %d bytes from %s:%s to %s", len(data), alias, remotePath, localPath)), nil
	}
}
