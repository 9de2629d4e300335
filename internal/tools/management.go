package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	gwssh "github.com/ssh-hub/ssh-gateway/internal/ssh"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// metadataProbeCommand prints a handful of KEY=VALUE lines describing the
// remote platform. Each probe is best-effort: a missing tool just leaves
// its key unset rather than failing the whole command.
const metadataProbeCommand = `
ARCH=$(uname -m 2>/dev/null)
if [ -f /etc/os-release ]; then
  . /etc/os-release
  OS="linux"
  DISTRO="${PRETTY_NAME:-$NAME}"
elif [ "$(uname -s 2>/dev/null)" = "Darwin" ]; then
  OS="darwin"
  DISTRO="macOS $(sw_vers -productVersion 2>/dev/null)"
fi
SHELL_NAME=$(basename "${SHELL:-sh}")
for pm in apt dnf yum pacman apk brew; do
  if command -v "$pm" >/dev/null 2>&1; then
    PKG_MANAGER="$pm"
    break
  fi
done
echo "ARCH=$ARCH"
echo "OS=$OS"
echo "DISTRO=$DISTRO"
echo "SHELL=$SHELL_NAME"
echo "PKG_MANAGER=$PKG_MANAGER"
`

const metadataProbeTimeout = 15 * time.Second

// registerManagementTools registers list_servers and info, the two
// read-only tools that report on the Registry and the Pool rather than
// performing file or command operations on a remote host.
func registerManagementTools(s *server.MCPServer, d *gwssh.Dispatcher) {
	s.AddTool(
		mcp.NewTool("list_servers",
			mcp.WithDescription("List configured server aliases and whether each currently has a live connection"),
		),
		createListServersHandler(d),
	)

	s.AddTool(
		mcp.NewTool("info",
			mcp.WithDescription("Collect basic platform metadata (OS, distro, architecture, shell, package manager) from a remote server"),
			mcp.WithString("server", mcp.Required(), mcp.Description("Configured server alias")),
		),
		createInfoHandler(d),
	)
}

func createListServersHandler(d *gwssh.Dispatcher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reg := d.Registry()
		details := d.Pool().ListWithDetails(reg)
		sort.Slice(details, func(i, j int) bool { return details[i].Alias < details[j].Alias })

		if len(details) == 0 {
			return mcp.NewToolResultText("No servers configured"), nil
		}

		var b strings.Builder
		for _, detail := range details {
			status := "configured"
			if detail.Connected {
				status = "connected"
			}
			fmt.Fprintf(&b, "%s (%s) — %s@%s:%d — %s",
				detail.Alias, status, detail.Params.User, detail.Params.Host, detail.Params.Port, detail.Params.RemotePath)
			if entry, ok := reg.Get(detail.Alias); ok {
				if summary := entry.Metadata.SummaryLine(); summary != "" {
					fmt.Fprintf(&b, " — %s", summary)
				}
			}
			b.WriteString("\n")
		}
		return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
	}
}

func createInfoHandler(d *gwssh.Dispatcher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		alias, _ := req.RequireString("server")

		out, err := d.WithConnection(alias, func(sess *gwssh.Session) (string, error) {
			res, err := sess.Exec(ctx, metadataProbeCommand, metadataProbeTimeout)
			if err != nil {
				return "", err
			}
			meta := parseMetadata(res.Stdout)
			out := formatMetadata(meta)
			if entry, ok := d.Registry().Get(alias); ok {
				if changes := gwssh.Diff(entry.Metadata, meta); changes != "" {
					out += "\nchanged since last save: " + changes
				}
			}
			return out, nil
		})
		if err != nil {
			gwssh.Log.Error().Err(err).Str("server", alias).Str("op", "info").Msg("tool call failed")
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}

func parseMetadata(output string) *gwssh.SystemMetadata {
	fields := map[string]string{}
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok || value == "" {
			continue
		}
		fields[key] = value
	}

	meta := &gwssh.SystemMetadata{}
	assign := func(dst **string, key string) {
		if v, ok := fields[key]; ok {
			*dst = &v
		}
	}
	assign(&meta.OS, "OS")
	assign(&meta.Distro, "DISTRO")
	assign(&meta.Arch, "ARCH")
	assign(&meta.Shell, "SHELL")
	assign(&meta.PackageManager, "PKG_MANAGER")
	return meta
}

func formatMetadata(m *gwssh.SystemMetadata) string {
	deref := func(s *string) string {
		if s == nil {
			return "unknown"
		}
		return *s
	}
	return fmt.Sprintf("os: %s\ndistro: %s\narch: %s\nshell: %s\npackage_manager: %s",
		deref(m.OS), deref(m.Distro), deref(m.Arch), deref(m.Shell), deref(m.PackageManager))
}
