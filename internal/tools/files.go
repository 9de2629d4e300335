package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	gwssh "github.com/ssh-hub/ssh-gateway/internal/ssh"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// registerFileTools registers the read/write/edit/validate tools.
func registerFileTools(s *server.MCPServer, d *gwssh.Dispatcher) {
	s.AddTool(
		mcp.NewTool("read",
			mcp.WithDescription("Read the contents of a remote file"),
			mcp.WithString("server", mcp.Required(), mcp.Description("Configured server alias")),
			mcp.WithString("path", mcp.Required(), mcp.Description("File path to read")),
		),
		createReadHandler(d),
	)

	s.AddTool(
		mcp.NewTool("write",
			mcp.WithDescription("Write content to a remote file. Validates syntax BEFORE writing for known file types (JSON, YAML, TOML, XML, INI, Dockerfile). Set skip_validate=true to bypass."),
			mcp.WithString("server", mcp.Required(), mcp.Description("Configured server alias")),
			mcp.WithString("path", mcp.Required(), mcp.Description("File path to write")),
			mcp.WithString("content", mcp.Required(), mcp.Description("Content to write")),
			mcp.WithBoolean("skip_validate", mcp.Description("Skip syntax validation before write (default: false)")),
		),
		createWriteHandler(d),
	)

	s.AddTool(
		mcp.NewTool("edit",
			mcp.WithDescription(`Powerful sed-like file editor. Supports multiple operations on any file type (YAML, JSON, conf, etc).

Operations (set via 'operation' parameter):
  replace      — Find and replace text (default). Exact literal match.
  regex        — Regex find and replace (sed-style). Use capture groups \1, \2, etc.
  insert       — Insert text at a specific line number (pushes existing content down).
  append       — Append text after a line matching a pattern, or at end of file if no pattern.
  prepend      — Prepend text before a line matching a pattern, or at start of file if no pattern.
  delete       — Delete lines matching a pattern or a line range.
  replace_line — Replace entire line(s) matching a pattern with new text.
`),
			mcp.WithString("server", mcp.Required(), mcp.Description("Configured server alias")),
			mcp.WithString("path", mcp.Required(), mcp.Description("File path to edit")),
			mcp.WithString("operation", mcp.Description("Operation: replace, regex, insert, append, prepend, delete, replace_line (default: replace)")),
			mcp.WithString("old_text", mcp.Description("Text to find (for 'replace' operation)")),
			mcp.WithString("new_text", mcp.Description("Replacement text (for 'replace' operation)")),
			mcp.WithString("pattern", mcp.Description("Regex pattern (for regex/append/prepend/delete/replace_line operations)")),
			mcp.WithString("replacement", mcp.Description("Replacement string with \\1 \\2 backrefs (for 'regex' operation)")),
			mcp.WithString("content", mcp.Description("Content to insert/append/prepend/replace_line")),
			mcp.WithNumber("line", mcp.Description("Line number for 'insert' operation (1-based)")),
			mcp.WithNumber("start_line", mcp.Description("Start line for range delete (1-based, inclusive)")),
			mcp.WithNumber("end_line", mcp.Description("End line for range delete (1-based, inclusive)")),
			mcp.WithBoolean("global", mcp.Description("Replace all occurrences (default: false for replace, true for regex)")),
		),
		createEditHandler(d),
	)

	s.AddTool(
		mcp.NewTool("validate",
			mcp.WithDescription(`Validate file syntax server-side (zero remote host dependencies). Auto-detects type from extension.

Supported formats: json, yaml, toml, xml, ini, env, dockerfile.`),
			mcp.WithString("server", mcp.Required(), mcp.Description("Configured server alias")),
			mcp.WithString("path", mcp.Required(), mcp.Description("File path to validate")),
			mcp.WithString("type", mcp.Description("Force file type (auto-detected from extension if omitted)")),
		),
		createValidateHandler(d),
	)
}

func createReadHandler(d *gwssh.Dispatcher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		alias, _ := req.RequireString("server")
		path, _ := req.RequireString("path")

		out, err := d.WithConnection(alias, func(sess *gwssh.Session) (string, error) {
			data, err := sess.ReadFile(ctx, path)
			if err != nil {
				return "", err
			}
			return string(data), nil
		})
		if err != nil {
			gwssh.Log.Error().Err(err).Str("server", alias).Str("op", "read").Msg("tool call failed")
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}

func createWriteHandler(d *gwssh.Dispatcher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		alias, _ := req.RequireString("server")
		path, _ := req.RequireString("path")
		content, _ := req.RequireString("content")
		skipValidate := req.GetBool("skip_validate", false)

		if !skipValidate {
			if fileType := detectFileType(path); fileType != "" {
				if result := ValidateContent(content, fileType); result != nil && !result.Valid {
					return mcp.NewToolResultError(fmt.Sprintf(
						"Syntax validation failed — file NOT written.\n%s\n\nFix the errors above or set skip_validate=true to force write.",
						result.FormatResult(path))), nil
				}
			}
		}

		_, err := d.WithConnection(alias, func(sess *gwssh.Session) (string, error) {
			return "", sess.WriteFile(ctx, path, []byte(content))
		})
		if err != nil {
			gwssh.Log.Error().Err(err).Str("server", alias).Str("op", "write").Msg("tool call failed")
			return mcp.NewToolResultError(err.Error()), nil
		}

		msg := fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), path)
		if !skipValidate {
			if fileType := detectFileType(path); fileType != "" {
				msg += fmt.Sprintf("\n✓ Syntax (%s): OK", fileType)
			}
		}
		return mcp.NewToolResultText(msg), nil
	}
}

func createEditHandler(d *gwssh.Dispatcher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		alias, _ := req.RequireString("server")
		path, _ := req.RequireString("path")
		operation := req.GetString("operation", "replace")

		cmd, errResult := buildEditCommand(req, operation, path)
		if errResult != nil {
			return errResult, nil
		}

		output, err := d.WithConnection(alias, func(sess *gwssh.Session) (string, error) {
			res, err := sess.Exec(ctx, cmd, 0)
			if err != nil {
				return "", err
			}
			if res.ExitCode != 0 {
				return "", fmt.Errorf("sed exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
			}
			return res.Stdout, nil
		})
		if err != nil {
			gwssh.Log.Error().Err(err).Str("server", alias).Str("op", "edit").Msg("tool call failed")
			return mcp.NewToolResultError(err.Error()), nil
		}

		msg := fmt.Sprintf("Successfully applied '%s' operation to %s", operation, path)
		if strings.TrimSpace(output) != "" {
			msg = output
		}

		if fileType := detectFileType(path); fileType != "" {
			if updated, readErr := d.WithConnection(alias, func(sess *gwssh.Session) (string, error) {
				data, err := sess.ReadFile(ctx, path)
				return string(data), err
			}); readErr == nil {
				if result := ValidateContent(updated, fileType); result != nil {
					if result.Valid {
						msg += fmt.Sprintf("\n✓ Syntax (%s): OK", fileType)
					} else {
						msg += fmt.Sprintf("\n\n⚠ Syntax (%s): BROKEN after edit\n%s", fileType, result.FormatResult(path))
					}
				}
			}
		}

		return mcp.NewToolResultText(msg), nil
	}
}

// buildEditCommand translates one edit operation into a sed invocation. It
// returns a non-nil *mcp.CallToolResult only when the request is malformed
// and no command should be run.
func buildEditCommand(req mcp.CallToolRequest, operation, path string) (string, *mcp.CallToolResult) {
	quotedPath := shellQuote(path)

	switch operation {
	case "replace":
		oldText := req.GetString("old_text", "")
		newText := req.GetString("new_text", "")
		if oldText == "" {
			return "", errResult("'old_text' is required for replace operation")
		}
		globalFlag := ""
		if req.GetBool("global", false) {
			globalFlag = "g"
		}
		return fmt.Sprintf("sed -i 's/%s/%s/%s' %s",
			sedEscapeLiteral(oldText), sedEscapeReplacement(newText), globalFlag, quotedPath), nil

	case "regex":
		pattern := req.GetString("pattern", "")
		replacement := req.GetString("replacement", "")
		if pattern == "" {
			return "", errResult("'pattern' is required for regex operation")
		}
		globalFlag := "g"
		if !req.GetBool("global", true) {
			globalFlag = ""
		}
		return fmt.Sprintf("sed -i -E 's/%s/%s/%s' %s",
			sedEscapePattern(pattern), sedEscapeReplacement(replacement), globalFlag, quotedPath), nil

	case "insert":
		lineNum := req.GetInt("line", 0)
		content := req.GetString("content", "")
		if lineNum <= 0 {
			return "", errResult("'line' (positive integer) is required for insert operation")
		}
		if content == "" {
			return "", errResult("'content' is required for insert operation")
		}
		return fmt.Sprintf("sed -i '%di\\%s' %s", lineNum, sedEscapeInsertText(content), quotedPath), nil

	case "append":
		content := req.GetString("content", "")
		pattern := req.GetString("pattern", "")
		if content == "" {
			return "", errResult("'content' is required for append operation")
		}
		if pattern != "" {
			return fmt.Sprintf("sed -i '/%s/a\\%s' %s", sedEscapePattern(pattern), sedEscapeInsertText(content), quotedPath), nil
		}
		return fmt.Sprintf("printf '\\n%%s' %s >> %s", shellQuote(content), quotedPath), nil

	case "prepend":
		content := req.GetString("content", "")
		pattern := req.GetString("pattern", "")
		if content == "" {
			return "", errResult("'content' is required for prepend operation")
		}
		if pattern != "" {
			return fmt.Sprintf("sed -i '/%s/i\\%s' %s", sedEscapePattern(pattern), sedEscapeInsertText(content), quotedPath), nil
		}
		return fmt.Sprintf("sed -i '1i\\%s' %s", sedEscapeInsertText(content), quotedPath), nil

	case "delete":
		pattern := req.GetString("pattern", "")
		startLine := req.GetInt("start_line", 0)
		endLine := req.GetInt("end_line", 0)
		switch {
		case pattern != "":
			return fmt.Sprintf("sed -i '/%s/d' %s", sedEscapePattern(pattern), quotedPath), nil
		case startLine > 0 && endLine > 0:
			return fmt.Sprintf("sed -i '%d,%dd' %s", startLine, endLine, quotedPath), nil
		case startLine > 0:
			return fmt.Sprintf("sed -i '%dd' %s", startLine, quotedPath), nil
		default:
			return "", errResult("'pattern' or 'start_line' is required for delete operation")
		}

	case "replace_line":
		pattern := req.GetString("pattern", "")
		content := req.GetString("content", "")
		if pattern == "" {
			return "", errResult("'pattern' is required for replace_line operation")
		}
		if content == "" {
			return "", errResult("'content' is required for replace_line operation")
		}
		return fmt.Sprintf("sed -i -E '/%s/c\\%s' %s",
			sedEscapePattern(pattern), sedEscapeInsertText(content), quotedPath), nil

	default:
		return "", errResult(fmt.Sprintf("Unknown operation: '%s'. Supported: replace, regex, insert, append, prepend, delete, replace_line", operation))
	}
}

func errResult(msg string) *mcp.CallToolResult {
	return mcp.NewToolResultError(msg)
}

func createValidateHandler(d *gwssh.Dispatcher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		alias, _ := req.RequireString("server")
		path, _ := req.RequireString("path")
		forceType := req.GetString("type", "")

		fileType := forceType
		if fileType == "" {
			fileType = detectFileType(path)
		}
		if fileType == "" {
			return mcp.NewToolResultError(fmt.Sprintf(
				"Cannot detect file type for '%s'. Use the 'type' parameter to specify: json, yaml, toml, xml, ini, env, dockerfile", path)), nil
		}

		content, err := d.WithConnection(alias, func(sess *gwssh.Session) (string, error) {
			data, err := sess.ReadFile(ctx, path)
			return string(data), err
		})
		if err != nil {
			gwssh.Log.Error().Err(err).Str("server", alias).Str("op", "validate").Msg("tool call failed")
			return mcp.NewToolResultError(err.Error()), nil
		}

		result := ValidateContent(content, fileType)
		if result == nil {
			return mcp.NewToolResultError(fmt.Sprintf("No server-side validator for type '%s'", fileType)), nil
		}
		return mcp.NewToolResultText(result.FormatResult(path)), nil
	}
}

var fileTypePatterns = []struct {
	pattern  string
	fileType string
}{
	{"*.json", "json"},
	{"*.yaml", "yaml"},
	{"*.yml", "yaml"},
	{"*.toml", "toml"},
	{"*.xml", "xml"},
	{"*.xsl", "xml"},
	{"*.xslt", "xml"},
	{"*.svg", "xml"},
	{"*.xhtml", "xml"},
	{"*.plist", "xml"},
	{"*.ini", "ini"},
	{"*.cfg", "ini"},
	{"*.conf", "ini"},
	{"*.env", "env"},
	{"dockerfile*", "dockerfile"},
	{".env*", "env"},
}

func detectFileType(path string) string {
	lower := strings.ToLower(path)
	base := lower
	if idx := strings.LastIndex(lower, "/"); idx >= 0 {
		base = lower[idx+1:]
	}
	for _, p := range fileTypePatterns {
		if matched, _ := filepath.Match(p.pattern, base); matched {
			return p.fileType
		}
	}
	return ""
}
