// Package ssh implements the connection pool, authentication ladder, server
// registry, and request dispatcher that make up the gateway's core.
package ssh

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Log is the package-level structured logger. Every subsystem in this
// package logs through it rather than the stdlib "log" package so that
// tool call tracing, connect attempts, and hot-reload events all carry
// consistent fields (server, host, op) a downstream log pipeline can filter on.
var Log zerolog.Logger

func init() {
	Log = NewLogger()
}

// NewLogger builds a zerolog logger configured from the environment.
// SSH_GATEWAY_DEBUG enables debug-level logging; SSH_GATEWAY_LOG_JSON
// switches from the human console writer to raw JSON lines (useful when
// stderr is shipped to a log aggregator instead of a terminal).
func NewLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if truthy(os.Getenv("SSH_GATEWAY_DEBUG")) {
		level = zerolog.DebugLevel
	}

	if truthy(os.Getenv("SSH_GATEWAY_LOG_JSON")) {
		return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(console).Level(level).With().Timestamp().Logger()
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
