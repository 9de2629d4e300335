// Package main is the entry point for the SSH gateway's MCP server. It
// speaks stdio only: one process, one MCP client, a shared connection pool.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	gwssh "github.com/ssh-hub/ssh-gateway/internal/ssh"
	"github.com/ssh-hub/ssh-gateway/internal/tools"

	"github.com/mark3labs/mcp-go/server"
)

const serverName = "ssh-gateway"

// Injected at build time.
var commitSHA = "dev"

func main() {
	getEnv := func(key, fallback string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return fallback
	}

	defaultConfigPath, err := gwssh.ConfigPath()
	if err != nil {
		gwssh.Log.Fatal().Err(err).Msg("resolving default config path")
	}

	configEnv := getEnv("SSH_GATEWAY_CONFIG", defaultConfigPath)
	debugEnv := getEnv("SSH_GATEWAY_DEBUG", "false") == "true"

	configPath := flag.String("config", configEnv, "Path to the server registry (servers.toml)")
	debug := flag.Bool("debug", debugEnv, "Enable debug logging")
	flag.Parse()

	if *debug {
		os.Setenv("SSH_GATEWAY_DEBUG", "1")
		gwssh.Log = gwssh.NewLogger()
	}

	gwssh.Log.Info().Str("commit", commitSHA).Str("config", *configPath).Msg("starting ssh-gateway")

	knownHostsPath := getEnv("SSH_GATEWAY_KNOWN_HOSTS", defaultKnownHostsPath())

	pool := gwssh.NewPool()
	dispatcher, err := gwssh.NewDispatcher(pool, *configPath, knownHostsPath)
	if err != nil {
		gwssh.Log.Fatal().Err(err).Msg("loading server registry")
	}

	mcpServer := server.NewMCPServer(
		serverName,
		commitSHA,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	tools.RegisterAll(mcpServer, dispatcher)

	go handleShutdown(pool)

	if err := server.ServeStdio(mcpServer); err != nil {
		gwssh.Log.Fatal().Err(err).Msg("stdio server error")
	}
}

func defaultKnownHostsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "known_hosts"
	}
	return home + "/.ssh/known_hosts"
}

// handleShutdown closes every pooled session on SIGINT/SIGTERM so a
// restart doesn't leave orphaned SSH connections on the remote hosts.
func handleShutdown(pool *gwssh.Pool) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	gwssh.Log.Info().Msg("shutting down, closing pooled sessions")
	pool.CloseAll()
	os.Exit(0)
}
