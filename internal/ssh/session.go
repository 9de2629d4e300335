package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	stdinChunkSize       = 32 * 1024
	channelOpenTimeout   = 10 * time.Second
	keepaliveInterval    = 30 * time.Second
	keepaliveMaxFailures = 3
)

// ConnectionParams names everything needed to dial and authenticate to one
// remote alias. It is produced from a registry entry and is immutable for
// the life of a Session.
type ConnectionParams struct {
	Alias      string
	Host       string
	User       string
	Port       int
	RemotePath string
	Identity   string
	AuthMethod AuthMethod
}

func (p ConnectionParams) addr() string {
	return net.JoinHostPort(p.Host, fmt.Sprintf("%d", p.Port))
}

// Session wraps one live *ssh.Client. Channel opens are serialized through
// mu; once a channel is open, its I/O proceeds independently of mu so a
// slow command on one channel never blocks another call from opening its
// own channel — except for the brief window the open itself takes.
type Session struct {
	params ConnectionParams

	mu     sync.Mutex
	client *ssh.Client

	forceClosed atomic.Bool
}

// Connect dials params.Host, authenticates via the ladder described by
// params.AuthMethod, and verifies the host key on a first-use basis
// against knownHostsPath.
func Connect(params ConnectionParams, knownHostsPath string) (*Session, error) {
	rungs, err := buildLadder(params)
	if err != nil {
		return nil, err
	}
	methods, tried := authMethods(rungs)
	if len(methods) == 0 {
		return nil, &AuthenticationFailed{Alias: params.Alias, MethodsTried: tried, Err: fmt.Errorf("no usable credentials found")}
	}

	hostKeyCb, err := tofuHostKeyCallback(knownHostsPath)
	if err != nil {
		return nil, &ConfigError{Alias: params.Alias, Msg: "preparing known_hosts", Err: err}
	}

	config := &ssh.ClientConfig{
		User:            params.User,
		Auth:            methods,
		HostKeyCallback: hostKeyCb,
		Timeout:         15 * time.Second,
	}

	client, err := ssh.Dial("tcp", params.addr(), config)
	if err != nil {
		var hostKeyErr *HostKeyChanged
		if errors.As(err, &hostKeyErr) {
			return nil, hostKeyErr
		}
		if isAuthError(err) {
			return nil, &AuthenticationFailed{Alias: params.Alias, MethodsTried: tried, Err: err}
		}
		return nil, &ConnectError{Alias: params.Alias, Host: params.Host, Err: err}
	}

	s := &Session{params: params, client: client}
	s.startKeepalive()
	return s, nil
}

func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "no supported methods remain")
}

// startKeepalive sends a periodic keepalive request and force-closes the
// session after keepaliveMaxFailures consecutive failures, the same policy
// a dropped or wedged network connection needs so a stale Session doesn't
// sit in the pool looking healthy.
func (s *Session) startKeepalive() {
	go func() {
		failures := 0
		ticker := time.NewTicker(keepaliveInterval)
		defer ticker.Stop()
		for range ticker.C {
			if s.forceClosed.Load() {
				return
			}
			_, _, err := s.client.SendRequest("keepalive@openssh.com", true, nil)
			if err != nil {
				failures++
				if failures >= keepaliveMaxFailures {
					s.markClosed()
					return
				}
				continue
			}
			failures = 0
		}
	}()
}

func (s *Session) markClosed() {
	s.forceClosed.Store(true)
	if s.client != nil {
		s.client.Close()
	}
}

// newTestSession builds a Session with no underlying transport, for tests
// that only exercise pool/dispatcher bookkeeping (eviction, locking)
// without dialing a real host.
func newTestSession(alias string) *Session {
	return &Session{params: ConnectionParams{Alias: alias}}
}

// IsClosed reports whether this session has been force-closed: by a
// keepalive failure, a channel-open timeout, a hot-reload eviction, or
// shutdown. A closed Session is never
// reused; the pool evicts it on next access.
func (s *Session) IsClosed() bool {
	return s.forceClosed.Load()
}

// Params returns the connection parameters this session was built from.
func (s *Session) Params() ConnectionParams { return s.params }

// ExecResult is the outcome of one command execution.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Exec runs command in the session's working directory, returning its
// stdout and stderr as separate strings plus its exit status. If timeout is non-zero,
// it bounds only the read loop after the channel is open — a long-running
// but still-open channel is considered a command timeout, not a session
// failure, so the session itself is not closed.
func (s *Session) Exec(ctx context.Context, command string, timeout time.Duration) (ExecResult, error) {
	channel, err := s.openChannel()
	if err != nil {
		return ExecResult{}, err
	}
	defer channel.Close()

	fullCommand := fmt.Sprintf("cd %s && %s", ShellEscapeRemotePath(s.params.RemotePath), command)
	var stdout, stderr bytes.Buffer
	channel.Stdout = &stdout
	channel.Stderr = &stderr
	if err := channel.Start(fullCommand); err != nil {
		return ExecResult{}, fmt.Errorf("starting command: %w", err)
	}

	type readOutcome struct {
		res ExecResult
		err error
	}
	done := make(chan readOutcome, 1)
	go func() {
		exitCode := waitExitCode(channel)
		done <- readOutcome{res: ExecResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode}}
	}()

	if timeout <= 0 {
		out := <-done
		return out.res, out.err
	}
	select {
	case out := <-done:
		return out.res, out.err
	case <-time.After(timeout):
		return ExecResult{}, &CommandTimeout{Alias: s.params.Alias, Command: command}
	case <-ctx.Done():
		return ExecResult{}, ctx.Err()
	}
}

func waitExitCode(channel *ssh.Session) int {
	err := channel.Wait()
	if err == nil {
		return 0
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus()
	}
	return -1
}

// WriteStdin streams data to command's stdin in stdinChunkSize pieces,
// closing stdin once all of it has been written, then collects command's
// stdout, stderr and exit status the same way Exec does. If timeout is non-zero, it
// bounds the read loop exactly as it does in Exec: a long-running but
// still-open channel is a command timeout, not a session failure.
func (s *Session) WriteStdin(ctx context.Context, command string, data []byte, timeout time.Duration) (ExecResult, error) {
	channel, err := s.openChannel()
	if err != nil {
		return ExecResult{}, err
	}
	defer channel.Close()

	fullCommand := fmt.Sprintf("cd %s && %s", ShellEscapeRemotePath(s.params.RemotePath), command)
	var stdout, stderr bytes.Buffer
	channel.Stdout = &stdout
	channel.Stderr = &stderr

	stdin, err := channel.StdinPipe()
	if err != nil {
		return ExecResult{}, fmt.Errorf("opening stdin: %w", err)
	}
	if err := channel.Start(fullCommand); err != nil {
		return ExecResult{}, fmt.Errorf("starting command: %w", err)
	}

	go func() {
		for off := 0; off < len(data); off += stdinChunkSize {
			end := off + stdinChunkSize
			if end > len(data) {
				end = len(data)
			}
			if _, err := stdin.Write(data[off:end]); err != nil {
				break
			}
		}
		stdin.Close()
	}()

	type readOutcome struct {
		res ExecResult
		err error
	}
	done := make(chan readOutcome, 1)
	go func() {
		exitCode := waitExitCode(channel)
		done <- readOutcome{res: ExecResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode}}
	}()

	if timeout <= 0 {
		out := <-done
		return out.res, out.err
	}
	select {
	case out := <-done:
		return out.res, out.err
	case <-time.After(timeout):
		return ExecResult{}, &CommandTimeout{Alias: s.params.Alias, Command: command}
	case <-ctx.Done():
		return ExecResult{}, ctx.Err()
	}
}

// openChannel serializes session creation behind mu and enforces the
// channel-open deadline: on timeout the session is force-closed so the
// pool evicts it rather than leaving a half-open client around for the
// next caller to trip over.
func (s *Session) openChannel() (*ssh.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.forceClosed.Load() {
		return nil, &NotConnected{Alias: s.params.Alias}
	}

	type openResult struct {
		channel *ssh.Session
		err     error
	}
	resultCh := make(chan openResult, 1)
	go func() {
		channel, err := s.client.NewSession()
		resultCh <- openResult{channel: channel, err: err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			return nil, fmt.Errorf("opening channel: %w", r.err)
		}
		return r.channel, nil
	case <-time.After(channelOpenTimeout):
		s.markClosed()
		return nil, &ChannelOpenTimeout{Alias: s.params.Alias}
	}
}

// tofuHostKeyCallback implements trust-on-first-use: a host seen for the
// first time is recorded into knownHostsPath and accepted; a host whose
// recorded key no longer matches what the server presents is a fatal
// HostKeyChanged, never silently overridden.
func tofuHostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if err := os.MkdirAll(filepath.Dir(knownHostsPath), 0o700); err != nil {
		return nil, fmt.Errorf("creating known_hosts dir: %w", err)
	}
	if _, err := os.OpenFile(knownHostsPath, os.O_CREATE, 0o600); err != nil {
		return nil, fmt.Errorf("creating known_hosts file: %w", err)
	}

	base, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("reading known_hosts: %w", err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := base(hostname, remote, key)
		if err == nil {
			return nil
		}
		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) {
			Log.Warn().Err(err).Str("host", hostname).Msg("known_hosts check failed, accepting permissively")
			return nil
		}
		if len(keyErr.Want) == 0 {
			return learnHostKey(knownHostsPath, hostname, key)
		}
		return &HostKeyChanged{
			Host:           hostname,
			KnownHostsPath: knownHostsPath,
			KnownHostsLine: fmt.Sprintf("%d", keyErr.Want[0].Line),
		}
	}, nil
}

func learnHostKey(knownHostsPath, hostname string, key ssh.PublicKey) error {
	f, err := os.OpenFile(knownHostsPath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("opening known_hosts for append: %w", err)
	}
	defer f.Close()
	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("writing known_hosts entry: %w", err)
	}
	Log.Info().Str("host", hostname).Msg("learned new host key")
	return nil
}
