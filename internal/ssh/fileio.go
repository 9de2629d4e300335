package ssh

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// fileTransferTimeout bounds a single read/write's remote cat invocation,
// independent of whatever per-command timeout a bash tool call might pass.
const fileTransferTimeout = 60 * time.Second

// ReadFile streams the full content of a remote file by running cat over
// the session's command channel, resolving relative paths against the
// session's working directory. There is no SFTP subsystem in play: the
// wire protocol has no shell tilde expansion, so a literal "~/..." path
// would never resolve against the server's real $HOME the way exec's
// "cd $HOME && ..." wrapper does.
func (s *Session) ReadFile(ctx context.Context, remotePath string) ([]byte, error) {
	full := NormalizeRemotePath(remotePath, s.params.RemotePath)
	cmd := fmt.Sprintf("cat %s", ShellEscapeRemotePath(full))
	res, err := s.Exec(ctx, cmd, fileTransferTimeout)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("reading %s: %s", full, strings.TrimSpace(res.Stderr))
	}
	return []byte(res.Stdout), nil
}

// WriteFile creates or truncates a remote file and writes data to it over
// the session's command channel, creating any missing parent directories
// first.
func (s *Session) WriteFile(ctx context.Context, remotePath string, data []byte) error {
	full := NormalizeRemotePath(remotePath, s.params.RemotePath)
	if dir := parentDir(full); dir != "" && dir != "." {
		mkdirRes, err := s.Exec(ctx, fmt.Sprintf("mkdir -p %s", ShellEscapeRemotePath(dir)), fileTransferTimeout)
		if err != nil {
			return err
		}
		if mkdirRes.ExitCode != 0 {
			return fmt.Errorf("creating parent directory for %s: %s", full, strings.TrimSpace(mkdirRes.Stderr))
		}
	}

	res, err := s.WriteStdin(ctx, fmt.Sprintf("cat > %s", ShellEscapeRemotePath(full)), data, fileTransferTimeout)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("writing %s: %s", full, strings.TrimSpace(res.Stderr))
	}
	return nil
}

func parentDir(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[:i]
		}
	}
	return ""
}
