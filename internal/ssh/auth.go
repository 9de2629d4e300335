package ssh

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// maxAgentKeys bounds how many identities offered by a running agent are
// attempted before moving on to the next rung. An agent loaded with many
// keys can otherwise exhaust a server's unauthenticated-attempt limit
// before the ladder ever reaches the keys this gateway actually expects to
// work.
const maxAgentKeys = 10

var defaultKeyNames = []string{"id_ed25519", "id_rsa", "id_ecdsa"}

// rung is one attempt in the ladder: a human-readable name for error
// reporting and the signer(s) it contributes.
type rung struct {
	name    string
	signers []ssh.Signer
}

// buildLadder assembles, in order, the rungs authenticate should try:
// explicit identity, then agent keys (capped), then the default key files
// under ~/.ssh. AuthAgent and AuthKey pin the ladder to a single rung and
// fail fast, as a ConfigError, if that rung's prerequisite isn't present.
func buildLadder(params ConnectionParams) ([]rung, error) {
	switch params.AuthMethod {
	case AuthAgent:
		r, err := agentRung()
		if err != nil {
			return nil, &ConfigError{Alias: params.Alias, Msg: "auth method \"agent\" requires a running ssh-agent", Err: err}
		}
		return []rung{r}, nil
	case AuthKey:
		if params.Identity == "" {
			return nil, &ConfigError{Alias: params.Alias, Msg: "auth method \"key\" requires an identity file"}
		}
		r, err := identityRung(params.Identity)
		if err != nil {
			return nil, &ConfigError{Alias: params.Alias, Msg: "loading identity file", Err: err}
		}
		return []rung{r}, nil
	default:
		var rungs []rung
		if params.Identity != "" {
			if r, err := identityRung(params.Identity); err == nil {
				rungs = append(rungs, r)
			}
		}
		if r, err := agentRung(); err == nil {
			rungs = append(rungs, r)
		}
		if r, ok := defaultKeysRung(); ok {
			rungs = append(rungs, r)
		}
		return rungs, nil
	}
}

func identityRung(path string) (rung, error) {
	signer, err := loadSigner(path)
	if err != nil {
		return rung{}, err
	}
	return rung{name: "identity:" + path, signers: []ssh.Signer{signer}}, nil
}

func agentRung() (rung, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return rung{}, fmt.Errorf("SSH_AUTH_SOCK not set")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return rung{}, fmt.Errorf("dialing agent socket: %w", err)
	}
	ag := agent.NewClient(conn)
	signers, err := ag.Signers()
	if err != nil {
		conn.Close()
		return rung{}, fmt.Errorf("listing agent identities: %w", err)
	}
	if len(signers) > maxAgentKeys {
		signers = signers[:maxAgentKeys]
	}
	return rung{name: "agent", signers: signers}, nil
}

func defaultKeysRung() (rung, bool) {
	home, err := os.UserHomeDir()
	if err != nil {
		return rung{}, false
	}
	var signers []ssh.Signer
	var names []string
	for _, name := range defaultKeyNames {
		path := filepath.Join(home, ".ssh", name)
		signer, err := loadSigner(path)
		if err != nil {
			continue
		}
		signers = append(signers, signer)
		names = append(names, name)
	}
	if len(signers) == 0 {
		return rung{}, false
	}
	return rung{name: fmt.Sprintf("default keys %v", names), signers: signers}, true
}

func loadSigner(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return signer, nil
}

// authMethods flattens the ladder into a single publickey ssh.AuthMethod
// whose signers keep rung order, so the handshake tries every key of one
// rung before any key of the next. A single method is required: the client
// attempts each auth method name at most once, so a second ssh.PublicKeys
// entry would never be offered after the first one failed.
func authMethods(rungs []rung) ([]ssh.AuthMethod, []string) {
	var signers []ssh.Signer
	names := make([]string, 0, len(rungs))
	for _, r := range rungs {
		if len(r.signers) == 0 {
			continue
		}
		signers = append(signers, r.signers...)
		names = append(names, r.name)
	}
	if len(signers) == 0 {
		return nil, names
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signers...)}, names
}
