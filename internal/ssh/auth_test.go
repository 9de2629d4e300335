package ssh

import (
	"os"
	"testing"
)

func TestBuildLadderAgentRequiresSocket(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	_, err := buildLadder(ConnectionParams{Alias: "a", AuthMethod: AuthAgent})
	if err == nil {
		t.Fatal("expected an error when SSH_AUTH_SOCK is unset")
	}
	var cfgErr *ConfigError
	if !isConfigError(err, &cfgErr) {
		t.Errorf("expected a ConfigError, got %T: %v", err, err)
	}
}

func TestBuildLadderKeyRequiresIdentity(t *testing.T) {
	_, err := buildLadder(ConnectionParams{Alias: "a", AuthMethod: AuthKey})
	if err == nil {
		t.Fatal("expected an error when auth=key has no identity")
	}
	var cfgErr *ConfigError
	if !isConfigError(err, &cfgErr) {
		t.Errorf("expected a ConfigError, got %T: %v", err, err)
	}
}

func TestBuildLadderAutoWithNoCredentialsIsEmpty(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	t.Setenv("HOME", t.TempDir())
	rungs, err := buildLadder(ConnectionParams{Alias: "a", AuthMethod: AuthAuto})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rungs) != 0 {
		t.Errorf("expected no rungs with no identity, no agent, and no default keys, got %d", len(rungs))
	}
}

func TestDefaultKeysRungSkipsUnreadableFiles(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := os.MkdirAll(home+"/.ssh", 0o700); err != nil {
		t.Fatal(err)
	}
	// A file that exists but isn't a valid private key should be skipped,
	// not treated as a fatal error for the whole rung.
	if err := os.WriteFile(home+"/.ssh/id_rsa", []byte("not a key"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, ok := defaultKeysRung(); ok {
		t.Error("expected no usable default key when the only candidate file is malformed")
	}
}

func isConfigError(err error, target **ConfigError) bool {
	if ce, ok := err.(*ConfigError); ok {
		*target = ce
		return true
	}
	return false
}
