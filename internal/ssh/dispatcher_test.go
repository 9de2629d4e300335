package ssh

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeRegistryTOML(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestDispatcherUnknownAliasMessage(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "servers.toml")
	writeRegistryTOML(t, configPath, "")

	d, err := NewDispatcher(NewPool(), configPath, filepath.Join(dir, "known_hosts"))
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	_, err = d.resolveConnection("nope")
	if err == nil {
		t.Fatal("expected an error for an unconfigured alias")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Errorf("expected *ConfigError, got %T", err)
	}
}

func TestDispatcherReusesPooledSession(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "servers.toml")
	writeRegistryTOML(t, configPath, "[servers.a]\nhost = \"h\"\nuser = \"u\"\nport = 22\nremote_path = \"~\"\nauth = \"auto\"\n")

	pool := NewPool()
	session := newTestSession("a")
	pool.Insert("a", session)

	d, err := NewDispatcher(pool, configPath, filepath.Join(dir, "known_hosts"))
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	got, err := d.resolveConnection("a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != session {
		t.Error("expected resolveConnection to reuse the pooled session without reconnecting")
	}
}

func TestMaybeReloadConfigEvictsOnlyChangedAliases(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "servers.toml")
	writeRegistryTOML(t, configPath, ""+
		"[servers.stable]\nhost = \"stable.example.com\"\nuser = \"u\"\nport = 22\nremote_path = \"~\"\nauth = \"auto\"\n\n"+
		"[servers.moved]\nhost = \"moved.example.com\"\nuser = \"u\"\nport = 22\nremote_path = \"~\"\nauth = \"auto\"\n")

	pool := NewPool()
	stableSession := newTestSession("stable")
	movedSession := newTestSession("moved")
	pool.Insert("stable", stableSession)
	pool.Insert("moved", movedSession)

	d, err := NewDispatcher(pool, configPath, filepath.Join(dir, "known_hosts"))
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	// Ensure the rewritten file gets a strictly later mtime than the first load.
	time.Sleep(10 * time.Millisecond)
	writeRegistryTOML(t, configPath, ""+
		"[servers.stable]\nhost = \"stable.example.com\"\nuser = \"u\"\nport = 22\nremote_path = \"~\"\nauth = \"auto\"\n\n"+
		"[servers.moved]\nhost = \"moved.example.com\"\nuser = \"u\"\nport = 2222\nremote_path = \"~\"\nauth = \"auto\"\n")
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(configPath, future, future); err != nil {
		t.Fatal(err)
	}

	d.maybeReloadConfig()

	if _, ok := pool.Get("stable"); !ok {
		t.Error("expected unchanged alias to remain pooled")
	}
	if pool.Contains("moved") {
		t.Error("expected changed alias to be evicted on reload")
	}
	if !movedSession.IsClosed() {
		t.Error("expected evicted session to be force-closed")
	}
}
