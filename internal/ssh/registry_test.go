package ssh

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestLoadRegistryMissingFileIsEmpty(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reg.Servers) != 0 {
		t.Errorf("expected empty registry, got %d entries", len(reg.Servers))
	}
}

func TestRegistrySaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.toml")
	reg := &ServerRegistry{Servers: map[string]ServerEntry{
		"prod": {Host: "prod.example.com", User: "deploy", Port: 22, RemotePath: "~", Auth: AuthAuto},
	}}
	if err := reg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	entry, ok := loaded.Get("prod")
	if !ok {
		t.Fatal("expected prod entry to round-trip")
	}
	if entry.Host != "prod.example.com" || entry.User != "deploy" {
		t.Errorf("round-tripped entry mismatch: %+v", entry)
	}
}

func TestRegistryLoadMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.toml")
	if err := os.WriteFile(path, []byte("this is not [ valid toml"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRegistry(path); err == nil {
		t.Error("expected malformed TOML to produce an error")
	}
}

func TestChangedServers(t *testing.T) {
	old := &ServerRegistry{Servers: map[string]ServerEntry{
		"a": {Host: "a.example.com", User: "u", Port: 22, RemotePath: "~", Auth: AuthAuto},
		"b": {Host: "b.example.com", User: "u", Port: 22, RemotePath: "~", Auth: AuthAuto},
		"c": {Host: "c.example.com", User: "u", Port: 22, RemotePath: "~", Auth: AuthAuto},
	}}
	new := &ServerRegistry{Servers: map[string]ServerEntry{
		"a": {Host: "a.example.com", User: "u", Port: 22, RemotePath: "~", Auth: AuthAuto}, // unchanged
		"b": {Host: "b.example.com", User: "u", Port: 2222, RemotePath: "~", Auth: AuthAuto}, // port changed
		// "c" removed
	}}

	changed := old.ChangedServers(new)
	sort.Strings(changed)
	want := []string{"b", "c"}
	if len(changed) != len(want) {
		t.Fatalf("ChangedServers = %v, want %v", changed, want)
	}
	for i := range want {
		if changed[i] != want[i] {
			t.Errorf("ChangedServers = %v, want %v", changed, want)
		}
	}
}

func TestChangedServersIgnoresMetadataOnlyChange(t *testing.T) {
	distro := "ubuntu"
	distro2 := "debian"
	old := &ServerRegistry{Servers: map[string]ServerEntry{
		"a": {Host: "a.example.com", User: "u", Port: 22, RemotePath: "~", Auth: AuthAuto, Metadata: &SystemMetadata{Distro: &distro}},
	}}
	new := &ServerRegistry{Servers: map[string]ServerEntry{
		"a": {Host: "a.example.com", User: "u", Port: 22, RemotePath: "~", Auth: AuthAuto, Metadata: &SystemMetadata{Distro: &distro2}},
	}}
	if changed := old.ChangedServers(new); len(changed) != 0 {
		t.Errorf("expected metadata-only change to be ignored, got %v", changed)
	}
}

func TestSystemMetadataDiff(t *testing.T) {
	ubuntu, debian := "ubuntu", "debian"
	old := &SystemMetadata{Distro: &ubuntu}
	new := &SystemMetadata{Distro: &debian}
	if got := Diff(old, new); got == "" {
		t.Error("expected a non-empty diff")
	}
	if got := Diff(old, old); got != "" {
		t.Errorf("expected no diff against itself, got %q", got)
	}
}
