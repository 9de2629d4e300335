package ssh

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// AuthMethod names a rung selection for the authentication ladder: Auto
// runs the full ladder (identity, then agent, then default keys), Agent
// and Key pin the ladder to a single rung and fail fast if its
// prerequisite isn't met.
type AuthMethod string

const (
	AuthAuto  AuthMethod = "auto"
	AuthAgent AuthMethod = "agent"
	AuthKey   AuthMethod = "key"
)

// SystemMetadata is an optional, informational snapshot of a remote host's
// platform, collected by the info tool and never consulted by dispatch.
type SystemMetadata struct {
	OS             *string `toml:"os,omitempty"`
	Distro         *string `toml:"distro,omitempty"`
	Arch           *string `toml:"arch,omitempty"`
	Shell          *string `toml:"shell,omitempty"`
	PackageManager *string `toml:"package_manager,omitempty"`
	CollectedAt    *int64  `toml:"collected_at,omitempty"`
}

// SummaryLine renders the fields most useful for a human scanning
// list_servers output, omitting OS and shell to keep the line short.
func (m *SystemMetadata) SummaryLine() string {
	if m == nil {
		return ""
	}
	fields := []string{}
	for _, f := range []*string{m.Distro, m.Arch, m.PackageManager} {
		if f != nil && *f != "" {
			fields = append(fields, *f)
		}
	}
	return strings.Join(fields, "|")
}

// WithoutTimestamp returns a copy of m with CollectedAt cleared, used when
// comparing two snapshots for a meaningful change.
func (m *SystemMetadata) WithoutTimestamp() *SystemMetadata {
	if m == nil {
		return nil
	}
	cp := *m
	cp.CollectedAt = nil
	return &cp
}

// Diff reports which fields changed between old and new metadata, ignoring
// CollectedAt. Returns "" if nothing comparable changed.
func Diff(old, new *SystemMetadata) string {
	if old == nil || new == nil {
		return ""
	}
	var changes []string
	cmp := func(name string, a, b *string) {
		av, bv := strPtr(a), strPtr(b)
		if av != bv {
			changes = append(changes, fmt.Sprintf("%s: %s -> %s", name, av, bv))
		}
	}
	cmp("os", old.OS, new.OS)
	cmp("distro", old.Distro, new.Distro)
	cmp("arch", old.Arch, new.Arch)
	cmp("shell", old.Shell, new.Shell)
	cmp("package_manager", old.PackageManager, new.PackageManager)
	return strings.Join(changes, ", ")
}

func strPtr(s *string) string {
	if s == nil {
		return "(unset)"
	}
	return *s
}

// ServerEntry is one configured remote target.
type ServerEntry struct {
	Host       string          `toml:"host"`
	User       string          `toml:"user"`
	Port       int             `toml:"port"`
	RemotePath string          `toml:"remote_path"`
	Identity   string          `toml:"identity,omitempty"`
	Auth       AuthMethod      `toml:"auth"`
	Metadata   *SystemMetadata `toml:"metadata,omitempty"`
}

func (e ServerEntry) normalized() ServerEntry {
	if e.Port == 0 {
		e.Port = DefaultPort
	}
	if e.RemotePath == "" {
		e.RemotePath = DefaultRemotePath
	}
	if e.Auth == "" {
		e.Auth = AuthAuto
	}
	return e
}

// connectionParams projects a registry entry into the fields Connect needs,
// independent of how the entry is persisted.
func (e ServerEntry) connectionParams(alias string) ConnectionParams {
	e = e.normalized()
	var identity string
	if e.Identity != "" {
		identity = expandTilde(e.Identity)
	}
	return ConnectionParams{
		Alias:      alias,
		Host:       e.Host,
		User:       e.User,
		Port:       e.Port,
		RemotePath: e.RemotePath,
		Identity:   identity,
		AuthMethod: e.Auth,
	}
}

func expandTilde(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		if p == "~" {
			return home
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~/"))
	}
	return p
}

// ServerRegistry is the on-disk set of configured aliases, loaded from
// servers.toml and consulted by the dispatcher on every cold connect.
type ServerRegistry struct {
	Servers map[string]ServerEntry `toml:"servers"`
}

// ConfigPath returns the default registry location, honoring
// SSH_GATEWAY_CONFIG_HOME the way the teacher's binary honors its own
// XDG-style overrides.
func ConfigPath() (string, error) {
	if override := os.Getenv("SSH_GATEWAY_CONFIG_HOME"); override != "" {
		return filepath.Join(override, "servers.toml"), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config dir: %w", err)
	}
	return filepath.Join(dir, "ssh-gateway", "servers.toml"), nil
}

// LoadRegistry reads and parses path. A missing file is not an error: it
// yields an empty registry, matching a fresh install with no configured
// servers.
func LoadRegistry(path string) (*ServerRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ServerRegistry{Servers: map[string]ServerEntry{}}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var reg ServerRegistry
	if err := toml.Unmarshal(data, &reg); err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("parsing %s: %v", path, err), Err: err}
	}
	if reg.Servers == nil {
		reg.Servers = map[string]ServerEntry{}
	}
	return &reg, nil
}

// Save persists the registry to path, creating its parent directory with
// 0700 and writing the file itself with 0600 — the registry may contain an
// identity file path and should not be world-readable.
func (r *ServerRegistry) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(r); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}

// Get returns the entry for alias and whether it was found.
func (r *ServerRegistry) Get(alias string) (ServerEntry, bool) {
	e, ok := r.Servers[alias]
	return e, ok
}

// Insert adds or replaces the entry for alias.
func (r *ServerRegistry) Insert(alias string, e ServerEntry) {
	if r.Servers == nil {
		r.Servers = map[string]ServerEntry{}
	}
	r.Servers[alias] = e
}

// Remove deletes the entry for alias, if present.
func (r *ServerRegistry) Remove(alias string) {
	delete(r.Servers, alias)
}

// Aliases returns the configured alias names, for error messages listing
// what's available.
func (r *ServerRegistry) Aliases() []string {
	names := make([]string, 0, len(r.Servers))
	for name := range r.Servers {
		names = append(names, name)
	}
	return names
}

// ChangedServers returns the aliases whose connection-relevant fields
// (host, user, port, remote_path, identity, auth) differ between r and
// other, plus aliases present in r but absent from other. Metadata changes
// are deliberately excluded: metadata never affects dispatch, so a pooled
// session backed by an alias whose metadata alone changed does not need to
// be evicted.
func (r *ServerRegistry) ChangedServers(other *ServerRegistry) []string {
	var changed []string
	for alias, oldEntry := range r.Servers {
		newEntry, ok := other.Servers[alias]
		if !ok {
			changed = append(changed, alias)
			continue
		}
		if connectionRelevantDiff(oldEntry, newEntry) {
			changed = append(changed, alias)
		}
	}
	return changed
}

func connectionRelevantDiff(a, b ServerEntry) bool {
	a, b = a.normalized(), b.normalized()
	return a.Host != b.Host ||
		a.User != b.User ||
		a.Port != b.Port ||
		a.RemotePath != b.RemotePath ||
		a.Identity != b.Identity ||
		a.Auth != b.Auth
}
