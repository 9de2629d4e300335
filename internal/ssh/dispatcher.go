package ssh

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Dispatcher resolves a tool call's target alias to a live Session,
// transparently connecting on first use and reloading the on-disk registry
// when it changes, then hands the Session to the caller-supplied handler.
type Dispatcher struct {
	pool           *Pool
	configPath     string
	knownHostsPath string

	reloadMu    sync.Mutex
	config      *ServerRegistry
	configMtime time.Time
}

// NewDispatcher loads the registry at configPath and returns a Dispatcher
// backed by pool. knownHostsPath is where trust-on-first-use host keys are
// recorded.
func NewDispatcher(pool *Pool, configPath, knownHostsPath string) (*Dispatcher, error) {
	reg, err := LoadRegistry(configPath)
	if err != nil {
		return nil, err
	}
	mtime, _ := statMtime(configPath)
	return &Dispatcher{
		pool:           pool,
		configPath:     configPath,
		knownHostsPath: knownHostsPath,
		config:         reg,
		configMtime:    mtime,
	}, nil
}

func statMtime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// WithConnection resolves alias to a Session — reusing a pooled one,
// connecting fresh if the alias is configured but not yet pooled, or
// returning a fixed-shape error if the alias is unknown — then invokes fn.
// After fn returns, a session fn left force-closed is evicted so the next
// call reconnects rather than reusing a dead entry.
func (d *Dispatcher) WithConnection(alias string, fn func(*Session) (string, error)) (string, error) {
	d.maybeReloadConfig()

	session, err := d.resolveConnection(alias)
	if err != nil {
		return "", err
	}

	out, err := fn(session)
	d.pool.RemoveIfClosed(alias, session)
	return out, err
}

func (d *Dispatcher) resolveConnection(alias string) (*Session, error) {
	if session, ok := d.pool.Get(alias); ok {
		return session, nil
	}

	d.reloadMu.Lock()
	entry, ok := d.config.Get(alias)
	d.reloadMu.Unlock()
	if !ok {
		return nil, &ConfigError{Alias: alias, Msg: d.unknownAliasMessage()}
	}

	lock := d.pool.ConnectLock(alias)
	lock.Lock()
	defer lock.Unlock()

	if session, ok := d.pool.Get(alias); ok {
		return session, nil
	}

	params := entry.connectionParams(alias)
	session, err := Connect(params, d.knownHostsPath)
	if err != nil {
		return nil, err
	}
	d.pool.Insert(alias, session)
	return session, nil
}

func (d *Dispatcher) unknownAliasMessage() string {
	d.reloadMu.Lock()
	aliases := d.config.Aliases()
	d.reloadMu.Unlock()
	sort.Strings(aliases)
	if len(aliases) == 0 {
		return "no servers configured"
	}
	return fmt.Sprintf("unknown server, configured servers: %s", strings.Join(aliases, ", "))
}

// maybeReloadConfig re-reads the registry file when its mtime has advanced,
// evicting exactly the aliases whose connection-relevant fields changed
// (or that were removed) so an in-flight call against an untouched alias is
// never disrupted by an edit to a different one.
func (d *Dispatcher) maybeReloadConfig() {
	mtime, err := statMtime(d.configPath)
	if err != nil {
		return
	}

	d.reloadMu.Lock()
	unchanged := !mtime.After(d.configMtime)
	d.reloadMu.Unlock()
	if unchanged {
		return
	}

	newConfig, err := LoadRegistry(d.configPath)
	if err != nil {
		Log.Warn().Err(err).Str("path", d.configPath).Msg("config reload failed, keeping previous config")
		return
	}

	d.reloadMu.Lock()
	oldConfig := d.config
	changed := oldConfig.ChangedServers(newConfig)
	d.config = newConfig
	d.configMtime = mtime
	d.reloadMu.Unlock()

	for _, alias := range changed {
		if session, ok := d.pool.Get(alias); ok {
			session.markClosed()
			d.pool.Remove(alias)
		}
	}
}

// Registry returns the currently loaded registry, for read-only reporting
// tools like list_servers.
func (d *Dispatcher) Registry() *ServerRegistry {
	d.reloadMu.Lock()
	defer d.reloadMu.Unlock()
	return d.config
}

// Pool returns the underlying Pool, for tools that need to know whether an
// alias is currently connected without going through WithConnection's
// auto-connect behavior.
func (d *Dispatcher) Pool() *Pool { return d.pool }
