package variables

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/abdul-hamid-achik/flowspec/packages/builtin"
)

// Scope selects one of the four variable layers.
type Scope int

const (
	ScopeGlobal Scope = iota
	ScopeProfile
	ScopeOverride
	ScopeExtracted
)

var scopeNames = map[Scope]string{
	ScopeGlobal:    "global",
	ScopeProfile:   "profile",
	ScopeOverride:  "override",
	ScopeExtracted: "extracted",
}

func (s Scope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return "unknown"
}

// Manager is the thread-safe layered variable store. Lookup scans
// extracted, then override, then profile, then global; the first hit
// wins. All mutation goes through Set/SetMany/Clear/Restore so the
// merged-view cache stays consistent.
type Manager struct {
	mu        sync.RWMutex
	global    map[string]any
	profile   map[string]any
	override  map[string]any
	extracted map[string]any

	funcs *builtin.Registry

	version atomic.Uint64
	cache   atomic.Pointer[cachedView]
}

type cachedView struct {
	version uint64
	vars    map[string]any
}

// Snapshot captures all four scopes for later Restore.
type Snapshot struct {
	global    map[string]any
	profile   map[string]any
	override  map[string]any
	extracted map[string]any
}

func NewManager() *Manager {
	return &Manager{
		global:    make(map[string]any),
		profile:   make(map[string]any),
		override:  make(map[string]any),
		extracted: make(map[string]any),
		funcs:     builtin.NewRegistry(),
	}
}

// Funcs exposes the builtin registry so callers can register custom
// template functions. Register before rendering starts; the registry is
// not synchronized for concurrent registration.
func (m *Manager) Funcs() *builtin.Registry {
	return m.funcs
}

// scopeMap must be called with m.mu held.
func (m *Manager) scopeMap(s Scope) (map[string]any, error) {
	switch s {
	case ScopeGlobal:
		return m.global, nil
	case ScopeProfile:
		return m.profile, nil
	case ScopeOverride:
		return m.override, nil
	case ScopeExtracted:
		return m.extracted, nil
	default:
		return nil, fmt.Errorf("unknown variable scope %d", int(s))
	}
}

// Set writes one name into the given scope.
func (m *Manager) Set(scope Scope, name string, value any) error {
	m.mu.Lock()
	target, err := m.scopeMap(scope)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	target[name] = value
	m.mu.Unlock()
	m.version.Add(1)
	return nil
}

// SetMany writes a whole map into the given scope.
func (m *Manager) SetMany(scope Scope, vars map[string]any) error {
	if len(vars) == 0 {
		return nil
	}
	m.mu.Lock()
	target, err := m.scopeMap(scope)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	for k, v := range vars {
		target[k] = v
	}
	m.mu.Unlock()
	m.version.Add(1)
	return nil
}

// Clear empties one scope. Extracted values are only ever cleared this
// way, never as a side effect of running steps.
func (m *Manager) Clear(scope Scope) error {
	m.mu.Lock()
	target, err := m.scopeMap(scope)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	for k := range target {
		delete(target, k)
	}
	m.mu.Unlock()
	m.version.Add(1)
	return nil
}

// Lookup scans the scopes in priority order.
func (m *Manager) Lookup(name string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.extracted[name]; ok {
		return v, true
	}
	if v, ok := m.override[name]; ok {
		return v, true
	}
	if v, ok := m.profile[name]; ok {
		return v, true
	}
	if v, ok := m.global[name]; ok {
		return v, true
	}
	return nil, false
}

// Get returns the effective value of name, or def when unset anywhere.
func (m *Manager) Get(name string, def any) any {
	if v, ok := m.Lookup(name); ok {
		return v
	}
	return def
}

// Has reports whether name is set in any scope.
func (m *Manager) Has(name string) bool {
	_, ok := m.Lookup(name)
	return ok
}

// All returns the merged view of every scope. The map is rebuilt lazily
// after a write and cached until the next one; callers must treat it as
// read-only.
func (m *Manager) All() map[string]any {
	v := m.version.Load()
	if c := m.cache.Load(); c != nil && c.version == v {
		return c.vars
	}

	m.mu.RLock()
	merged := make(map[string]any, len(m.global)+len(m.profile)+len(m.override)+len(m.extracted))
	for k, val := range m.global {
		merged[k] = val
	}
	for k, val := range m.profile {
		merged[k] = val
	}
	for k, val := range m.override {
		merged[k] = val
	}
	for k, val := range m.extracted {
		merged[k] = val
	}
	m.mu.RUnlock()

	m.cache.Store(&cachedView{version: v, vars: merged})
	return merged
}

// Version returns the current mutation counter. Two equal readings with
// no write in between guarantee All() returned the same map.
func (m *Manager) Version() uint64 {
	return m.version.Load()
}

// TakeSnapshot copies all four scopes.
func (m *Manager) TakeSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		global:    copyMap(m.global),
		profile:   copyMap(m.profile),
		override:  copyMap(m.override),
		extracted: copyMap(m.extracted),
	}
}

// Restore repoints every scope at the snapshot's contents.
func (m *Manager) Restore(s Snapshot) {
	m.mu.Lock()
	m.global = copyMap(s.global)
	m.profile = copyMap(s.profile)
	m.override = copyMap(s.override)
	m.extracted = copyMap(s.extracted)
	m.mu.Unlock()
	m.version.Add(1)
}

// Clone returns an independent manager seeded with this one's scopes.
// The builtin registry is shared; scope writes on the clone do not
// reach the original.
func (m *Manager) Clone() *Manager {
	m.mu.RLock()
	defer m.mu.RUnlock()
	clone := &Manager{
		global:    copyMap(m.global),
		profile:   copyMap(m.profile),
		override:  copyMap(m.override),
		extracted: copyMap(m.extracted),
		funcs:     m.funcs,
	}
	return clone
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
