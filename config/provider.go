package config

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Snapshot is an immutable view of the runtime configuration. Version
// increases every time the configuration changes.
type Snapshot struct {
	Version uint64
	Global  Global
}

// Provider hands out versioned configuration snapshots. Readers never block;
// updates are serialized.
type Provider struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

// NewProvider validates g and publishes it as version 1.
func NewProvider(g Global) (*Provider, error) {
	if err := ValidateConfig(g); err != nil {
		return nil, err
	}
	p := &Provider{}
	p.current.Store(&Snapshot{Version: 1, Global: g.Clone()})
	return p, nil
}

// Current returns the latest snapshot. Callers must treat it as read-only.
func (p *Provider) Current() *Snapshot {
	return p.current.Load()
}

// Update applies fn to a copy of the current configuration and publishes the
// result under a new version. An error from fn or validation leaves the
// current snapshot in place.
func (p *Provider) Update(fn func(*Global) error) (*Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.current.Load()
	next := prev.Global.Clone()
	if err := fn(&next); err != nil {
		return prev, err
	}
	if err := ValidateConfig(next); err != nil {
		return prev, fmt.Errorf("config update rejected: %w", err)
	}
	snap := &Snapshot{Version: prev.Version + 1, Global: next}
	p.current.Store(snap)
	return snap, nil
}

// Restore publishes g under the given version, replacing the current
// snapshot. It is used when reopening a node whose configuration was changed
// at runtime.
func (p *Provider) Restore(version uint64, g Global) (*Snapshot, error) {
	if version == 0 {
		return nil, fmt.Errorf("config restore: version must be positive")
	}
	if err := ValidateConfig(g); err != nil {
		return nil, fmt.Errorf("config restore rejected: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := &Snapshot{Version: version, Global: g.Clone()}
	p.current.Store(snap)
	return snap, nil
}
