package state

import (
	"sync"
	"time"
)

// DualState holds platform administrative state updated alongside the ledger,
// such as the scheduled network freeze. It is safe for concurrent use.
type DualState struct {
	mu             sync.RWMutex
	freezeTime     time.Time
	lastFrozenTime time.Time
}

// NewDualState returns an empty dual state.
func NewDualState() *DualState {
	return &DualState{}
}

// FreezeTime returns the scheduled freeze time, zero when none is pending.
func (d *DualState) FreezeTime() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.freezeTime
}

// SetFreezeTime schedules a freeze. A zero time clears the schedule.
func (d *DualState) SetFreezeTime(at time.Time) {
	d.mu.Lock()
	d.freezeTime = at
	d.mu.Unlock()
}

// LastFrozenTime returns the last time a scheduled freeze was reached.
func (d *DualState) LastFrozenTime() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastFrozenTime
}

// SetLastFrozenTime records the last time a scheduled freeze was reached.
func (d *DualState) SetLastFrozenTime(at time.Time) {
	d.mu.Lock()
	d.lastFrozenTime = at
	d.mu.Unlock()
}

// FreezePending reports whether a freeze is scheduled at or before now.
func (d *DualState) FreezePending(now time.Time) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return !d.freezeTime.IsZero() && !now.Before(d.freezeTime)
}
