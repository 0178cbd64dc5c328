package state

import "ledgernode/core/types"

var (
	genesisRecordsKey    = []byte("hooks/genesis-records")
	lastStakingPeriodKey = []byte("hooks/staking-period")
	configSnapshotKey    = []byte("config/snapshot")
	dualStateKey         = []byte("platform/dual-state")
)

// GenesisRecordsCreated reports whether the one-time genesis records were
// already externalized.
func (m *Manager) GenesisRecordsCreated() (bool, error) {
	var done bool
	if _, err := m.KVGet(genesisRecordsKey, &done); err != nil {
		return false, err
	}
	return done, nil
}

// MarkGenesisRecordsCreated flags the genesis records as externalized.
func (m *Manager) MarkGenesisRecordsCreated() error {
	return m.KVPut(genesisRecordsKey, true)
}

// LastStakingPeriod returns the last staking period processed by the periodic
// hook and whether one was recorded.
func (m *Manager) LastStakingPeriod() (uint64, bool, error) {
	var period uint64
	ok, err := m.KVGet(lastStakingPeriodKey, &period)
	if err != nil {
		return 0, false, err
	}
	return period, ok, nil
}

// SetLastStakingPeriod records the staking period processed by the periodic
// hook.
func (m *Manager) SetLastStakingPeriod(period uint64) error {
	return m.KVPut(lastStakingPeriodKey, period)
}

// ConfigSnapshot is the runtime configuration last published by a system file
// update. Global holds the encoded configuration.
type ConfigSnapshot struct {
	Version uint64
	Global  []byte
}

// ConfigSnapshot returns the stored configuration snapshot, if any.
func (m *Manager) ConfigSnapshot() (*ConfigSnapshot, error) {
	var snap ConfigSnapshot
	ok, err := m.KVGet(configSnapshotKey, &snap)
	if err != nil || !ok {
		return nil, err
	}
	return &snap, nil
}

// SetConfigSnapshot stores the configuration published under version.
func (m *Manager) SetConfigSnapshot(version uint64, global []byte) error {
	return m.KVPut(configSnapshotKey, &ConfigSnapshot{Version: version, Global: global})
}

type dualStateRecord struct {
	FreezeTime     uint64
	LastFrozenTime uint64
}

// SaveDualState stores the freeze schedule of d. An empty schedule removes
// the entry.
func (m *Manager) SaveDualState(d *DualState) error {
	rec := dualStateRecord{
		FreezeTime:     types.UnixNanos(d.FreezeTime()),
		LastFrozenTime: types.UnixNanos(d.LastFrozenTime()),
	}
	if rec == (dualStateRecord{}) {
		return m.KVDelete(dualStateKey)
	}
	return m.KVPut(dualStateKey, &rec)
}

// LoadDualState returns the stored freeze schedule, empty when none was
// saved.
func (m *Manager) LoadDualState() (*DualState, error) {
	var rec dualStateRecord
	if _, err := m.KVGet(dualStateKey, &rec); err != nil {
		return nil, err
	}
	d := NewDualState()
	d.SetFreezeTime(types.FromUnixNanos(rec.FreezeTime))
	d.SetLastFrozenTime(types.FromUnixNanos(rec.LastFrozenTime))
	return d, nil
}
