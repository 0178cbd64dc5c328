package throttle

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"ledgernode/config"
	"ledgernode/core/types"
	"ledgernode/observability"
)

// NetworkUtilization tracks throughput per functionality with token buckets
// driven by consensus time, so every node sees the same utilization.
type NetworkUtilization struct {
	mu         sync.Mutex
	version    uint64
	buckets    map[types.Functionality]*bucket
	threshold  uint64
	multiplier uint64
}

type bucket struct {
	limiter *rate.Limiter
	limit   rate.Limit
	burst   int
	// last is the consensus time of the last admitted transaction, zero
	// while the bucket is full.
	last time.Time
}

// New returns a tracker configured from snap.
func New(snap *config.Snapshot) *NetworkUtilization {
	n := &NetworkUtilization{}
	n.configure(snap)
	return n
}

func (n *NetworkUtilization) configure(snap *config.Snapshot) {
	n.version = snap.Version
	n.threshold = snap.Global.Throttles.CongestionThresholdPct
	n.multiplier = snap.Global.Throttles.CongestionMultiplier
	n.buckets = make(map[types.Functionality]*bucket)
	for name, cfg := range snap.Global.Throttles.Buckets {
		fn, ok := types.ParseFunctionality(name)
		if !ok {
			continue
		}
		tps := cfg.TPS
		if tps <= 0 {
			tps = 1
		}
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		n.buckets[fn] = &bucket{limiter: rate.NewLimiter(rate.Limit(tps), burst), limit: rate.Limit(tps), burst: burst}
	}
}

// Refresh rebuilds the buckets when snap carries a newer configuration.
func (n *NetworkUtilization) Refresh(snap *config.Snapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if snap.Version != n.version {
		n.configure(snap)
	}
}

// TrackTxn consumes one unit of the functionality's bucket at consensus time
// at. It reports false when the bucket was already exhausted.
func (n *NetworkUtilization) TrackTxn(fn types.Functionality, at time.Time) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	b, ok := n.buckets[fn]
	if !ok {
		return true
	}
	if b.limiter.AllowN(at, 1) {
		b.last = at
		return true
	}
	observability.Handle().RecordThrottled(fn.String())
	return false
}

// Utilization returns the used share of the functionality's bucket at
// consensus time at, in percent.
func (n *NetworkUtilization) Utilization(fn types.Functionality, at time.Time) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.utilizationLocked(fn, at)
}

func (n *NetworkUtilization) utilizationLocked(fn types.Functionality, at time.Time) uint64 {
	b, ok := n.buckets[fn]
	if !ok {
		return 0
	}
	tokens := b.limiter.TokensAt(at)
	if tokens < 0 {
		tokens = 0
	}
	used := float64(b.burst) - tokens
	if used <= 0 {
		return 0
	}
	return uint64(used * 100 / float64(b.burst))
}

// CongestionMultiplier returns the fee multiplier for fn at consensus time
// at: the configured multiplier once utilization reaches the threshold, one
// otherwise.
func (n *NetworkUtilization) CongestionMultiplier(fn types.Functionality, at time.Time) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.threshold == 0 || n.multiplier <= 1 {
		return 1
	}
	if n.utilizationLocked(fn, at) >= n.threshold {
		return n.multiplier
	}
	return 1
}
