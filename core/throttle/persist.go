package throttle

import (
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"ledgernode/core/state"
	"ledgernode/core/types"
)

var levelsKey = []byte("throttle/levels")

type storedLevels struct {
	Version uint64
	Buckets []storedBucket
}

type storedBucket struct {
	Functionality types.Functionality
	// Tokens holds the float64 bits of the bucket level at Last.
	Tokens uint64
	Last   uint64
}

// Save writes the level of every bucket that admitted a transaction, tagged
// with the configuration version the buckets were built from.
func (n *NetworkUtilization) Save(m *state.Manager) error {
	n.mu.Lock()
	levels := storedLevels{Version: n.version}
	for fn, b := range n.buckets {
		if b.last.IsZero() {
			continue
		}
		levels.Buckets = append(levels.Buckets, storedBucket{
			Functionality: fn,
			Tokens:        math.Float64bits(b.limiter.TokensAt(b.last)),
			Last:          types.UnixNanos(b.last),
		})
	}
	n.mu.Unlock()

	sort.Slice(levels.Buckets, func(i, j int) bool {
		return levels.Buckets[i].Functionality < levels.Buckets[j].Functionality
	})
	return m.KVPut(levelsKey, &levels)
}

// Load refills the buckets from the levels saved in m. Levels saved under a
// different configuration version are ignored, matching what Refresh does
// when the configuration changes.
func (n *NetworkUtilization) Load(m *state.Manager) error {
	var levels storedLevels
	ok, err := m.KVGet(levelsKey, &levels)
	if err != nil {
		return fmt.Errorf("load throttle levels: %w", err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if !ok || levels.Version != n.version {
		return nil
	}
	for _, stored := range levels.Buckets {
		b, ok := n.buckets[stored.Functionality]
		if !ok || stored.Last == 0 {
			continue
		}
		last := types.FromUnixNanos(stored.Last)
		b.limiter = restoreLimiter(b.limit, b.burst, math.Float64frombits(stored.Tokens), last)
		b.last = last
	}
	return nil
}

// restoreLimiter builds a limiter holding exactly tokens at time at. The
// limiter is drained one second before at, then refilled for that second at
// a rate equal to tokens.
func restoreLimiter(limit rate.Limit, burst int, tokens float64, at time.Time) *rate.Limiter {
	if tokens > float64(burst) {
		tokens = float64(burst)
	}
	if tokens <= 0 {
		lim := rate.NewLimiter(limit, burst)
		lim.ReserveN(at, burst)
		return lim
	}
	lim := rate.NewLimiter(rate.Limit(tokens), burst)
	lim.ReserveN(at.Add(-time.Second), burst)
	lim.SetLimitAt(at, limit)
	return lim
}
