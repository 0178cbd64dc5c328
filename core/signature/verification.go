package signature

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"ledgernode/core/types"
	"ledgernode/observability"
)

// Verification is the resolved outcome of checking one key's signature.
type Verification struct {
	Key types.Key `json:"key"`
	// EvmAlias is the address derived from the key, when it has one.
	EvmAlias *common.Address `json:"evmAlias,omitempty"`
	Passed   bool            `json:"passed"`
}

// Failed returns a failed verification for key.
func Failed(key types.Key) Verification {
	return Verification{Key: append(types.Key(nil), key...)}
}

// Future is the pending result of an asynchronous verification. A Future is
// resolved exactly once and may be awaited from multiple goroutines.
type Future struct {
	key    types.Key
	done   chan struct{}
	result Verification
}

func newFuture(key types.Key) *Future {
	return &Future{key: append(types.Key(nil), key...), done: make(chan struct{})}
}

// Resolved returns a future that is already complete.
func Resolved(v Verification) *Future {
	f := newFuture(v.Key)
	f.resolve(v)
	return f
}

func (f *Future) resolve(v Verification) {
	f.result = v
	close(f.done)
}

// Key returns the key the future verifies.
func (f *Future) Key() types.Key {
	return f.key
}

// Done reports whether the result is available without blocking.
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the verification completes, ctx is cancelled or timeout
// elapses. Anything other than completion yields a failed verification and
// timedOut is true.
func (f *Future) Await(ctx context.Context, timeout time.Duration) (v Verification, timedOut bool) {
	select {
	case <-f.done:
		return f.result, false
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-f.done:
		return f.result, false
	case <-timer.C:
		return Failed(f.key), true
	case <-ctx.Done():
		return Failed(f.key), true
	}
}

// Lookup merges verification futures from pre-handle and handle into one view.
// Results are resolved lazily on first use and cached; a key with no future
// reports a failed verification. Lookup is not safe for concurrent use.
type Lookup struct {
	ctx      context.Context
	timeout  time.Duration
	futures  map[string]*Future
	resolved map[string]Verification
}

// NewLookup returns an empty lookup that waits at most timeout for each
// future.
func NewLookup(ctx context.Context, timeout time.Duration) *Lookup {
	return &Lookup{
		ctx:      ctx,
		timeout:  timeout,
		futures:  make(map[string]*Future),
		resolved: make(map[string]Verification),
	}
}

// Add registers the future for its key, replacing nothing already present.
func (l *Lookup) Add(f *Future) {
	id := string(f.key)
	if _, ok := l.futures[id]; ok {
		return
	}
	l.futures[id] = f
}

// AddAll registers every future in the map.
func (l *Lookup) AddAll(futures map[string]*Future) {
	for _, f := range futures {
		l.Add(f)
	}
}

// Has reports whether a verification was requested for key.
func (l *Lookup) Has(key types.Key) bool {
	_, ok := l.futures[string(key)]
	return ok
}

// VerificationFor returns the verification for key, waiting for it if needed.
func (l *Lookup) VerificationFor(key types.Key) Verification {
	id := string(key)
	if v, ok := l.resolved[id]; ok {
		return v
	}
	f, ok := l.futures[id]
	if !ok {
		return Failed(key)
	}
	v, timedOut := f.Await(l.ctx, l.timeout)
	switch {
	case timedOut:
		observability.Handle().RecordVerification("timeout")
	case v.Passed:
		observability.Handle().RecordVerification("passed")
	default:
		observability.Handle().RecordVerification("failed")
	}
	l.resolved[id] = v
	return v
}

// Entries resolves every registered key and returns the verifications sorted
// by key bytes.
func (l *Lookup) Entries() []Verification {
	keys := make([]string, 0, len(l.futures))
	for id := range l.futures {
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare([]byte(keys[i]), []byte(keys[j])) < 0
	})
	out := make([]Verification, 0, len(keys))
	for _, id := range keys {
		out = append(out, l.VerificationFor(types.Key(id)))
	}
	return out
}
