package signature

import (
	"context"
	"sort"

	"golang.org/x/sync/semaphore"

	"ledgernode/crypto"
)

// Verifier checks signatures on a bounded pool of goroutines.
type Verifier struct {
	sem *semaphore.Weighted
}

// NewVerifier returns a verifier running at most workers checks at once.
func NewVerifier(workers int64) *Verifier {
	if workers <= 0 {
		workers = 1
	}
	return &Verifier{sem: semaphore.NewWeighted(workers)}
}

// Verify starts verification of each expanded signature over message and
// returns one future per key. Verification never blocks the caller; a
// cancelled ctx resolves the outstanding futures as failed.
func (v *Verifier) Verify(ctx context.Context, message []byte, sigs map[string]Expanded) map[string]*Future {
	futures := make(map[string]*Future, len(sigs))
	ids := make([]string, 0, len(sigs))
	for id := range sigs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		exp := sigs[id]
		f := newFuture(exp.Key)
		futures[id] = f
		go v.run(ctx, message, exp, f)
	}
	return futures
}

func (v *Verifier) run(ctx context.Context, message []byte, exp Expanded, f *Future) {
	if err := v.sem.Acquire(ctx, 1); err != nil {
		f.resolve(Failed(exp.Key))
		return
	}
	defer v.sem.Release(1)
	f.resolve(check(message, exp))
}

func check(message []byte, exp Expanded) Verification {
	result := Verification{Key: append([]byte(nil), exp.Key...)}
	if addr, ok := crypto.DeriveAddress(exp.Key); ok {
		result.EvmAlias = &addr
	}
	result.Passed = crypto.Verify(exp.Key, message, exp.Signature)
	return result
}
