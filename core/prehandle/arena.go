package prehandle

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"ledgernode/core/state"
	"ledgernode/core/types"
)

// ArenaKey identifies a platform transaction as submitted by one node.
type ArenaKey struct {
	Creator types.NodeID
	Hash    common.Hash
}

// KeyOf returns the arena key of tx.
func KeyOf(creator types.NodeID, tx *types.PlatformTransaction) ArenaKey {
	return ArenaKey{Creator: creator, Hash: tx.Hash()}
}

// Arena is the side table of pre-handle results populated before consensus
// and read during handling. It is safe for concurrent use.
type Arena struct {
	mu      sync.RWMutex
	results map[ArenaKey]*Result
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{results: make(map[ArenaKey]*Result)}
}

// Put stores the result for key.
func (a *Arena) Put(key ArenaKey, res *Result) {
	a.mu.Lock()
	a.results[key] = res
	a.mu.Unlock()
}

// Get returns the result for key, if any.
func (a *Arena) Get(key ArenaKey) (*Result, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	res, ok := a.results[key]
	return res, ok
}

// Take returns and removes the result for key.
func (a *Arena) Take(key ArenaKey) (*Result, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	res, ok := a.results[key]
	if ok {
		delete(a.results, key)
	}
	return res, ok
}

// Len returns the number of cached results.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.results)
}

// PreHandleRound pre-handles every user transaction of round concurrently,
// at most limit at a time, and stores the results in arena. Each
// transaction reads its own snapshot of store.
func PreHandleRound(ctx context.Context, w *Workflow, store *state.Store, round *types.ConsensusRound, arena *Arena, limit int) error {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	global := w.config.Current().Global
	for _, event := range round.Events {
		if event == nil {
			continue
		}
		creator, err := CreatorInfo(global, event.Creator)
		if err != nil {
			creator = types.NodeInfo{ID: event.Creator}
		}
		for _, tx := range event.Transactions {
			if tx == nil || tx.System {
				continue
			}
			tx := tx
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				arena.Put(KeyOf(creator.ID, tx), w.PreHandle(ctx, store.Snapshot(), creator, tx))
				return nil
			})
		}
	}
	return g.Wait()
}
