package state

import (
	"errors"
	"testing"
	"time"

	"ledgernode/core/types"
)

func seedAccount(t *testing.T, store *Store, id types.AccountID, balance uint64) {
	t.Helper()
	sp := store.Begin()
	if err := sp.PutAccount(&types.Account{ID: id, Balance: balance}); err != nil {
		t.Fatalf("put account: %v", err)
	}
	if err := sp.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestSavepointRollbackDiscardsWrites(t *testing.T) {
	store := newTestStore(t)
	seedAccount(t, store, 1, 100)
	before := store.Root()

	sp := store.Begin()
	if err := sp.Debit(1, 60); err != nil {
		t.Fatalf("debit: %v", err)
	}
	sp.Rollback()

	if store.Root() != before {
		t.Fatalf("rollback changed published root")
	}
	balance, err := store.Snapshot().Balance(1)
	if err != nil || balance != 100 {
		t.Fatalf("unexpected balance after rollback: %d err=%v", balance, err)
	}
}

func TestNestedSavepointCommitFoldsIntoParent(t *testing.T) {
	store := newTestStore(t)
	seedAccount(t, store, 1, 100)

	outer := store.Begin()
	inner, err := outer.Begin()
	if err != nil {
		t.Fatalf("begin nested: %v", err)
	}
	if err := inner.Debit(1, 10); err != nil {
		t.Fatalf("debit: %v", err)
	}

	if balance, _ := outer.Balance(1); balance != 100 {
		t.Fatalf("parent observed uncommitted child write: %d", balance)
	}
	if err := inner.Commit(); err != nil {
		t.Fatalf("commit nested: %v", err)
	}
	if balance, _ := outer.Balance(1); balance != 90 {
		t.Fatalf("parent missing committed child write: %d", balance)
	}
	if balance, _ := store.Snapshot().Balance(1); balance != 100 {
		t.Fatalf("store observed unpublished write: %d", balance)
	}
	if err := outer.Commit(); err != nil {
		t.Fatalf("commit outer: %v", err)
	}
	if balance, _ := store.Snapshot().Balance(1); balance != 90 {
		t.Fatalf("store missing published write: %d", balance)
	}
}

func TestNestedSavepointRollbackKeepsParentWrites(t *testing.T) {
	store := newTestStore(t)
	seedAccount(t, store, 1, 100)

	outer := store.Begin()
	if err := outer.Debit(1, 5); err != nil {
		t.Fatalf("debit outer: %v", err)
	}
	inner, err := outer.Begin()
	if err != nil {
		t.Fatalf("begin nested: %v", err)
	}
	if err := inner.Debit(1, 50); err != nil {
		t.Fatalf("debit inner: %v", err)
	}
	inner.Rollback()
	if balance, _ := outer.Balance(1); balance != 95 {
		t.Fatalf("unexpected parent balance: %d", balance)
	}
}

func TestClosedSavepointRejectsUse(t *testing.T) {
	sp := newTestStore(t).Begin()
	sp.Rollback()
	if err := sp.Commit(); !errors.Is(err, ErrSavepointClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
	if _, err := sp.Begin(); !errors.Is(err, ErrSavepointClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
	sp.Rollback()
}

func TestChildOfClosedParentStaysOpen(t *testing.T) {
	store := newTestStore(t)
	parent := store.Begin()
	child, err := parent.Begin()
	if err != nil {
		t.Fatalf("begin child: %v", err)
	}
	if err := child.PutAccount(&types.Account{ID: 7, Balance: 5}); err != nil {
		t.Fatalf("put account: %v", err)
	}
	parent.Rollback()

	if err := child.Commit(); !errors.Is(err, ErrSavepointClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
	if child.Closed() {
		t.Fatalf("child closed by a rejected commit")
	}
	balance, err := child.Balance(7)
	if err != nil || balance != 5 {
		t.Fatalf("child lost its writes: balance=%d err=%v", balance, err)
	}
	child.Rollback()
	if !child.Closed() {
		t.Fatalf("child still open after rollback")
	}
}

func TestStoreCommitFlushesRoot(t *testing.T) {
	store := newTestStore(t)
	seedAccount(t, store, 1, 1)
	root, err := store.Commit(1)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if root != store.Root() {
		t.Fatalf("committed root mismatch")
	}
}

func TestEnsureStateVersionStampsEmptyState(t *testing.T) {
	sp := newTestStore(t).Begin()
	if err := EnsureStateVersion(sp); err != nil {
		t.Fatalf("ensure version: %v", err)
	}
	if err := sp.SetStateVersion(StateVersion + 1); err != nil {
		t.Fatalf("set version: %v", err)
	}
	if err := EnsureStateVersion(sp); !errors.Is(err, ErrStateVersionMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
}

func TestDualStateFreezePending(t *testing.T) {
	dual := NewDualState()
	now := time.Unix(1_700_000_000, 0)
	if dual.FreezePending(now) {
		t.Fatalf("no freeze scheduled")
	}
	dual.SetFreezeTime(now.Add(time.Minute))
	if dual.FreezePending(now) {
		t.Fatalf("freeze not yet due")
	}
	if !dual.FreezePending(now.Add(time.Minute)) {
		t.Fatalf("freeze due")
	}
}

func TestDualStateSurvivesSaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	empty, err := store.Snapshot().LoadDualState()
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if !empty.FreezeTime().IsZero() || !empty.LastFrozenTime().IsZero() {
		t.Fatalf("unexpected schedule in empty state")
	}

	freeze := time.Date(2024, 3, 1, 12, 1, 0, 0, time.UTC)
	frozen := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	dual := NewDualState()
	dual.SetFreezeTime(freeze)
	dual.SetLastFrozenTime(frozen)

	sp := store.Begin()
	if err := sp.SaveDualState(dual); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := sp.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	loaded, err := store.Snapshot().LoadDualState()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.FreezeTime().Equal(freeze) || !loaded.LastFrozenTime().Equal(frozen) {
		t.Fatalf("schedule not restored: %v %v", loaded.FreezeTime(), loaded.LastFrozenTime())
	}
	if !loaded.FreezePending(freeze) {
		t.Fatalf("restored freeze not pending")
	}

	before := store.Root()
	sp = store.Begin()
	if err := sp.SaveDualState(NewDualState()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := sp.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if store.Root() == before {
		t.Fatalf("clearing the schedule left the root unchanged")
	}
	cleared, err := store.Snapshot().LoadDualState()
	if err != nil || !cleared.FreezeTime().IsZero() {
		t.Fatalf("schedule not cleared: %v err=%v", cleared.FreezeTime(), err)
	}
}

func TestConfigSnapshotRoundTrip(t *testing.T) {
	store := newTestStore(t)
	if snap, err := store.Snapshot().ConfigSnapshot(); err != nil || snap != nil {
		t.Fatalf("expected no snapshot, got %v err=%v", snap, err)
	}
	sp := store.Begin()
	if err := sp.SetConfigSnapshot(4, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := sp.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	snap, err := store.Snapshot().ConfigSnapshot()
	if err != nil || snap == nil {
		t.Fatalf("get: %v %v", snap, err)
	}
	if snap.Version != 4 || string(snap.Global) != `{"a":1}` {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}
