package signature

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ledgernode/core/types"
	"ledgernode/crypto"
)

func newSigner(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key
}

func signPair(t *testing.T, key *crypto.PrivateKey, msg []byte, prefixLen int) types.SignaturePair {
	t.Helper()
	sig, err := key.Sign(msg)
	require.NoError(t, err)
	pub := key.PubKey().Key()
	return types.SignaturePair{PubKeyPrefix: append([]byte(nil), pub[:prefixLen]...), Signature: sig}
}

func TestExpandMatchesLongestPrefix(t *testing.T) {
	msg := []byte("body")
	a := newSigner(t)
	b := newSigner(t)
	sigMap := types.SignatureMap{Pairs: []types.SignaturePair{
		signPair(t, a, msg, 4),
		signPair(t, b, msg, crypto.CompressedKeyLength),
	}}

	out := make(map[string]Expanded)
	Expander{}.Expand([]types.Key{a.PubKey().Key(), b.PubKey().Key()}, sigMap, out)
	require.Len(t, out, 2)
	require.Equal(t, sigMap.Pairs[0].Signature, out[string(a.PubKey().Key())].Signature)
	require.Equal(t, sigMap.Pairs[1].Signature, out[string(b.PubKey().Key())].Signature)
}

func TestExpandSkipsUnmatchedAndExisting(t *testing.T) {
	msg := []byte("body")
	a := newSigner(t)
	other := newSigner(t)
	sigMap := types.SignatureMap{Pairs: []types.SignaturePair{signPair(t, a, msg, crypto.CompressedKeyLength)}}

	existing := Expanded{Key: a.PubKey().Key(), Signature: []byte("kept")}
	out := map[string]Expanded{string(a.PubKey().Key()): existing}
	Expander{}.Expand([]types.Key{a.PubKey().Key(), other.PubKey().Key(), nil}, sigMap, out)
	require.Len(t, out, 1)
	require.Equal(t, []byte("kept"), out[string(a.PubKey().Key())].Signature)
}

func TestExpandEmptyPrefixOnlyWhenSole(t *testing.T) {
	msg := []byte("body")
	a := newSigner(t)
	sole := types.SignatureMap{Pairs: []types.SignaturePair{signPair(t, a, msg, 0)}}
	out := make(map[string]Expanded)
	Expander{}.Expand([]types.Key{a.PubKey().Key()}, sole, out)
	require.Len(t, out, 1)

	b := newSigner(t)
	shared := types.SignatureMap{Pairs: []types.SignaturePair{signPair(t, a, msg, 0), signPair(t, b, msg, 0)}}
	out = make(map[string]Expanded)
	Expander{}.Expand([]types.Key{a.PubKey().Key()}, shared, out)
	require.Empty(t, out)
}

func TestExpandFullPrefixes(t *testing.T) {
	msg := []byte("body")
	a := newSigner(t)
	b := newSigner(t)
	sigMap := types.SignatureMap{Pairs: []types.SignaturePair{
		signPair(t, a, msg, crypto.CompressedKeyLength),
		signPair(t, b, msg, 3),
	}}
	out := make(map[string]Expanded)
	Expander{}.ExpandFullPrefixes(sigMap, out)
	require.Len(t, out, 1)
	_, ok := out[string(a.PubKey().Key())]
	require.True(t, ok)
}

func TestVerifierResolvesFutures(t *testing.T) {
	msg := []byte("body")
	good := newSigner(t)
	bad := newSigner(t)
	sigs := map[string]Expanded{}
	goodPair := signPair(t, good, msg, crypto.CompressedKeyLength)
	sigs[string(good.PubKey().Key())] = Expanded{Key: good.PubKey().Key(), Signature: goodPair.Signature}
	wrong, err := bad.Sign([]byte("other body"))
	require.NoError(t, err)
	sigs[string(bad.PubKey().Key())] = Expanded{Key: bad.PubKey().Key(), Signature: wrong}

	futures := NewVerifier(2).Verify(context.Background(), msg, sigs)
	require.Len(t, futures, 2)

	lookup := NewLookup(context.Background(), time.Second)
	lookup.AddAll(futures)

	passed := lookup.VerificationFor(good.PubKey().Key())
	require.True(t, passed.Passed)
	require.NotNil(t, passed.EvmAlias)
	require.Equal(t, good.PubKey().Address(), *passed.EvmAlias)

	require.False(t, lookup.VerificationFor(bad.PubKey().Key()).Passed)
}

func TestLookupMissingKeyFails(t *testing.T) {
	lookup := NewLookup(context.Background(), time.Second)
	key := newSigner(t).PubKey().Key()
	require.False(t, lookup.Has(key))
	v := lookup.VerificationFor(key)
	require.False(t, v.Passed)
	require.Equal(t, key, v.Key)
}

func TestLookupTimeoutIsFailure(t *testing.T) {
	key := newSigner(t).PubKey().Key()
	pending := newFuture(key)

	lookup := NewLookup(context.Background(), 10*time.Millisecond)
	lookup.Add(pending)
	v := lookup.VerificationFor(key)
	require.False(t, v.Passed)

	pending.resolve(Verification{Key: key, Passed: true})
	require.False(t, lookup.VerificationFor(key).Passed, "cached result must not change")
}

func TestLookupKeepsFirstFuture(t *testing.T) {
	key := newSigner(t).PubKey().Key()
	lookup := NewLookup(context.Background(), time.Second)
	lookup.Add(Resolved(Verification{Key: key, Passed: true}))
	lookup.Add(Resolved(Verification{Key: key, Passed: false}))
	require.True(t, lookup.VerificationFor(key).Passed)
}

func TestLookupEntriesSorted(t *testing.T) {
	lookup := NewLookup(context.Background(), time.Second)
	for i := 0; i < 5; i++ {
		key := newSigner(t).PubKey().Key()
		lookup.Add(Resolved(Verification{Key: key, Passed: i%2 == 0}))
	}
	entries := lookup.Entries()
	require.Len(t, entries, 5)
	for i := 1; i < len(entries); i++ {
		require.True(t, bytes.Compare(entries[i-1].Key, entries[i].Key) < 0)
	}
}

func TestVerifierCancelledContextFails(t *testing.T) {
	msg := []byte("body")
	signer := newSigner(t)
	pair := signPair(t, signer, msg, crypto.CompressedKeyLength)

	v := NewVerifier(1)
	require.NoError(t, v.sem.Acquire(context.Background(), 1))
	ctx, cancel := context.WithCancel(context.Background())
	futures := v.Verify(ctx, msg, map[string]Expanded{
		string(signer.PubKey().Key()): {Key: signer.PubKey().Key(), Signature: pair.Signature},
	})
	cancel()

	f := futures[string(signer.PubKey().Key())]
	result, timedOut := f.Await(context.Background(), time.Second)
	require.False(t, timedOut)
	require.False(t, result.Passed)
	v.sem.Release(1)
}
