package signature

import (
	"bytes"

	"ledgernode/core/types"
	"ledgernode/crypto"
)

// Expanded pairs a full key with the raw signature matched to it.
type Expanded struct {
	Key       types.Key
	Signature []byte
}

// Expander matches signature map prefixes to full keys.
type Expander struct{}

// Expand adds to out, keyed by the key bytes, the signature whose prefix
// matches each key. The longest matching prefix wins; an empty prefix matches
// only when it is the sole pair in the map. Keys without a match are skipped
// and keys already in out are left untouched.
func (Expander) Expand(keys []types.Key, sigMap types.SignatureMap, out map[string]Expanded) {
	for _, key := range keys {
		if len(key) == 0 {
			continue
		}
		if _, ok := out[string(key)]; ok {
			continue
		}
		if sig, ok := match(key, sigMap); ok {
			out[string(key)] = Expanded{Key: append(types.Key(nil), key...), Signature: sig}
		}
	}
}

// ExpandFullPrefixes adds every pair whose prefix is a complete compressed
// key. This covers keys that become required only after the state is
// inspected.
func (Expander) ExpandFullPrefixes(sigMap types.SignatureMap, out map[string]Expanded) {
	for _, pair := range sigMap.Pairs {
		if len(pair.PubKeyPrefix) != crypto.CompressedKeyLength {
			continue
		}
		if _, ok := out[string(pair.PubKeyPrefix)]; ok {
			continue
		}
		out[string(pair.PubKeyPrefix)] = Expanded{
			Key:       append(types.Key(nil), pair.PubKeyPrefix...),
			Signature: pair.Signature,
		}
	}
}

func match(key types.Key, sigMap types.SignatureMap) ([]byte, bool) {
	if len(sigMap.Pairs) == 1 && len(sigMap.Pairs[0].PubKeyPrefix) == 0 {
		return sigMap.Pairs[0].Signature, true
	}
	best := -1
	var sig []byte
	for _, pair := range sigMap.Pairs {
		prefix := pair.PubKeyPrefix
		if len(prefix) == 0 || len(prefix) <= best {
			continue
		}
		if bytes.HasPrefix(key, prefix) {
			best = len(prefix)
			sig = pair.Signature
		}
	}
	return sig, best >= 0
}
