package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"ledgernode/core/types"
)

// CompressedKeyLength is the length of a compressed secp256k1 public key.
const CompressedKeyLength = 33

// SignatureLength is the length of a recoverable secp256k1 signature.
const SignatureLength = crypto.SignatureLength

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// Sign signs the keccak256 digest of msg.
func (k *PrivateKey) Sign(msg []byte) ([]byte, error) {
	return crypto.Sign(crypto.Keccak256(msg), k.PrivateKey)
}

// Key returns the compressed ledger key.
func (k *PublicKey) Key() types.Key {
	return types.Key(crypto.CompressPubkey(k.PublicKey))
}

// Address returns the EVM-style address derived from the key.
func (k *PublicKey) Address() common.Address {
	return crypto.PubkeyToAddress(*k.PublicKey)
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// ParseKey decompresses a ledger key.
func ParseKey(key types.Key) (*PublicKey, error) {
	if len(key) != CompressedKeyLength {
		return nil, fmt.Errorf("crypto: key must be %d bytes, got %d", CompressedKeyLength, len(key))
	}
	pub, err := crypto.DecompressPubkey(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: decompress key: %w", err)
	}
	return &PublicKey{pub}, nil
}

// DeriveAddress returns the EVM-style address of a ledger key, if the key is a
// valid secp256k1 point.
func DeriveAddress(key types.Key) (common.Address, bool) {
	pub, err := ParseKey(key)
	if err != nil {
		return common.Address{}, false
	}
	return pub.Address(), true
}

// Verify checks sig against the keccak256 digest of msg for the ledger key.
func Verify(key types.Key, msg, sig []byte) bool {
	if len(key) != CompressedKeyLength || len(sig) < SignatureLength-1 {
		return false
	}
	return crypto.VerifySignature(key, crypto.Keccak256(msg), sig[:SignatureLength-1])
}
