package types

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Key is a 33-byte compressed secp256k1 public key.
type Key []byte

// Hex returns the lowercase hex encoding, used as a stable map key.
func (k Key) Hex() string {
	return hex.EncodeToString(k)
}

// Equal reports whether both keys hold the same bytes.
func (k Key) Equal(other Key) bool {
	return bytes.Equal(k, other)
}

// IsEmpty reports whether no key material is present.
func (k Key) IsEmpty() bool {
	return len(k) == 0
}

// AccountAmount is a signed tinybar adjustment to an account.
type AccountAmount struct {
	Account AccountID `json:"accountID"`
	Amount  int64     `json:"amount"`
}

// CryptoTransferBody moves tinybars between accounts. The amounts must net to zero.
type CryptoTransferBody struct {
	Transfers []AccountAmount `json:"transfers"`
}

// CryptoCreateBody creates a new account funded by the payer.
type CryptoCreateBody struct {
	Key                 Key    `json:"key"`
	InitialBalance      uint64 `json:"initialBalance"`
	ReceiverSigRequired bool   `json:"receiverSigRequired,omitempty"`
	Memo                string `json:"memo,omitempty"`
}

// CryptoDeleteBody deletes an account, sweeping its balance to TransferTo.
type CryptoDeleteBody struct {
	Delete     AccountID `json:"deleteAccountID"`
	TransferTo AccountID `json:"transferAccountID"`
}

// FileUpdateBody replaces the contents of a file.
type FileUpdateBody struct {
	File     FileID `json:"fileID"`
	Contents []byte `json:"contents"`
}

// FileAppendBody appends to the contents of a file.
type FileAppendBody struct {
	File     FileID `json:"fileID"`
	Contents []byte `json:"contents"`
}

// FreezeBody schedules (or aborts) a network freeze.
type FreezeBody struct {
	StartSeconds uint64 `json:"startSeconds"`
	Abort        bool   `json:"abort,omitempty"`
}

// SystemDeleteBody marks a file deleted by a privileged payer.
type SystemDeleteBody struct {
	File          FileID `json:"fileID"`
	ExpirySeconds uint64 `json:"expirationTime"`
}

// TransactionBody is the signed portion of a user transaction. Exactly one
// payload pointer is expected to be set.
type TransactionBody struct {
	TransactionID        TransactionID `json:"transactionID"`
	NodeAccount          AccountID     `json:"nodeAccountID"`
	MaxFee               uint64        `json:"transactionFee"`
	ValidDurationSeconds uint64        `json:"transactionValidDuration"`
	Memo                 string        `json:"memo,omitempty"`

	CryptoTransfer *CryptoTransferBody `json:"cryptoTransfer,omitempty"`
	CryptoCreate   *CryptoCreateBody   `json:"cryptoCreateAccount,omitempty"`
	CryptoDelete   *CryptoDeleteBody   `json:"cryptoDelete,omitempty"`
	FileUpdate     *FileUpdateBody     `json:"fileUpdate,omitempty"`
	FileAppend     *FileAppendBody     `json:"fileAppend,omitempty"`
	Freeze         *FreezeBody         `json:"freeze,omitempty"`
	SystemDelete   *SystemDeleteBody   `json:"systemDelete,omitempty"`
}

// Functionality derives the requested operation. Bodies carrying zero or more
// than one payload report FunctionalityNone.
func (b *TransactionBody) Functionality() Functionality {
	if b == nil {
		return FunctionalityNone
	}
	found := FunctionalityNone
	count := 0
	set := func(f Functionality, present bool) {
		if present {
			found = f
			count++
		}
	}
	set(FunctionalityCryptoTransfer, b.CryptoTransfer != nil)
	set(FunctionalityCryptoCreate, b.CryptoCreate != nil)
	set(FunctionalityCryptoDelete, b.CryptoDelete != nil)
	set(FunctionalityFileUpdate, b.FileUpdate != nil)
	set(FunctionalityFileAppend, b.FileAppend != nil)
	set(FunctionalityFreeze, b.Freeze != nil)
	set(FunctionalitySystemDelete, b.SystemDelete != nil)
	if count != 1 {
		return FunctionalityNone
	}
	return found
}

// ValidDuration returns the declared validity window length.
func (b *TransactionBody) ValidDuration() time.Duration {
	return time.Duration(b.ValidDurationSeconds) * time.Second
}

// Encode serialises the body into its canonical signed form.
func (b *TransactionBody) Encode() ([]byte, error) {
	return json.Marshal(b)
}

// SignaturePair carries one signature; the prefix selects the signing key.
type SignaturePair struct {
	PubKeyPrefix []byte `json:"pubKeyPrefix"`
	Signature    []byte `json:"signature"`
}

// SignatureMap is the collection of raw signatures attached to a transaction.
type SignatureMap struct {
	Pairs []SignaturePair `json:"sigPair"`
}

// Transaction is the wire form submitted by users: body bytes plus signatures.
type Transaction struct {
	BodyBytes []byte       `json:"bodyBytes"`
	SigMap    SignatureMap `json:"sigMap"`
}

var (
	ErrEmptyTransaction = errors.New("transaction: empty contents")
	ErrEmptyBody        = errors.New("transaction: empty body")
)

// NewTransaction encodes the body and returns an unsigned transaction.
func NewTransaction(body *TransactionBody) (*Transaction, error) {
	encoded, err := body.Encode()
	if err != nil {
		return nil, err
	}
	return &Transaction{BodyBytes: encoded}, nil
}

// SigningHash is the digest every signature in the map covers.
func (tx *Transaction) SigningHash() []byte {
	return BodySigningHash(tx.BodyBytes)
}

// BodySigningHash hashes raw body bytes the same way signers do.
func BodySigningHash(bodyBytes []byte) []byte {
	return crypto.Keccak256(bodyBytes)
}

// Sign appends a signature produced by the supplied key. The prefix is the
// full compressed public key.
func (tx *Transaction) Sign(privKey *ecdsa.PrivateKey) error {
	sig, err := crypto.Sign(tx.SigningHash(), privKey)
	if err != nil {
		return err
	}
	tx.SigMap.Pairs = append(tx.SigMap.Pairs, SignaturePair{
		PubKeyPrefix: crypto.CompressPubkey(&privKey.PublicKey),
		Signature:    sig,
	})
	return nil
}

// Encode serialises the signed transaction as carried in a platform transaction.
func (tx *Transaction) Encode() ([]byte, error) {
	return json.Marshal(tx)
}

// ParseTransaction decodes platform transaction contents into the signed
// transaction and its body.
func ParseTransaction(contents []byte) (*Transaction, *TransactionBody, error) {
	if len(contents) == 0 {
		return nil, nil, ErrEmptyTransaction
	}
	tx := new(Transaction)
	if err := json.Unmarshal(contents, tx); err != nil {
		return nil, nil, fmt.Errorf("transaction: decode: %w", err)
	}
	if len(tx.BodyBytes) == 0 {
		return nil, nil, ErrEmptyBody
	}
	body := new(TransactionBody)
	if err := json.Unmarshal(tx.BodyBytes, body); err != nil {
		return nil, nil, fmt.Errorf("transaction: decode body: %w", err)
	}
	return tx, body, nil
}

// TransactionHash identifies transaction contents in records and side tables.
func TransactionHash(contents []byte) common.Hash {
	return crypto.Keccak256Hash(contents)
}
