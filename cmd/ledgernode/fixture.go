package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ledgernode/core/state"
	"ledgernode/core/types"
	"ledgernode/crypto"
)

const (
	defaultValidDurationSecs = 120
	defaultMaxFee            = 100_000_000
	defaultValidStartOffset  = -time.Second
)

// Fixture is a replayable sequence of consensus rounds together with the
// accounts they start from. Private keys are only ever present in fixtures
// used for local replay.
type Fixture struct {
	Accounts []FixtureAccount `yaml:"accounts"`
	Rounds   []FixtureRound   `yaml:"rounds"`

	dir string
}

type FixtureAccount struct {
	ID         types.AccountID `yaml:"id"`
	Balance    uint64          `yaml:"balance"`
	PrivateKey string          `yaml:"privateKey"`
	// Keystore names an encrypted v3 keystore file, relative to the fixture.
	Keystore            string `yaml:"keystore"`
	ReceiverSigRequired bool   `yaml:"receiverSigRequired"`
}

type FixtureRound struct {
	Number uint64         `yaml:"number"`
	Events []FixtureEvent `yaml:"events"`
}

type FixtureEvent struct {
	Creator      types.NodeID         `yaml:"creator"`
	Transactions []FixtureTransaction `yaml:"transactions"`
}

// FixtureTransaction describes one platform transaction. Raw, when set, is
// submitted verbatim; otherwise a body is assembled from the remaining fields
// and signed by Signers.
type FixtureTransaction struct {
	At     time.Time `yaml:"at"`
	System bool      `yaml:"system"`
	Raw    string    `yaml:"raw"`

	Payer         types.AccountID   `yaml:"payer"`
	Node          types.AccountID   `yaml:"node"`
	ValidStart    *time.Duration    `yaml:"validStart"`
	ValidDuration uint64            `yaml:"validDuration"`
	MaxFee        uint64            `yaml:"maxFee"`
	Memo          string            `yaml:"memo"`
	Signers       []types.AccountID `yaml:"signers"`

	Transfer     []FixtureAmount      `yaml:"transfer"`
	Create       *FixtureCreate       `yaml:"create"`
	Delete       *FixtureDelete       `yaml:"delete"`
	FileUpdate   *FixtureFile         `yaml:"fileUpdate"`
	FileAppend   *FixtureFile         `yaml:"fileAppend"`
	Freeze       *FixtureFreeze       `yaml:"freeze"`
	SystemDelete *FixtureSystemDelete `yaml:"systemDelete"`
}

type FixtureAmount struct {
	Account types.AccountID `yaml:"account"`
	Amount  int64           `yaml:"amount"`
}

type FixtureCreate struct {
	// KeyOf names the fixture account whose key the new account gets.
	KeyOf               types.AccountID `yaml:"keyOf"`
	InitialBalance      uint64          `yaml:"initialBalance"`
	ReceiverSigRequired bool            `yaml:"receiverSigRequired"`
	Memo                string          `yaml:"memo"`
}

type FixtureDelete struct {
	Account    types.AccountID `yaml:"account"`
	TransferTo types.AccountID `yaml:"transferTo"`
}

type FixtureFile struct {
	File     types.FileID `yaml:"file"`
	Contents string       `yaml:"contents"`
}

type FixtureFreeze struct {
	Start time.Time `yaml:"start"`
	Abort bool      `yaml:"abort"`
}

type FixtureSystemDelete struct {
	File   types.FileID `yaml:"file"`
	Expiry time.Time    `yaml:"expiry"`
}

// LoadFixture reads and decodes a YAML fixture, rejecting unknown fields.
func LoadFixture(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	fixture := new(Fixture)
	if err := dec.Decode(fixture); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	fixture.dir = filepath.Dir(path)
	return fixture, nil
}

// Keys parses the private keys of the fixture accounts. Keystore files are
// decrypted with passphrase.
func (f *Fixture) Keys(passphrase string) (map[types.AccountID]*crypto.PrivateKey, error) {
	keys := make(map[types.AccountID]*crypto.PrivateKey, len(f.Accounts))
	for _, account := range f.Accounts {
		raw := strings.TrimPrefix(strings.TrimSpace(account.PrivateKey), "0x")
		switch {
		case raw != "" && account.Keystore != "":
			return nil, fmt.Errorf("account %s: privateKey and keystore are exclusive", account.ID)
		case account.Keystore != "":
			path := account.Keystore
			if !filepath.IsAbs(path) {
				path = filepath.Join(f.dir, path)
			}
			key, err := crypto.ReadKeystore(path, passphrase)
			if err != nil {
				return nil, fmt.Errorf("account %s: %w", account.ID, err)
			}
			keys[account.ID] = key
		case raw != "":
			decoded, err := hex.DecodeString(raw)
			if err != nil {
				return nil, fmt.Errorf("account %s: private key: %w", account.ID, err)
			}
			key, err := crypto.PrivateKeyFromBytes(decoded)
			if err != nil {
				return nil, fmt.Errorf("account %s: private key: %w", account.ID, err)
			}
			keys[account.ID] = key
		}
	}
	return keys, nil
}

// Seed writes the fixture accounts, plus any listed extra accounts that are
// still missing, into sp. Existing accounts are left untouched.
func (f *Fixture) Seed(sp *state.Savepoint, keys map[types.AccountID]*crypto.PrivateKey, extra ...types.AccountID) (int, error) {
	seeded := 0
	put := func(account *types.Account) error {
		existing, err := sp.GetAccount(account.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}
		seeded++
		return sp.PutAccount(account)
	}
	for _, a := range f.Accounts {
		account := &types.Account{ID: a.ID, Balance: a.Balance, ReceiverSigRequired: a.ReceiverSigRequired}
		if key, ok := keys[a.ID]; ok {
			account.Key = key.PubKey().Key()
		}
		if err := put(account); err != nil {
			return seeded, err
		}
	}
	for _, id := range extra {
		if id == 0 {
			continue
		}
		if err := put(&types.Account{ID: id}); err != nil {
			return seeded, err
		}
	}
	return seeded, nil
}

// Round converts a fixture round into a consensus round, signing every body.
func (r FixtureRound) Round(keys map[types.AccountID]*crypto.PrivateKey) (*types.ConsensusRound, error) {
	out := &types.ConsensusRound{Number: r.Number}
	for _, ev := range r.Events {
		event := &types.ConsensusEvent{Creator: ev.Creator}
		for i, ftx := range ev.Transactions {
			tx, err := ftx.Platform(keys)
			if err != nil {
				return nil, fmt.Errorf("round %d creator %d transaction %d: %w", r.Number, ev.Creator, i, err)
			}
			event.Transactions = append(event.Transactions, tx)
		}
		out.Events = append(out.Events, event)
	}
	return out, nil
}

// Platform builds the platform transaction.
func (ftx FixtureTransaction) Platform(keys map[types.AccountID]*crypto.PrivateKey) (*types.PlatformTransaction, error) {
	if ftx.At.IsZero() {
		return nil, errors.New("consensus time required")
	}
	at := ftx.At.UTC()
	if ftx.System {
		return &types.PlatformTransaction{System: true, ConsensusTime: at}, nil
	}
	if ftx.Raw != "" {
		return &types.PlatformTransaction{Contents: []byte(ftx.Raw), ConsensusTime: at}, nil
	}
	body, err := ftx.Body(keys)
	if err != nil {
		return nil, err
	}
	signed, err := types.NewTransaction(body)
	if err != nil {
		return nil, err
	}
	for _, id := range ftx.Signers {
		key, ok := keys[id]
		if !ok {
			return nil, fmt.Errorf("no private key for signer %s", id)
		}
		if err := signed.Sign(key.PrivateKey); err != nil {
			return nil, err
		}
	}
	contents, err := signed.Encode()
	if err != nil {
		return nil, err
	}
	return &types.PlatformTransaction{Contents: contents, ConsensusTime: at}, nil
}

// Body assembles the transaction body with defaults applied.
func (ftx FixtureTransaction) Body(keys map[types.AccountID]*crypto.PrivateKey) (*types.TransactionBody, error) {
	offset := defaultValidStartOffset
	if ftx.ValidStart != nil {
		offset = *ftx.ValidStart
	}
	body := &types.TransactionBody{
		TransactionID:        types.NewTransactionID(ftx.Payer, ftx.At.UTC().Add(offset)),
		NodeAccount:          ftx.Node,
		MaxFee:               ftx.MaxFee,
		ValidDurationSeconds: ftx.ValidDuration,
		Memo:                 ftx.Memo,
	}
	if body.MaxFee == 0 {
		body.MaxFee = defaultMaxFee
	}
	if body.ValidDurationSeconds == 0 {
		body.ValidDurationSeconds = defaultValidDurationSecs
	}

	if len(ftx.Transfer) > 0 {
		list := make([]types.AccountAmount, 0, len(ftx.Transfer))
		for _, aa := range ftx.Transfer {
			list = append(list, types.AccountAmount{Account: aa.Account, Amount: aa.Amount})
		}
		body.CryptoTransfer = &types.CryptoTransferBody{Transfers: list}
	}
	if c := ftx.Create; c != nil {
		key, ok := keys[c.KeyOf]
		if !ok {
			return nil, fmt.Errorf("create: no key for account %s", c.KeyOf)
		}
		body.CryptoCreate = &types.CryptoCreateBody{
			Key:                 key.PubKey().Key(),
			InitialBalance:      c.InitialBalance,
			ReceiverSigRequired: c.ReceiverSigRequired,
			Memo:                c.Memo,
		}
	}
	if d := ftx.Delete; d != nil {
		body.CryptoDelete = &types.CryptoDeleteBody{Delete: d.Account, TransferTo: d.TransferTo}
	}
	if u := ftx.FileUpdate; u != nil {
		body.FileUpdate = &types.FileUpdateBody{File: u.File, Contents: []byte(u.Contents)}
	}
	if a := ftx.FileAppend; a != nil {
		body.FileAppend = &types.FileAppendBody{File: a.File, Contents: []byte(a.Contents)}
	}
	if fz := ftx.Freeze; fz != nil {
		body.Freeze = &types.FreezeBody{Abort: fz.Abort}
		if !fz.Start.IsZero() {
			body.Freeze.StartSeconds = uint64(fz.Start.Unix())
		}
	}
	if sd := ftx.SystemDelete; sd != nil {
		body.SystemDelete = &types.SystemDeleteBody{File: sd.File}
		if !sd.Expiry.IsZero() {
			body.SystemDelete.ExpirySeconds = uint64(sd.Expiry.Unix())
		}
	}
	return body, nil
}
