package types

// Account is the ledger state of a single account.
type Account struct {
	ID                  AccountID `json:"accountID"`
	Key                 Key       `json:"key"`
	Balance             uint64    `json:"balance"`
	Deleted             bool      `json:"deleted"`
	ReceiverSigRequired bool      `json:"receiverSigRequired"`
	Memo                string    `json:"memo"`
}

// Clone returns a copy that does not share the key slice.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Key = append(Key(nil), a.Key...)
	return &clone
}

// File is a stored file entity, used for system configuration files.
type File struct {
	ID       FileID `json:"fileID"`
	Contents []byte `json:"contents"`
	Deleted  bool   `json:"deleted"`
	Expiry   uint64 `json:"expiry"`
}
