package accounts

import (
	"ledgernode/core/dispatch"
	"ledgernode/core/types"
)

// Register installs the account handlers.
func Register(r *dispatch.Registry) *dispatch.Registry {
	return r.
		Register(types.FunctionalityCryptoTransfer, TransferHandler{}).
		Register(types.FunctionalityCryptoCreate, CreateHandler{}).
		Register(types.FunctionalityCryptoDelete, DeleteHandler{})
}
