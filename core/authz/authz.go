package authz

import (
	"ledgernode/config"
	"ledgernode/core/types"
)

// SystemOpAuthorization is the outcome of a privileged authorization check.
type SystemOpAuthorization uint8

const (
	// Unnecessary means the transaction touches no privileged entity.
	Unnecessary SystemOpAuthorization = iota
	Authorized
	Unauthorized
	// Impermissible means no payer may perform the operation.
	Impermissible
)

func (a SystemOpAuthorization) String() string {
	switch a {
	case Authorized:
		return "AUTHORIZED"
	case Unauthorized:
		return "UNAUTHORIZED"
	case Impermissible:
		return "IMPERMISSIBLE"
	default:
		return "UNNECESSARY"
	}
}

// ResponseCode maps a denial to its record status. It returns false for
// outcomes that let the transaction proceed.
func (a SystemOpAuthorization) ResponseCode() (types.ResponseCode, bool) {
	switch a {
	case Unauthorized:
		return types.ResponseAuthorizationFailed, true
	case Impermissible:
		return types.ResponseEntityNotAllowedToDelete, true
	default:
		return types.ResponseOK, false
	}
}

// Authorizer decides which payers may use administrative functionality.
type Authorizer struct{}

func superuser(p config.Privileged, payer types.AccountID) bool {
	return payer == p.Treasury || payer == p.SystemAdmin
}

// IsAuthorized reports whether payer may use fn at all.
func (Authorizer) IsAuthorized(g config.Global, payer types.AccountID, fn types.Functionality) bool {
	p := g.Privileged
	switch fn {
	case types.FunctionalityFreeze:
		return superuser(p, payer) || payer == p.FreezeAdmin
	case types.FunctionalitySystemDelete:
		return superuser(p, payer) || payer == p.SystemDeleteAdmin
	default:
		return true
	}
}

// HasPrivilegedAuthorization checks operations on privileged entities: system
// files may only be changed by their admins and protected entities can never
// be deleted.
func (Authorizer) HasPrivilegedAuthorization(g config.Global, payer types.AccountID, body *types.TransactionBody) SystemOpAuthorization {
	p := g.Privileged
	switch body.Functionality() {
	case types.FunctionalityFileUpdate:
		return fileAuthorization(p, payer, body.FileUpdate.File)
	case types.FunctionalityFileAppend:
		return fileAuthorization(p, payer, body.FileAppend.File)
	case types.FunctionalityCryptoDelete:
		if uint64(body.CryptoDelete.Delete) <= g.Ledger.MaxProtectedEntity {
			return Impermissible
		}
	case types.FunctionalitySystemDelete:
		if uint64(body.SystemDelete.File) <= g.Ledger.MaxProtectedEntity {
			return Impermissible
		}
	}
	return Unnecessary
}

func fileAuthorization(p config.Privileged, payer types.AccountID, file types.FileID) SystemOpAuthorization {
	var admin types.AccountID
	switch file {
	case p.FeeScheduleFile:
		admin = p.FeeScheduleAdmin
	case p.ExchangeRateFile:
		admin = p.ExchangeRateAdmin
	case p.PropertiesFile:
		admin = p.SystemAdmin
	default:
		return Unnecessary
	}
	if superuser(p, payer) || payer == admin {
		return Authorized
	}
	return Unauthorized
}
