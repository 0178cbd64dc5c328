package sysfiles

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BurntSushi/toml"

	"ledgernode/config"
	"ledgernode/core/state"
	"ledgernode/core/types"
	"ledgernode/observability/logging"
)

// SystemFileUpdates refreshes the runtime configuration when a committed
// transaction changes one of the system configuration files.
type SystemFileUpdates struct {
	provider *config.Provider
	logger   *slog.Logger
}

// NewSystemFileUpdates returns an updater publishing into provider.
func NewSystemFileUpdates(provider *config.Provider, logger *slog.Logger) *SystemFileUpdates {
	return &SystemFileUpdates{provider: provider, logger: logging.Component(logger, "sysfiles")}
}

type feeScheduleFile struct {
	Schedule map[string]config.FeeComponents
}

type propertiesFile struct {
	Transactions config.Transactions
	Throttles    config.Throttles
	Signatures   config.Signatures
	Staking      config.Staking
	Records      config.Records
}

// HandleTxBody inspects a committed body and, when it touched a system file,
// reloads that file from m into the configuration. Bodies that touch no
// system file return OK. Malformed contents leave the configuration as it is
// and report why.
func (u *SystemFileUpdates) HandleTxBody(m *state.Manager, body *types.TransactionBody) types.ResponseCode {
	var id types.FileID
	switch {
	case body == nil:
		return types.ResponseOK
	case body.FileUpdate != nil:
		id = body.FileUpdate.File
	case body.FileAppend != nil:
		id = body.FileAppend.File
	default:
		return types.ResponseOK
	}
	g := u.provider.Current().Global
	if !g.IsSystemFile(id) {
		return types.ResponseOK
	}
	file, err := m.GetFile(id)
	if err != nil || file == nil || file.Deleted {
		u.logger.Warn("system file unavailable", slog.String("file", id.String()), slog.Any("error", err))
		return types.ResponseInvalidFileID
	}

	var apply func(*config.Global) error
	var failure types.ResponseCode
	switch id {
	case g.Privileged.FeeScheduleFile:
		failure = types.ResponseFeeScheduleFilePartUploaded
		apply = func(next *config.Global) error {
			var parsed feeScheduleFile
			if err := decodeStrict(file.Contents, &parsed); err != nil {
				return err
			}
			for name := range parsed.Schedule {
				if _, ok := types.ParseFunctionality(name); !ok {
					return fmt.Errorf("unknown functionality %q", name)
				}
			}
			for name, entry := range parsed.Schedule {
				next.Fees.Schedule[name] = entry
			}
			return nil
		}
	case g.Privileged.ExchangeRateFile:
		failure = types.ResponseInvalidExchangeRateFile
		apply = func(next *config.Global) error {
			var rate config.ExchangeRate
			if err := decodeStrict(file.Contents, &rate); err != nil {
				return err
			}
			if rate.HbarEquiv == 0 || rate.CentEquiv == 0 {
				return fmt.Errorf("exchange rate components must be positive")
			}
			next.Fees.ExchangeRate = rate
			return nil
		}
	default:
		failure = types.ResponseInvalidPropertiesFile
		apply = func(next *config.Global) error {
			props := propertiesFile{
				Transactions: next.Transactions,
				Throttles:    next.Throttles,
				Signatures:   next.Signatures,
				Staking:      next.Staking,
				Records:      next.Records,
			}
			if err := decodeStrict(file.Contents, &props); err != nil {
				return err
			}
			next.Transactions = props.Transactions
			next.Throttles = props.Throttles
			next.Signatures = props.Signatures
			next.Staking = props.Staking
			next.Records = props.Records
			return nil
		}
	}

	snap, err := u.provider.Update(apply)
	if err != nil {
		u.logger.Info("system file not applied",
			slog.String("file", id.String()),
			slog.String("status", failure.String()),
			slog.Any("error", err))
		return failure
	}
	if err := storeSnapshot(m, snap); err != nil {
		u.logger.Error("configuration snapshot not stored",
			slog.Uint64("version", snap.Version),
			slog.Any("error", err))
	}
	u.logger.Info("configuration updated from system file",
		slog.String("file", id.String()),
		slog.Uint64("version", snap.Version))
	return types.ResponseSuccess
}

func storeSnapshot(m *state.Manager, snap *config.Snapshot) error {
	encoded, err := json.Marshal(snap.Global)
	if err != nil {
		return err
	}
	return m.SetConfigSnapshot(snap.Version, encoded)
}

// Restore republishes the configuration last stored by a system file update,
// at the version it was published under. State without a stored snapshot
// leaves the provider as it is.
func (u *SystemFileUpdates) Restore(m *state.Manager) (*config.Snapshot, error) {
	stored, err := m.ConfigSnapshot()
	if err != nil {
		return nil, fmt.Errorf("load configuration snapshot: %w", err)
	}
	if stored == nil {
		return u.provider.Current(), nil
	}
	var g config.Global
	if err := json.Unmarshal(stored.Global, &g); err != nil {
		return nil, fmt.Errorf("decode configuration snapshot: %w", err)
	}
	snap, err := u.provider.Restore(stored.Version, g)
	if err != nil {
		return nil, err
	}
	u.logger.Info("configuration restored from state", slog.Uint64("version", snap.Version))
	return snap, nil
}

func decodeStrict(contents []byte, v any) error {
	if len(bytes.TrimSpace(contents)) == 0 {
		return fmt.Errorf("empty contents")
	}
	md, err := toml.NewDecoder(bytes.NewReader(contents)).Decode(v)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown keys %v", undecoded)
	}
	return nil
}

// DualStateUpdates applies committed freeze transactions to the dual state.
type DualStateUpdates struct {
	logger *slog.Logger
}

// NewDualStateUpdates returns the dual state updater.
func NewDualStateUpdates(logger *slog.Logger) *DualStateUpdates {
	return &DualStateUpdates{logger: logging.Component(logger, "dualstate")}
}

// HandleTxBody schedules or aborts a freeze for a committed freeze body.
func (u *DualStateUpdates) HandleTxBody(dual *state.DualState, body *types.TransactionBody) types.ResponseCode {
	if body == nil || body.Freeze == nil || dual == nil {
		return types.ResponseOK
	}
	if body.Freeze.Abort {
		dual.SetFreezeTime(time.Time{})
		u.logger.Info("freeze aborted")
		return types.ResponseSuccess
	}
	at := time.Unix(int64(body.Freeze.StartSeconds), 0).UTC()
	dual.SetFreezeTime(at)
	u.logger.Info("freeze scheduled", slog.Time("at", at))
	return types.ResponseSuccess
}

// Observe marks a scheduled freeze as reached once consensus time passes it.
// It reports whether a freeze was reached.
func (u *DualStateUpdates) Observe(dual *state.DualState, now time.Time) bool {
	if dual == nil || !dual.FreezePending(now) {
		return false
	}
	at := dual.FreezeTime()
	dual.SetLastFrozenTime(at)
	dual.SetFreezeTime(time.Time{})
	u.logger.Info("freeze time reached", slog.Time("at", at))
	return true
}
