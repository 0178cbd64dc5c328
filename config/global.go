package config

import (
	"time"

	"ledgernode/core/types"
)

// DefaultGlobal returns the runtime configuration used when the node config
// does not override it.
func DefaultGlobal() Global {
	schedule := make(map[string]FeeComponents)
	buckets := make(map[string]Throttle)
	for _, fn := range types.Functionalities() {
		schedule[fn.String()] = FeeComponents{Node: 10_000, Network: 20_000, Service: 70_000}
		buckets[fn.String()] = Throttle{TPS: 1000, Burst: 2000}
	}
	return Global{
		Ledger: Ledger{
			FundingAccount:       98,
			StakingRewardAccount: 800,
			FirstUserEntity:      1001,
			MaxProtectedEntity:   750,
			TransferListMax:      10,
			GenesisAccounts:      []types.AccountID{2, 98, 800},
		},
		Nodes: []types.NodeInfo{
			{ID: 0, Account: 3},
			{ID: 1, Account: 4},
			{ID: 2, Account: 5},
		},
		Transactions: Transactions{
			MinValidDurationSecs:  15,
			MaxValidDurationSecs:  180,
			MinValidityBufferSecs: 10,
			MaxMemoBytes:          100,
		},
		Fees: Fees{
			Schedule:     schedule,
			ExchangeRate: ExchangeRate{HbarEquiv: 1, CentEquiv: 12},
		},
		Throttles: Throttles{
			Buckets:                buckets,
			CongestionThresholdPct: 90,
			CongestionMultiplier:   7,
		},
		Signatures: Signatures{Workers: 8, TimeoutMillis: 2000},
		Privileged: Privileged{
			SystemAdmin:        50,
			Treasury:           2,
			FreezeAdmin:        58,
			SystemDeleteAdmin:  59,
			FeeScheduleAdmin:   56,
			ExchangeRateAdmin:  57,
			FeeScheduleFile:    111,
			ExchangeRateFile:   112,
			PropertiesFile:     121,
			MaxSystemFileBytes: 1024 * 1024,
		},
		Staking: Staking{PeriodMinutes: 1440, RewardPerPeriod: 0},
		Records: Records{BlockPeriodSecs: 2},
	}
}

// Clone returns a deep copy of g.
func (g Global) Clone() Global {
	out := g
	out.Ledger.GenesisAccounts = append([]types.AccountID(nil), g.Ledger.GenesisAccounts...)
	out.Nodes = append([]types.NodeInfo(nil), g.Nodes...)
	out.Fees.Schedule = make(map[string]FeeComponents, len(g.Fees.Schedule))
	for k, v := range g.Fees.Schedule {
		out.Fees.Schedule[k] = v
	}
	out.Throttles.Buckets = make(map[string]Throttle, len(g.Throttles.Buckets))
	for k, v := range g.Throttles.Buckets {
		out.Throttles.Buckets[k] = v
	}
	return out
}

// NodeAccount returns the account that is paid node fees for the node.
func (g Global) NodeAccount(id types.NodeID) (types.AccountID, bool) {
	for _, node := range g.Nodes {
		if node.ID == id {
			return node.Account, true
		}
	}
	return 0, false
}

// FeeScheduleFor returns the schedule entry for the functionality.
func (g Global) FeeScheduleFor(fn types.Functionality) (FeeComponents, bool) {
	entry, ok := g.Fees.Schedule[fn.String()]
	return entry, ok
}

// SignatureTimeout returns the bound on a single verification wait.
func (g Global) SignatureTimeout() time.Duration {
	return time.Duration(g.Signatures.TimeoutMillis) * time.Millisecond
}

// BlockPeriod returns the consensus-time length of a record stream block.
func (g Global) BlockPeriod() time.Duration {
	return time.Duration(g.Records.BlockPeriodSecs) * time.Second
}

// StakingPeriod returns the staking period length.
func (g Global) StakingPeriod() time.Duration {
	return time.Duration(g.Staking.PeriodMinutes) * time.Minute
}

// IsSystemFile reports whether the file is one of the configuration files
// consumed by system file updates.
func (g Global) IsSystemFile(id types.FileID) bool {
	return id == g.Privileged.FeeScheduleFile || id == g.Privileged.ExchangeRateFile || id == g.Privileged.PropertiesFile
}
