package config

import "ledgernode/core/types"

// Ledger names the special accounts and entity ranges of the ledger.
type Ledger struct {
	// FundingAccount receives network and service fees.
	FundingAccount types.AccountID
	// StakingRewardAccount receives the periodic staking hook payouts.
	StakingRewardAccount types.AccountID
	// FirstUserEntity is the lowest entity number handed to created accounts.
	FirstUserEntity uint64
	// MaxProtectedEntity bounds the system entities that can never be deleted.
	MaxProtectedEntity uint64
	TransferListMax    int
	// GenesisAccounts are externalized once by the genesis records hook.
	GenesisAccounts []types.AccountID
}

// Transactions bounds the validity window of user transactions.
type Transactions struct {
	MinValidDurationSecs  uint64
	MaxValidDurationSecs  uint64
	MinValidityBufferSecs uint64
	MaxMemoBytes          int
}

// FeeComponents is a fee schedule entry in tinycents.
type FeeComponents struct {
	Node    uint64
	Network uint64
	Service uint64
}

// ExchangeRate converts tinycents into tinybars: tinybars = tinycents * HbarEquiv / CentEquiv.
type ExchangeRate struct {
	HbarEquiv uint64
	CentEquiv uint64
}

// Fees groups the fee schedule and the active exchange rate.
type Fees struct {
	Schedule     map[string]FeeComponents
	ExchangeRate ExchangeRate
}

// Throttle limits the throughput of one functionality.
type Throttle struct {
	TPS   float64
	Burst int
}

// Throttles configures per-functionality buckets and congestion pricing.
type Throttles struct {
	Buckets map[string]Throttle
	// CongestionThresholdPct is the bucket utilization above which fees are
	// multiplied by CongestionMultiplier.
	CongestionThresholdPct uint64
	CongestionMultiplier   uint64
}

// Signatures configures the asynchronous verification pool.
type Signatures struct {
	Workers       int64
	TimeoutMillis uint64
}

// Privileged lists the administrative accounts and system files.
type Privileged struct {
	SystemAdmin        types.AccountID
	Treasury           types.AccountID
	FreezeAdmin        types.AccountID
	SystemDeleteAdmin  types.AccountID
	FeeScheduleAdmin   types.AccountID
	ExchangeRateAdmin  types.AccountID
	FeeScheduleFile    types.FileID
	ExchangeRateFile   types.FileID
	PropertiesFile     types.FileID
	MaxSystemFileBytes int
}

// Staking configures the staking period boundary hook.
type Staking struct {
	PeriodMinutes uint64
	// RewardPerPeriod is moved from the staking reward account to the funding
	// account at each period boundary, bounded by the available balance.
	RewardPerPeriod uint64
}

// Records configures the record stream.
type Records struct {
	BlockPeriodSecs uint64
}

// Global bundles the runtime configuration values enforced by ValidateConfig.
type Global struct {
	Ledger       Ledger
	Nodes        []types.NodeInfo
	Transactions Transactions
	Fees         Fees
	Throttles    Throttles
	Signatures   Signatures
	Privileged   Privileged
	Staking      Staking
	Records      Records
}
