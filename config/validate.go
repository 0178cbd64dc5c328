package config

import (
	"fmt"

	"ledgernode/core/types"
)

var (
	MinValidDurationFloorSeconds = uint64(1)
)

func ValidateConfig(g Global) error {
	if g.Ledger.FundingAccount == 0 {
		return fmt.Errorf("ledger: funding_account must be set")
	}
	if g.Ledger.FirstUserEntity <= g.Ledger.MaxProtectedEntity {
		return fmt.Errorf("ledger: first_user_entity <= max_protected_entity")
	}
	if g.Ledger.TransferListMax <= 0 {
		return fmt.Errorf("ledger: transfer_list_max <= 0")
	}
	if len(g.Nodes) == 0 {
		return fmt.Errorf("nodes: address book is empty")
	}
	seen := make(map[types.NodeID]struct{}, len(g.Nodes))
	for _, node := range g.Nodes {
		if _, dup := seen[node.ID]; dup {
			return fmt.Errorf("nodes: duplicate node %d", node.ID)
		}
		seen[node.ID] = struct{}{}
		if node.Account == 0 {
			return fmt.Errorf("nodes: node %d has no account", node.ID)
		}
	}
	if g.Transactions.MinValidDurationSecs < MinValidDurationFloorSeconds ||
		g.Transactions.MinValidDurationSecs > g.Transactions.MaxValidDurationSecs {
		return fmt.Errorf("transactions: min_valid_duration > max_valid_duration or zero")
	}
	if g.Fees.ExchangeRate.HbarEquiv == 0 || g.Fees.ExchangeRate.CentEquiv == 0 {
		return fmt.Errorf("fees: exchange rate components must be positive")
	}
	for name := range g.Fees.Schedule {
		if _, ok := types.ParseFunctionality(name); !ok {
			return fmt.Errorf("fees: unknown functionality %q", name)
		}
	}
	for name, bucket := range g.Throttles.Buckets {
		if _, ok := types.ParseFunctionality(name); !ok {
			return fmt.Errorf("throttles: unknown functionality %q", name)
		}
		if bucket.TPS <= 0 || bucket.Burst <= 0 {
			return fmt.Errorf("throttles: %s tps and burst must be positive", name)
		}
	}
	if g.Throttles.CongestionThresholdPct > 100 {
		return fmt.Errorf("throttles: congestion_threshold_pct > 100")
	}
	if g.Throttles.CongestionMultiplier == 0 {
		return fmt.Errorf("throttles: congestion_multiplier must be positive")
	}
	if g.Signatures.Workers <= 0 {
		return fmt.Errorf("signatures: workers <= 0")
	}
	if g.Signatures.TimeoutMillis == 0 {
		return fmt.Errorf("signatures: timeout_millis must be positive")
	}
	if g.Staking.PeriodMinutes == 0 {
		return fmt.Errorf("staking: period_minutes must be positive")
	}
	if g.Records.BlockPeriodSecs == 0 {
		return fmt.Errorf("records: block_period_secs must be positive")
	}
	return nil
}
