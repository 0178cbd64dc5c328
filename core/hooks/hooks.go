package hooks

import (
	"errors"
	"fmt"
	"time"

	"ledgernode/config"
	"ledgernode/core/state"
	"ledgernode/core/types"
)

// Context is the write handle a hook receives. Records a hook wants to
// externalize are collected as children of the triggering transaction.
type Context struct {
	Store         *state.Savepoint
	ConsensusTime time.Time
	Config        config.Global

	children []Child
}

// Child is an auxiliary record produced by a hook.
type Child struct {
	Memo      string
	Transfers map[types.AccountID]int64
}

// AddChild queues an auxiliary record.
func (c *Context) AddChild(memo string, transfers map[types.AccountID]int64) {
	c.children = append(c.children, Child{Memo: memo, Transfers: transfers})
}

// Children returns the queued records in order.
func (c *Context) Children() []Child {
	return c.children
}

// ConsensusTimeHook runs maintenance keyed off consensus time. Process must be
// a no-op when there is no pending work.
type ConsensusTimeHook interface {
	Name() string
	Process(ctx *Context) error
}

// GenesisRecordsHook externalizes the genesis accounts once, on the first
// user transaction the ledger ever handles.
type GenesisRecordsHook struct{}

func (GenesisRecordsHook) Name() string { return "genesis_records" }

func (GenesisRecordsHook) Process(ctx *Context) error {
	done, err := ctx.Store.GenesisRecordsCreated()
	if err != nil {
		return err
	}
	if done {
		return nil
	}
	for _, id := range ctx.Config.Ledger.GenesisAccounts {
		account, err := ctx.Store.GetAccount(id)
		if err != nil {
			return err
		}
		if account == nil || account.Deleted {
			continue
		}
		ctx.AddChild(fmt.Sprintf("genesis account %s", id), map[types.AccountID]int64{id: int64(account.Balance)})
	}
	return ctx.Store.MarkGenesisRecordsCreated()
}

// StakingPeriodHook pays the staking reward from the staking reward account
// into the funding account whenever consensus time crosses a staking period
// boundary.
type StakingPeriodHook struct{}

func (StakingPeriodHook) Name() string { return "staking_period" }

// PeriodOf returns the staking period containing t.
func PeriodOf(t time.Time, period time.Duration) uint64 {
	if period <= 0 || t.Unix() < 0 {
		return 0
	}
	return uint64(t.Unix()) / uint64(period/time.Second)
}

func (StakingPeriodHook) Process(ctx *Context) error {
	period := ctx.Config.StakingPeriod()
	if period < time.Second {
		return nil
	}
	current := PeriodOf(ctx.ConsensusTime, period)
	last, seen, err := ctx.Store.LastStakingPeriod()
	if err != nil {
		return err
	}
	if seen && current <= last {
		return nil
	}
	if err := ctx.Store.SetLastStakingPeriod(current); err != nil {
		return err
	}
	if !seen {
		return nil
	}
	ledger := ctx.Config.Ledger
	reward := ctx.Config.Staking.RewardPerPeriod
	if reward == 0 {
		return nil
	}
	balance, err := ctx.Store.Balance(ledger.StakingRewardAccount)
	if errors.Is(err, state.ErrAccountNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if reward > balance {
		reward = balance
	}
	if reward == 0 {
		return nil
	}
	if err := ctx.Store.Transfer(ledger.StakingRewardAccount, ledger.FundingAccount, reward); err != nil {
		return err
	}
	ctx.AddChild(fmt.Sprintf("staking period %d", current), map[types.AccountID]int64{
		ledger.StakingRewardAccount: -int64(reward),
		ledger.FundingAccount:       int64(reward),
	})
	return nil
}

// Default returns the hooks run after every user transaction, in order.
func Default() []ConsensusTimeHook {
	return []ConsensusTimeHook{GenesisRecordsHook{}, StakingPeriodHook{}}
}
