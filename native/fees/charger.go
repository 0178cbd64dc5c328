package fees

import (
	"fmt"
	"sort"

	"ledgernode/core/state"
	"ledgernode/core/types"
)

// Charged is what was actually moved for a fee charge.
type Charged struct {
	Payer     types.AccountID       `json:"payer"`
	Node      uint64                `json:"nodeFee"`
	Network   uint64                `json:"networkFee"`
	Service   uint64                `json:"serviceFee"`
	Transfers []types.AccountAmount `json:"transfers,omitempty"`
}

// Total returns the sum of the charged components.
func (c Charged) Total() uint64 {
	return Fees{Node: c.Node, Network: c.Network, Service: c.Service}.TotalFee()
}

// Charger moves fees out of a paying account. Network and service fees go to
// the funding account; node fees go to the submitting node's account.
type Charger struct {
	Funding types.AccountID
}

// Charge takes fees from payer, component by component in the order network,
// node, service, never more than the payer holds. The payer must exist.
func (c Charger) Charge(m *state.Manager, payer, nodeAccount types.AccountID, fees Fees) (Charged, error) {
	charged := Charged{Payer: payer}
	if fees.IsZero() {
		return charged, nil
	}
	available, err := m.Balance(payer)
	if err != nil {
		return charged, fmt.Errorf("fees: payer %s: %w", payer, err)
	}
	take := func(amount uint64) uint64 {
		if amount > available {
			amount = available
		}
		available -= amount
		return amount
	}
	charged.Network = take(fees.Network)
	charged.Node = take(fees.Node)
	charged.Service = take(fees.Service)

	if err := m.Debit(payer, charged.Total()); err != nil {
		return Charged{Payer: payer}, err
	}
	deltas := map[types.AccountID]int64{payer: -int64(charged.Total())}
	if charged.Node > 0 {
		if err := m.Credit(nodeAccount, charged.Node); err != nil {
			return Charged{Payer: payer}, fmt.Errorf("fees: node account %s: %w", nodeAccount, err)
		}
		deltas[nodeAccount] += int64(charged.Node)
	}
	if toFunding := charged.Network + charged.Service; toFunding > 0 {
		if err := m.Credit(c.Funding, toFunding); err != nil {
			return Charged{Payer: payer}, fmt.Errorf("fees: funding account %s: %w", c.Funding, err)
		}
		deltas[c.Funding] += int64(toFunding)
	}
	charged.Transfers = NetTransfers(deltas)
	return charged, nil
}

// Refund returns part of an earlier charge to its payer. Each component is
// capped at what was charged; the node share is taken back from nodeAccount
// and the rest from the funding account.
func (c Charger) Refund(m *state.Manager, charged Charged, nodeAccount types.AccountID, refund Fees) (Charged, error) {
	capped := Fees{
		Node:    min(refund.Node, charged.Node),
		Network: min(refund.Network, charged.Network),
		Service: min(refund.Service, charged.Service),
	}
	if capped.IsZero() {
		return charged, nil
	}
	if capped.Node > 0 {
		if err := m.Debit(nodeAccount, capped.Node); err != nil {
			return charged, fmt.Errorf("fees: refund from node account %s: %w", nodeAccount, err)
		}
	}
	if fromFunding := capped.Network + capped.Service; fromFunding > 0 {
		if err := m.Debit(c.Funding, fromFunding); err != nil {
			return charged, fmt.Errorf("fees: refund from funding account %s: %w", c.Funding, err)
		}
	}
	if err := m.Credit(charged.Payer, capped.TotalFee()); err != nil {
		return charged, fmt.Errorf("fees: refund payer %s: %w", charged.Payer, err)
	}
	out := Charged{
		Payer:   charged.Payer,
		Node:    charged.Node - capped.Node,
		Network: charged.Network - capped.Network,
		Service: charged.Service - capped.Service,
	}
	deltas := map[types.AccountID]int64{out.Payer: -int64(out.Total())}
	deltas[nodeAccount] += int64(out.Node)
	deltas[c.Funding] += int64(out.Network + out.Service)
	out.Transfers = NetTransfers(deltas)
	return out, nil
}

// NetTransfers renders non-zero deltas as a transfer list sorted by account.
func NetTransfers(deltas map[types.AccountID]int64) []types.AccountAmount {
	out := make([]types.AccountAmount, 0, len(deltas))
	for account, amount := range deltas {
		if amount != 0 {
			out = append(out, types.AccountAmount{Account: account, Amount: amount})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}
