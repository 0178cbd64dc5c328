package fees

import (
	"fmt"

	"github.com/holiman/uint256"

	"ledgernode/config"
	"ledgernode/core/types"
)

// Calculator prices transactions from the configured fee schedule and
// exchange rate.
type Calculator struct{}

// Compute converts the schedule entry for fn from tinycents into tinybars and
// applies the congestion multiplier. A zero multiplier is treated as one.
func (Calculator) Compute(g config.Global, fn types.Functionality, multiplier uint64) (Fees, error) {
	entry, ok := g.FeeScheduleFor(fn)
	if !ok {
		return Fees{}, fmt.Errorf("fees: no schedule for %s", fn)
	}
	rate := g.Fees.ExchangeRate
	if rate.CentEquiv == 0 {
		return Fees{}, fmt.Errorf("fees: exchange rate has zero cent equivalent")
	}
	if multiplier == 0 {
		multiplier = 1
	}
	node, err := convert(entry.Node, rate, multiplier)
	if err != nil {
		return Fees{}, err
	}
	network, err := convert(entry.Network, rate, multiplier)
	if err != nil {
		return Fees{}, err
	}
	service, err := convert(entry.Service, rate, multiplier)
	if err != nil {
		return Fees{}, err
	}
	return Fees{Node: node, Network: network, Service: service}, nil
}

func convert(tinycents uint64, rate config.ExchangeRate, multiplier uint64) (uint64, error) {
	value, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(tinycents), uint256.NewInt(rate.HbarEquiv))
	if overflow {
		return 0, ErrFeeOverflow
	}
	value.Div(value, uint256.NewInt(rate.CentEquiv))
	if _, overflow = value.MulOverflow(value, uint256.NewInt(multiplier)); overflow {
		return 0, ErrFeeOverflow
	}
	if !value.IsUint64() {
		return 0, ErrFeeOverflow
	}
	return value.Uint64(), nil
}
