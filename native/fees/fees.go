package fees

import (
	"errors"
	"math"
)

// ErrFeeOverflow is returned when a fee does not fit in 64 bits.
var ErrFeeOverflow = errors.New("fees: overflow")

// Fees are the three tinybar components charged for a transaction.
type Fees struct {
	Node    uint64 `json:"nodeFee"`
	Network uint64 `json:"networkFee"`
	Service uint64 `json:"serviceFee"`
}

// TotalFee returns the sum of all components, saturating at MaxUint64.
func (f Fees) TotalFee() uint64 {
	total := f.Node
	for _, part := range []uint64{f.Network, f.Service} {
		if total > math.MaxUint64-part {
			return math.MaxUint64
		}
		total += part
	}
	return total
}

// WithoutServiceFee drops the service component.
func (f Fees) WithoutServiceFee() Fees {
	return Fees{Node: f.Node, Network: f.Network}
}

// WithoutNodeFee drops the node component.
func (f Fees) WithoutNodeFee() Fees {
	return Fees{Network: f.Network, Service: f.Service}
}

// OnlyNetworkFee keeps only the network component.
func (f Fees) OnlyNetworkFee() Fees {
	return Fees{Network: f.Network}
}

// IsZero reports whether nothing is charged.
func (f Fees) IsZero() bool {
	return f.Node == 0 && f.Network == 0 && f.Service == 0
}
