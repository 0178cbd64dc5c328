package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTransactionIDRoundTrip(t *testing.T) {
	id := NewTransactionID(1001, time.Unix(1_700_000_000, 42))
	parsed, err := ParseTransactionID(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	id.Nonce = 3
	parsed, err = ParseTransactionID(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	parsed, err = ParseTransactionID("1002@17")
	require.NoError(t, err)
	require.Equal(t, TransactionID{Payer: 1002, ValidStartSeconds: 17}, parsed)
}

func TestParseTransactionIDRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "0.0.1001", "x@1.0", "0.0.1@1.9999999999", "0.0.1@1.0/x"} {
		_, err := ParseTransactionID(raw)
		require.Error(t, err, raw)
	}
}

func TestFunctionalityOfBody(t *testing.T) {
	require.Equal(t, FunctionalityNone, (*TransactionBody)(nil).Functionality())
	require.Equal(t, FunctionalityNone, (&TransactionBody{}).Functionality())
	body := &TransactionBody{CryptoTransfer: &CryptoTransferBody{}}
	require.Equal(t, FunctionalityCryptoTransfer, body.Functionality())
	body.Freeze = &FreezeBody{}
	require.Equal(t, FunctionalityNone, body.Functionality())
}

func TestUnixNanosKeepsZeroTime(t *testing.T) {
	require.Zero(t, UnixNanos(time.Time{}))
	require.True(t, FromUnixNanos(0).IsZero())

	at := time.Date(2024, 3, 1, 12, 0, 5, 17, time.FixedZone("X", 3600))
	back := FromUnixNanos(UnixNanos(at))
	require.True(t, at.Equal(back))
	require.Equal(t, time.UTC, back.Location())
}
