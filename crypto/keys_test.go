package crypto

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	msg := []byte("body bytes")
	sig, err := key.Sign(msg)
	require.NoError(t, err)
	require.Len(t, sig, SignatureLength)

	pub := key.PubKey().Key()
	require.Len(t, pub, CompressedKeyLength)
	require.True(t, Verify(pub, msg, sig))
	require.False(t, Verify(pub, []byte("other body"), sig))

	other, err := GeneratePrivateKey()
	require.NoError(t, err)
	require.False(t, Verify(other.PubKey().Key(), msg, sig))
}

func TestDeriveAddressMatchesPublicKey(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	addr, ok := DeriveAddress(key.PubKey().Key())
	require.True(t, ok)
	require.Equal(t, key.PubKey().Address(), addr)

	_, ok = DeriveAddress([]byte{0x01, 0x02})
	require.False(t, ok)
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "keys", "1001.json")
	require.NoError(t, WriteKeystore(path, key, "secret"))

	loaded, err := ReadKeystore(path, "secret")
	require.NoError(t, err)
	require.Equal(t, key.Bytes(), loaded.Bytes())

	_, err = ReadKeystore(path, "wrong")
	require.Error(t, err)
	_, err = ReadKeystore(path, "")
	require.ErrorIs(t, err, ErrKeystorePassphrase)
	require.ErrorIs(t, WriteKeystore(path, key, ""), ErrKeystorePassphrase)
}
