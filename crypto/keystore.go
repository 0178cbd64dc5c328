package crypto

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/google/uuid"
)

// ErrKeystorePassphrase is returned when an account keystore is configured
// without a passphrase to decrypt it.
var ErrKeystorePassphrase = errors.New("crypto: keystore passphrase required")

// WriteKeystore encrypts key into a v3 keystore file at path. Light scrypt
// parameters are used since these files only back replay fixtures.
func WriteKeystore(path string, key *PrivateKey, passphrase string) error {
	if key == nil {
		return errors.New("crypto: nil private key")
	}
	if passphrase == "" {
		return ErrKeystorePassphrase
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	encrypted, err := keystore.EncryptKey(&keystore.Key{
		Id:         uuid.New(),
		Address:    key.PubKey().Address(),
		PrivateKey: key.PrivateKey,
	}, passphrase, keystore.LightScryptN, keystore.LightScryptP)
	if err != nil {
		return fmt.Errorf("crypto: encrypt keystore: %w", err)
	}
	return os.WriteFile(path, encrypted, 0o600)
}

// ReadKeystore decrypts the v3 keystore file at path.
func ReadKeystore(path, passphrase string) (*PrivateKey, error) {
	if passphrase == "" {
		return nil, ErrKeystorePassphrase
	}
	encrypted, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decrypted, err := keystore.DecryptKey(encrypted, passphrase)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypt %s: %w", filepath.Base(path), err)
	}
	return &PrivateKey{PrivateKey: decrypted.PrivateKey}, nil
}
