package database

import (
	"fmt"

	"github.com/tablekit/partgen/pkg/keyring"
)

const (
	// Keyring service name for database credentials
	DatabaseKeyringService = "partgen-database"
)

func newKeyringManager() *keyring.KeyringManager {
	return keyring.NewKeyringManager(keyring.GetDefaultKeyringPath(), keyring.GetMasterPasswordFromEnv())
}

// GetStoredPassword retrieves the stored database password for a user
// from the keyring.
func GetStoredPassword(user string) (string, error) {
	if user == "" {
		return "", fmt.Errorf("database user is required to look up a stored password")
	}
	km := newKeyringManager()
	password, err := km.Get(DatabaseKeyringService, user)
	if err != nil {
		return "", fmt.Errorf("database password for %q not found in keyring: %w", user, err)
	}
	return password, nil
}

// StorePassword saves a database password for a user in the keyring so
// later runs can connect without prompting.
func StorePassword(user, password string) error {
	if user == "" {
		return fmt.Errorf("database user is required to store a password")
	}
	km := newKeyringManager()
	if err := km.Set(DatabaseKeyringService, user, password); err != nil {
		return fmt.Errorf("failed to store database password: %w", err)
	}
	return nil
}

// ForgetPassword removes a stored database password for a user.
func ForgetPassword(user string) error {
	if user == "" {
		return fmt.Errorf("database user is required to remove a stored password")
	}
	km := newKeyringManager()
	return km.Delete(DatabaseKeyringService, user)
}
