package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "advising-portal"
	keyringUser    = "db-dsn"
)

var (
	// ErrDSNNotFound is returned when no DSN is stored in the keyring.
	ErrDSNNotFound = errors.New("dsn not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring cannot be reached.
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// GetDSN reads the database DSN stored by SetDSN.
func GetDSN() (string, error) {
	dsn, err := keyring.Get(keyringService, keyringUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrDSNNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return dsn, nil
}

func SetDSN(dsn string) error {
	if dsn == "" {
		return errors.New("dsn cannot be empty")
	}
	if err := keyring.Set(keyringService, keyringUser, dsn); err != nil {
		return fmt.Errorf("store dsn in keyring: %w", err)
	}
	return nil
}

func DeleteDSN() error {
	if err := keyring.Delete(keyringService, keyringUser); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrDSNNotFound
		}
		return fmt.Errorf("delete dsn from keyring: %w", err)
	}
	return nil
}
