package vault

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below.
var (
	ErrDuplicateVault = errors.New("vault already exists")
	ErrVaultNotFound  = errors.New("vault not found")
	ErrSourceMissing  = errors.New("vault source missing")
	ErrInvalidVault   = errors.New("invalid vault")
)

// DuplicateVaultError is returned when registering a name that is taken.
type DuplicateVaultError struct {
	Name string
}

func (e *DuplicateVaultError) Error() string {
	return fmt.Sprintf("vault %q already exists", e.Name)
}

// Is matches ErrDuplicateVault.
func (e *DuplicateVaultError) Is(target error) bool { return target == ErrDuplicateVault }

// VaultNotFoundError is returned for operations on an unknown name.
//
//nolint:revive // the type mirrors the user facing error name
type VaultNotFoundError struct {
	Name string
}

func (e *VaultNotFoundError) Error() string {
	return fmt.Sprintf("vault %q not found", e.Name)
}

// Is matches ErrVaultNotFound.
func (e *VaultNotFoundError) Is(target error) bool { return target == ErrVaultNotFound }

// SourceMissingError reports a local vault whose path or content subpath
// does not exist.
type SourceMissingError struct {
	Vault string
	Path  string
}

func (e *SourceMissingError) Error() string {
	return fmt.Sprintf("vault %q: source %s does not exist", e.Vault, e.Path)
}

// Is matches ErrSourceMissing.
func (e *SourceMissingError) Is(target error) bool { return target == ErrSourceMissing }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidVault, fmt.Sprintf(format, args...))
}
