// Package accounts provides account storage for the token-upgrade ledger.
package accounts

import (
	"github.com/rogaldh/token-upgrade/pkg/types"
)

// AccountsDB defines the interface for account storage.
type AccountsDB interface {
	// GetAccount retrieves an account by pubkey.
	// Returns nil, nil if account does not exist.
	GetAccount(pubkey types.Pubkey) (*types.Account, error)

	// SetAccount stores an account.
	SetAccount(pubkey types.Pubkey, account *types.Account) error

	// DeleteAccount removes an account.
	DeleteAccount(pubkey types.Pubkey) error

	// HasAccount returns true if the account exists.
	HasAccount(pubkey types.Pubkey) bool

	// GetAccountsCount returns the total number of accounts.
	GetAccountsCount() uint64

	// Iterate calls fn for every stored account until fn returns false.
	Iterate(fn func(pubkey types.Pubkey, account *types.Account) bool) error

	// Close closes the database.
	Close() error
}
