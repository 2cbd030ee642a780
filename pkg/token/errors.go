// Package token implements the fungible-token account state used by the
// token-upgrade ledger.
package token

import "errors"

// Token state errors
var (
	// ErrInsufficientFunds indicates insufficient token balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidMint indicates the mint account is invalid.
	ErrInvalidMint = errors.New("invalid mint")

	// ErrMintMismatch indicates a token account's mint doesn't match the expected mint.
	ErrMintMismatch = errors.New("mint mismatch")

	// ErrOwnerMismatch indicates the owner doesn't match.
	ErrOwnerMismatch = errors.New("owner mismatch")

	// ErrAccountFrozen indicates the token account is frozen.
	ErrAccountFrozen = errors.New("account is frozen")

	// ErrAlreadyInitialized indicates the account is already initialized.
	ErrAlreadyInitialized = errors.New("already initialized")

	// ErrNotInitialized indicates the account is not initialized.
	ErrNotInitialized = errors.New("not initialized")

	// ErrInvalidAccountData indicates the account data is malformed.
	ErrInvalidAccountData = errors.New("invalid account data")

	// ErrInvalidAccountOwner indicates the account is not owned by a token program.
	ErrInvalidAccountOwner = errors.New("invalid account owner")

	// ErrDelegateNotFound indicates no delegate is set.
	ErrDelegateNotFound = errors.New("delegate not found")

	// ErrNoAuthority indicates no authority is set for the operation.
	ErrNoAuthority = errors.New("no authority")

	// ErrAuthorityMismatch indicates the authority doesn't match.
	ErrAuthorityMismatch = errors.New("authority mismatch")

	// ErrFixedSupply indicates the mint has a fixed supply (no mint authority).
	ErrFixedSupply = errors.New("fixed supply")

	// ErrAccountHasBalance indicates the account still has a balance.
	ErrAccountHasBalance = errors.New("account has balance")

	// ErrInvalidMultisig indicates the multisig configuration is invalid.
	ErrInvalidMultisig = errors.New("invalid multisig")

	// ErrMissingSigners indicates not enough multisig signers were provided.
	ErrMissingSigners = errors.New("missing required signers")

	// ErrOverflow indicates an arithmetic overflow.
	ErrOverflow = errors.New("overflow")
)
