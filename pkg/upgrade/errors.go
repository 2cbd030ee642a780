package upgrade

import "errors"

// Protocol errors. Provisioning and exchange failures surface as one of
// these conditions; lower-level ledger faults pass through unchanged.
var (
	// ErrInvalidMintPair indicates the old and new mints cannot form a
	// migration pair: they are the same mint, one of them does not exist,
	// or a presented account belongs to a different mint.
	ErrInvalidMintPair = errors.New("invalid mint pair")

	// ErrAuthorityMismatch indicates the caller lacks the required signing
	// right for the operation.
	ErrAuthorityMismatch = errors.New("authority mismatch")

	// ErrEscrowNotFound indicates the escrow account does not exist or is
	// not owned by the derived escrow authority. The two conditions are
	// deliberately indistinguishable.
	ErrEscrowNotFound = errors.New("escrow not found")

	// ErrEscrowExhausted indicates the escrow balance cannot cover the
	// requested amount.
	ErrEscrowExhausted = errors.New("escrow exhausted")

	// ErrInsufficientBalance indicates the holder's old-token balance or
	// delegation cannot cover the requested amount.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAmountNotScalable indicates the amount does not convert to an
	// integral number of new-token base units.
	ErrAmountNotScalable = errors.New("amount not scalable")

	// ErrInvalidDestination indicates the release destination aliases the
	// escrow account itself, which would burn without releasing.
	ErrInvalidDestination = errors.New("invalid destination")

	// ErrAlreadyProvisioned indicates the escrow for this mint pair already
	// exists. Informational: re-running provisioning is safe.
	ErrAlreadyProvisioned = errors.New("already provisioned")

	// ErrNotDerivable indicates no valid escrow authority could be derived
	// for the mint pair.
	ErrNotDerivable = errors.New("escrow authority not derivable")
)
