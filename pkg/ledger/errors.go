package ledger

import "errors"

// Ledger errors
var (
	// ErrAccountNotFound indicates the referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists indicates the account address is already in use.
	ErrAccountExists = errors.New("account already exists")

	// ErrUnknownTokenProgram indicates the program ID is not a token program.
	ErrUnknownTokenProgram = errors.New("unknown token program")

	// ErrMissingSignature indicates the required authority did not sign.
	ErrMissingSignature = errors.New("missing signature")

	// ErrInvalidProgramSignature indicates a program signature does not
	// re-derive to the claimed authority.
	ErrInvalidProgramSignature = errors.New("invalid program signature")
)
