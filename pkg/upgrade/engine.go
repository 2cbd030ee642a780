package upgrade

import (
	"errors"
	"fmt"

	"github.com/rogaldh/token-upgrade/pkg/ledger"
	"github.com/rogaldh/token-upgrade/pkg/metrics"
	"github.com/rogaldh/token-upgrade/pkg/token"
	"github.com/rogaldh/token-upgrade/pkg/types"
)

// Engine drives the migration protocol against a token ledger. All engine
// operations are safe for concurrent use; the ledger serializes them.
type Engine struct {
	ledger    *ledger.Ledger
	programID types.Pubkey
	metrics   *metrics.Collector

	// beforeRelease runs between the burn and the escrow release inside
	// an exchange transaction. Tests set it to inject failures.
	beforeRelease func() error
}

// Option configures an Engine.
type Option func(*Engine)

// WithProgramID overrides the program ID used for escrow derivation.
func WithProgramID(id types.Pubkey) Option {
	return func(e *Engine) { e.programID = id }
}

// WithMetrics attaches a metrics collector to the engine.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// NewEngine creates an engine over the given ledger.
func NewEngine(l *ledger.Ledger, opts ...Option) *Engine {
	e := &Engine{
		ledger:    l,
		programID: types.TokenUpgradeProgramID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProgramID returns the program ID the engine derives escrow authorities
// under.
func (e *Engine) ProgramID() types.Pubkey {
	return e.programID
}

// Ledger returns the ledger the engine runs against.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.ledger
}

// EscrowAuthority derives the escrow authority for a mint pair under the
// engine's program ID.
func (e *Engine) EscrowAuthority(oldMint, newMint types.Pubkey) (EscrowAuthority, error) {
	return DeriveEscrowAuthority(oldMint, newMint, e.programID)
}

// EscrowAddress derives the default escrow token account for a mint pair.
// The new mint must exist; its token program selects the associated-token
// derivation.
func (e *Engine) EscrowAddress(oldMint, newMint types.Pubkey) (types.Pubkey, error) {
	account, err := e.mintAccount(newMint)
	if err != nil {
		return types.ZeroPubkey, err
	}
	return DeriveEscrowAddress(oldMint, newMint, e.programID, account.Owner)
}

// mintAccount reads the raw account backing a mint.
func (e *Engine) mintAccount(mint types.Pubkey) (*types.Account, error) {
	var account *types.Account
	err := e.ledger.Run(func(t *ledger.Txn) error {
		if _, err := t.Mint(mint); err != nil {
			return fmt.Errorf("%w: mint %s: %v", ErrInvalidMintPair, mint, err)
		}
		var getErr error
		account, getErr = t.GetAccount(mint)
		return getErr
	})
	return account, err
}

// mapLedgerErr folds ledger failures into the protocol error taxonomy.
func mapLedgerErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, token.ErrOwnerMismatch),
		errors.Is(err, token.ErrAuthorityMismatch),
		errors.Is(err, token.ErrMissingSigners),
		errors.Is(err, ledger.ErrMissingSignature),
		errors.Is(err, ledger.ErrInvalidProgramSignature):
		return fmt.Errorf("%w: %v", ErrAuthorityMismatch, err)
	case errors.Is(err, token.ErrInsufficientFunds):
		return fmt.Errorf("%w: %v", ErrInsufficientBalance, err)
	case errors.Is(err, token.ErrMintMismatch):
		return fmt.Errorf("%w: %v", ErrInvalidMintPair, err)
	}
	return err
}

// failureReason labels a protocol error for metrics.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidMintPair):
		return "invalid_mint_pair"
	case errors.Is(err, ErrAuthorityMismatch):
		return "authority_mismatch"
	case errors.Is(err, ErrEscrowNotFound):
		return "escrow_not_found"
	case errors.Is(err, ErrEscrowExhausted):
		return "escrow_exhausted"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrAmountNotScalable):
		return "amount_not_scalable"
	case errors.Is(err, ErrInvalidDestination):
		return "invalid_destination"
	}
	return "other"
}
