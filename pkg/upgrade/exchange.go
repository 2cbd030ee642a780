package upgrade

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/rogaldh/token-upgrade/pkg/ledger"
	"github.com/rogaldh/token-upgrade/pkg/types"
)

// ExchangeRequest carries everything an exchange needs. Amount is in old
// mint base units.
type ExchangeRequest struct {
	OldAccount  types.Pubkey   // holder's old-mint token account
	OldMint     types.Pubkey   // mint being retired
	Escrow      types.Pubkey   // escrow token account holding new tokens
	Destination types.Pubkey   // holder's new-mint token account
	NewMint     types.Pubkey   // successor mint
	Authority   types.Pubkey   // owner or approved delegate of OldAccount
	Signers     []types.Pubkey // transaction signer set; defaults to Authority
	Amount      uint64
}

// Receipt records a completed exchange. The burn itself is the system of
// record; the receipt is a convenience handle for callers.
type Receipt struct {
	ID          types.Hash
	OldMint     types.Pubkey
	NewMint     types.Pubkey
	Escrow      types.Pubkey
	Source      types.Pubkey
	Destination types.Pubkey
	Burned      uint64
	Released    uint64
}

// newReceipt builds a receipt with its deterministic ID.
func newReceipt(req ExchangeRequest, source types.Pubkey, burned, released uint64) *Receipt {
	var burnedBytes, releasedBytes [8]byte
	binary.LittleEndian.PutUint64(burnedBytes[:], burned)
	binary.LittleEndian.PutUint64(releasedBytes[:], released)
	return &Receipt{
		ID: types.SHA256Multi(
			req.OldMint[:], req.NewMint[:], req.Escrow[:],
			source[:], req.Destination[:],
			burnedBytes[:], releasedBytes[:],
		),
		OldMint:     req.OldMint,
		NewMint:     req.NewMint,
		Escrow:      req.Escrow,
		Source:      source,
		Destination: req.Destination,
		Burned:      burned,
		Released:    released,
	}
}

// Exchange burns Amount old tokens from the holder's account and releases
// the scaled equivalent of new tokens from escrow to the destination. Both
// effects commit in one ledger transaction or not at all.
func (e *Engine) Exchange(ctx context.Context, req ExchangeRequest) (*Receipt, error) {
	receipt, err := e.exchange(ctx, req)
	if err != nil {
		e.metrics.RecordFailure(failureReason(err))
		return nil, err
	}
	return receipt, nil
}

func (e *Engine) exchange(ctx context.Context, req ExchangeRequest) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.OldMint == req.NewMint {
		return nil, fmt.Errorf("%w: old and new mint are both %s", ErrInvalidMintPair, req.OldMint)
	}
	if req.Destination == req.Escrow {
		return nil, fmt.Errorf("%w: destination %s is the escrow account", ErrInvalidDestination, req.Destination)
	}

	authority, err := DeriveEscrowAuthority(req.OldMint, req.NewMint, e.programID)
	if err != nil {
		return nil, err
	}
	holderAuth := ledger.SignedBy(req.Authority, req.Signers...)
	programAuth := ledger.SignedByProgram(
		authority.Address,
		authority.SignerSeeds(req.OldMint, req.NewMint),
		e.programID,
	)

	var (
		receipt         *Receipt
		escrowRemaining uint64
	)
	err = e.ledger.Run(func(t *ledger.Txn) error {
		// Holder authority and balance.
		available, err := t.VerifyOwnerOrDelegate(req.OldAccount, holderAuth)
		if err != nil {
			return mapLedgerErr(err)
		}
		if req.Amount > available {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, available, req.Amount)
		}

		// Escrow authenticity: a new-mint account owned by the derived
		// authority. Missing and wrong-owner are indistinguishable.
		escrowState, err := t.TokenAccount(req.Escrow)
		if err != nil {
			return fmt.Errorf("%w: pair (%s, %s)", ErrEscrowNotFound, req.OldMint, req.NewMint)
		}
		if escrowState.Owner != authority.Address || escrowState.Mint != req.NewMint {
			return fmt.Errorf("%w: pair (%s, %s)", ErrEscrowNotFound, req.OldMint, req.NewMint)
		}

		// Mint pairing.
		oldState, err := t.TokenAccount(req.OldAccount)
		if err != nil {
			return err
		}
		if oldState.Mint != req.OldMint {
			return fmt.Errorf("%w: source holds %s, expected %s", ErrInvalidMintPair, oldState.Mint, req.OldMint)
		}
		destState, err := t.TokenAccount(req.Destination)
		if err != nil {
			return fmt.Errorf("%w: destination %s: %v", ErrInvalidMintPair, req.Destination, err)
		}
		if destState.Mint != req.NewMint {
			return fmt.Errorf("%w: destination holds %s, expected %s", ErrInvalidMintPair, destState.Mint, req.NewMint)
		}

		// Decimal scaling.
		oldMintState, err := t.Mint(req.OldMint)
		if err != nil {
			return fmt.Errorf("%w: old mint %s: %v", ErrInvalidMintPair, req.OldMint, err)
		}
		newMintState, err := t.Mint(req.NewMint)
		if err != nil {
			return fmt.Errorf("%w: new mint %s: %v", ErrInvalidMintPair, req.NewMint, err)
		}
		release, err := scaleAmount(req.Amount, oldMintState.Decimals, newMintState.Decimals)
		if err != nil {
			return err
		}

		// Sufficiency. No partial fill.
		if escrowState.Amount < release {
			return fmt.Errorf("%w: escrow holds %d, release needs %d", ErrEscrowExhausted, escrowState.Amount, release)
		}

		// Burn old, release new. Staged together, committed together.
		if err := t.Burn(req.OldAccount, req.OldMint, holderAuth, req.Amount); err != nil {
			return mapLedgerErr(err)
		}
		if e.beforeRelease != nil {
			if err := e.beforeRelease(); err != nil {
				return err
			}
		}
		if err := t.Transfer(req.Escrow, req.Destination, programAuth, release); err != nil {
			return mapLedgerErr(err)
		}

		receipt = newReceipt(req, req.OldAccount, req.Amount, release)
		escrowRemaining = escrowState.Amount - release
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.RecordExchange(receipt.Burned, receipt.Released, escrowRemaining)
	return receipt, nil
}

// ExchangeViaIntermediary routes the exchange through a throwaway account:
// the old balance moves there first, the exchange burns from it, and the
// emptied account is closed back into the holder's account. The direct
// Exchange path is the default; this mode exists for callers that cannot
// expose their holding account to the burn.
func (e *Engine) ExchangeViaIntermediary(ctx context.Context, req ExchangeRequest) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	intermediary := intermediaryAddress(req)
	holderAuth := ledger.SignedBy(req.Authority, req.Signers...)

	err := e.ledger.Run(func(t *ledger.Txn) error {
		if err := t.CreateTokenAccount(intermediary, req.OldMint, req.Authority); err != nil {
			return err
		}
		return mapLedgerErr(t.Transfer(req.OldAccount, intermediary, holderAuth, req.Amount))
	})
	if err != nil {
		e.metrics.RecordFailure(failureReason(err))
		return nil, err
	}

	forwarded := req
	forwarded.OldAccount = intermediary
	receipt, exchangeErr := e.Exchange(ctx, forwarded)
	if exchangeErr != nil {
		// Unwind: the moved balance goes back and the throwaway account
		// is dropped. The unwind uses the holder's own signature, so it
		// cannot fail the authority checks that just passed.
		unwindErr := e.ledger.Run(func(t *ledger.Txn) error {
			if err := t.Transfer(intermediary, req.OldAccount, holderAuth, req.Amount); err != nil {
				return err
			}
			return t.CloseAccount(intermediary, req.OldAccount, holderAuth)
		})
		if unwindErr != nil {
			return nil, fmt.Errorf("exchange failed (%v) and unwind failed: %w", exchangeErr, unwindErr)
		}
		return nil, exchangeErr
	}

	err = e.ledger.Run(func(t *ledger.Txn) error {
		return t.CloseAccount(intermediary, req.OldAccount, holderAuth)
	})
	if err != nil {
		return receipt, fmt.Errorf("exchange committed but intermediary not closed: %w", err)
	}
	return receipt, nil
}

// intermediaryAddress derives a deterministic throwaway address for the
// compatibility path.
func intermediaryAddress(req ExchangeRequest) types.Pubkey {
	return types.Pubkey(types.SHA256Multi(
		[]byte("token-upgrade-intermediary"),
		req.OldAccount[:], req.Escrow[:], req.Authority[:],
	))
}

// scaleAmount converts an old-mint amount to new-mint base units. Scaling
// down requires the amount to divide evenly; nothing is ever truncated.
func scaleAmount(amount uint64, oldDecimals, newDecimals uint8) (uint64, error) {
	switch {
	case newDecimals == oldDecimals:
		return amount, nil

	case newDecimals > oldDecimals:
		if amount == 0 {
			return 0, nil
		}
		factor, ok := pow10(uint(newDecimals - oldDecimals))
		if !ok || amount > ^uint64(0)/factor {
			return 0, fmt.Errorf("%w: %d scaled by 10^%d overflows",
				ErrAmountNotScalable, amount, newDecimals-oldDecimals)
		}
		return amount * factor, nil

	default:
		factor, ok := pow10(uint(oldDecimals - newDecimals))
		if !ok {
			factor = 0
		}
		if factor == 0 || amount%factor != 0 {
			return 0, fmt.Errorf("%w: %d is not a multiple of 10^%d",
				ErrAmountNotScalable, amount, oldDecimals-newDecimals)
		}
		return amount / factor, nil
	}
}

// pow10 returns 10^n, rejecting exponents that overflow uint64.
func pow10(n uint) (uint64, bool) {
	if n > 19 {
		return 0, false
	}
	f := uint64(1)
	for i := uint(0); i < n; i++ {
		f *= 10
	}
	return f, true
}
