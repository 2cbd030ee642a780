package upgrade

import (
	"context"
	"errors"
	"fmt"

	"github.com/rogaldh/token-upgrade/pkg/ledger"
	"github.com/rogaldh/token-upgrade/pkg/pda"
	"github.com/rogaldh/token-upgrade/pkg/token"
	"github.com/rogaldh/token-upgrade/pkg/types"
)

// Provision creates the escrow token account for a mint pair and, when
// amount is positive, mints that amount of new tokens into it. The funding
// authority must be the new mint's mint authority when funding is requested.
//
// Re-running against an existing valid escrow returns the escrow address
// together with ErrAlreadyProvisioned and changes nothing; use Fund to top
// up. An account already occupying the escrow address with the wrong mint
// or owner is a hard failure.
func (e *Engine) Provision(ctx context.Context, oldMint, newMint, fundingAuthority types.Pubkey, amount uint64) (types.Pubkey, error) {
	if err := ctx.Err(); err != nil {
		return types.ZeroPubkey, err
	}
	if oldMint == newMint {
		return types.ZeroPubkey, fmt.Errorf("%w: old and new mint are both %s", ErrInvalidMintPair, oldMint)
	}

	authority, err := DeriveEscrowAuthority(oldMint, newMint, e.programID)
	if err != nil {
		return types.ZeroPubkey, err
	}

	var escrowAddr types.Pubkey
	err = e.ledger.Run(func(t *ledger.Txn) error {
		if _, err := t.Mint(oldMint); err != nil {
			return fmt.Errorf("%w: old mint %s: %v", ErrInvalidMintPair, oldMint, err)
		}
		if _, err := t.Mint(newMint); err != nil {
			return fmt.Errorf("%w: new mint %s: %v", ErrInvalidMintPair, newMint, err)
		}
		newMintAccount, err := t.GetAccount(newMint)
		if err != nil {
			return err
		}

		addr, _, ok := pda.DeriveAssociatedTokenAddress(authority.Address, newMint, newMintAccount.Owner)
		if !ok {
			return fmt.Errorf("%w: escrow account for pair (%s, %s)", ErrNotDerivable, oldMint, newMint)
		}
		escrowAddr = addr

		existing, err := t.GetAccount(addr)
		if err != nil {
			return err
		}
		if existing != nil {
			state, err := token.DeserializeTokenAccount(existing.Data)
			if err != nil || state.Mint != newMint || state.Owner != authority.Address {
				return fmt.Errorf("escrow address %s holds a foreign account: %w", addr, ledger.ErrAccountExists)
			}
			return fmt.Errorf("%w: pair (%s, %s)", ErrAlreadyProvisioned, oldMint, newMint)
		}

		if err := t.CreateTokenAccount(addr, newMint, authority.Address); err != nil {
			return err
		}
		if amount > 0 {
			if err := t.MintTo(newMint, addr, ledger.SignedBy(fundingAuthority), amount); err != nil {
				return mapLedgerErr(err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyProvisioned) {
			return escrowAddr, err
		}
		return types.ZeroPubkey, err
	}

	e.metrics.RecordProvision()
	return escrowAddr, nil
}

// Fund mints amount new tokens into an existing escrow. The funding
// authority must be the new mint's mint authority. Returns the escrow
// address.
func (e *Engine) Fund(ctx context.Context, oldMint, newMint, fundingAuthority types.Pubkey, amount uint64) (types.Pubkey, error) {
	if err := ctx.Err(); err != nil {
		return types.ZeroPubkey, err
	}

	authority, err := DeriveEscrowAuthority(oldMint, newMint, e.programID)
	if err != nil {
		return types.ZeroPubkey, err
	}

	var escrowAddr types.Pubkey
	err = e.ledger.Run(func(t *ledger.Txn) error {
		newMintAccount, err := t.GetAccount(newMint)
		if err != nil {
			return err
		}
		if newMintAccount == nil {
			return fmt.Errorf("%w: new mint %s does not exist", ErrInvalidMintPair, newMint)
		}

		addr, _, ok := pda.DeriveAssociatedTokenAddress(authority.Address, newMint, newMintAccount.Owner)
		if !ok {
			return fmt.Errorf("%w: escrow account for pair (%s, %s)", ErrNotDerivable, oldMint, newMint)
		}
		escrowAddr = addr

		state, err := t.TokenAccount(addr)
		if err != nil || state.Mint != newMint || state.Owner != authority.Address {
			return fmt.Errorf("%w: pair (%s, %s)", ErrEscrowNotFound, oldMint, newMint)
		}

		return mapLedgerErr(t.MintTo(newMint, addr, ledger.SignedBy(fundingAuthority), amount))
	})
	if err != nil {
		return types.ZeroPubkey, err
	}
	return escrowAddr, nil
}
