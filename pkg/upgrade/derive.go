// Package upgrade implements the token-migration escrow protocol: escrow
// authority derivation, escrow provisioning, and the atomic burn-old /
// release-new exchange.
package upgrade

import (
	"fmt"

	"github.com/rogaldh/token-upgrade/pkg/pda"
	"github.com/rogaldh/token-upgrade/pkg/types"
)

// EscrowAuthoritySeed is the domain-separation tag for escrow authority
// derivation. Derivations for different mint pairs can never collide
// because both mint ids are folded into the hash after this tag.
const EscrowAuthoritySeed = "token-escrow-authority"

// EscrowAuthority is the derived authority for one (old mint, new mint)
// pair. The address never corresponds to a private key; the recorded bump
// seed lets program logic reproduce the derivation as its signing proof.
type EscrowAuthority struct {
	Address types.Pubkey
	Bump    uint8
}

// DeriveEscrowAuthority computes the canonical escrow authority for a mint
// pair under the given program. The function is pure: any party derives the
// same authority with no communication or storage access.
//
// Fails closed with ErrNotDerivable in the astronomically unlikely case
// that no off-curve address exists for any bump seed.
func DeriveEscrowAuthority(oldMint, newMint, programID types.Pubkey) (EscrowAuthority, error) {
	seeds := [][]byte{
		[]byte(EscrowAuthoritySeed),
		oldMint[:],
		newMint[:],
	}
	addr, bump, ok := pda.FindProgramAddress(seeds, programID)
	if !ok {
		return EscrowAuthority{}, fmt.Errorf("%w: pair (%s, %s)", ErrNotDerivable, oldMint, newMint)
	}
	return EscrowAuthority{Address: addr, Bump: bump}, nil
}

// SignerSeeds returns the full seed set, bump included, that re-derives the
// authority. This is the proof handed to the ledger when the program signs
// a release from escrow.
func (ea EscrowAuthority) SignerSeeds(oldMint, newMint types.Pubkey) [][]byte {
	return [][]byte{
		[]byte(EscrowAuthoritySeed),
		oldMint[:],
		newMint[:],
		{ea.Bump},
	}
}

// DeriveEscrowAddress computes the default escrow token account address for
// a mint pair: the associated token account of the escrow authority for the
// new mint. Provisioning creates the account here; exchange accepts any
// new-mint account owned by the authority, so the address is a convention,
// not a security boundary.
func DeriveEscrowAddress(oldMint, newMint, programID, tokenProgram types.Pubkey) (types.Pubkey, error) {
	authority, err := DeriveEscrowAuthority(oldMint, newMint, programID)
	if err != nil {
		return types.ZeroPubkey, err
	}
	addr, _, ok := pda.DeriveAssociatedTokenAddress(authority.Address, newMint, tokenProgram)
	if !ok {
		return types.ZeroPubkey, fmt.Errorf("%w: escrow account for pair (%s, %s)",
			ErrNotDerivable, oldMint, newMint)
	}
	return addr, nil
}
