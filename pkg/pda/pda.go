// Package pda implements program-derived addresses: deterministic addresses
// computed from seeds and a program ID that never correspond to an Ed25519
// private key. Only program logic that can reproduce the derivation may act
// as such an address.
package pda

import (
	"crypto/sha256"

	"filippo.io/edwards25519"

	"github.com/rogaldh/token-upgrade/pkg/types"
)

// Derivation constants
const (
	// MaxSeeds is the maximum number of seeds for PDA derivation
	MaxSeeds = 16
	// MaxSeedLen is the maximum length of a single seed
	MaxSeedLen = 32
	// Marker is the domain-separation string appended during derivation
	Marker = "ProgramDerivedAddress"
)

// CreateProgramAddress creates a PDA from seeds and program ID.
// Formula: SHA256(seeds... || program_id || "ProgramDerivedAddress")
//
// Returns the PDA and a boolean indicating if it's valid. A candidate that
// decodes as a point on the ed25519 curve would be a signable key, so it is
// rejected and the caller must retry with a different bump seed.
func CreateProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, bool) {
	if len(seeds) > MaxSeeds {
		return types.ZeroPubkey, false
	}

	hasher := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return types.ZeroPubkey, false
		}
		hasher.Write(seed)
	}
	hasher.Write(programID[:])
	hasher.Write([]byte(Marker))

	hash := hasher.Sum(nil)

	if isOnCurve(hash) {
		return types.ZeroPubkey, false
	}

	var addr types.Pubkey
	copy(addr[:], hash)
	return addr, true
}

// FindProgramAddress finds a valid PDA by trying bump seeds from 255 down
// to 0. Returns the PDA, the bump seed, and whether a valid PDA was found.
func FindProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, uint8, bool) {
	if len(seeds) >= MaxSeeds {
		return types.ZeroPubkey, 0, false
	}

	// Append bump seed slot
	seedsWithBump := make([][]byte, len(seeds)+1)
	copy(seedsWithBump, seeds)
	bumpSeed := []byte{0}
	seedsWithBump[len(seeds)] = bumpSeed

	for bump := 255; bump >= 0; bump-- {
		bumpSeed[0] = uint8(bump)
		addr, valid := CreateProgramAddress(seedsWithBump, programID)
		if valid {
			return addr, uint8(bump), true
		}
	}

	return types.ZeroPubkey, 0, false
}

// DeriveAssociatedTokenAddress derives the associated token account address
// for a wallet and mint.
func DeriveAssociatedTokenAddress(wallet, mint, tokenProgram types.Pubkey) (types.Pubkey, uint8, bool) {
	seeds := [][]byte{
		wallet[:],
		tokenProgram[:],
		mint[:],
	}
	return FindProgramAddress(seeds, types.AssociatedTokenProgramID)
}

// isOnCurve reports whether a 32-byte value decompresses to a valid
// edwards25519 curve point. PDAs must NOT be on the curve: any on-curve
// address could in principle have a corresponding private key.
func isOnCurve(data []byte) bool {
	if len(data) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(data)
	return err == nil
}
