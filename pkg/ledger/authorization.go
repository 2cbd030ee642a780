package ledger

import (
	"fmt"

	"github.com/rogaldh/token-upgrade/pkg/pda"
	"github.com/rogaldh/token-upgrade/pkg/token"
	"github.com/rogaldh/token-upgrade/pkg/types"
)

// ProgramSignature authorizes an operation as a program-derived address.
// The ledger re-derives the address from the seeds and program ID and
// accepts the signature only if the result matches the claimed authority.
// There is no secret material: the ability to name the right seeds is the
// proof, and only program logic holds the seeds.
type ProgramSignature struct {
	Seeds     [][]byte     // derivation seeds, including the bump seed
	ProgramID types.Pubkey // program on whose behalf the signature is made
}

// Derive recomputes the program-derived address for this signature.
func (ps *ProgramSignature) Derive() (types.Pubkey, bool) {
	return pda.CreateProgramAddress(ps.Seeds, ps.ProgramID)
}

// Authorization carries the signing context for a ledger operation.
//
// Authority names the acting owner, delegate or mint authority. Signers
// lists the pubkeys that signed the enclosing transaction; the ledger does
// not re-verify Ed25519 signatures (transaction admission is outside the
// ledger), it checks that the required authority appears among them.
// Program, when set, authorizes Authority as a program-derived address
// instead of an external signer.
type Authorization struct {
	Authority types.Pubkey
	Signers   []types.Pubkey
	Program   *ProgramSignature
}

// SignedBy builds an Authorization for an externally held key.
func SignedBy(authority types.Pubkey, signers ...types.Pubkey) Authorization {
	if len(signers) == 0 {
		signers = []types.Pubkey{authority}
	}
	return Authorization{Authority: authority, Signers: signers}
}

// SignedByProgram builds an Authorization for a program-derived authority.
func SignedByProgram(authority types.Pubkey, seeds [][]byte, programID types.Pubkey) Authorization {
	return Authorization{
		Authority: authority,
		Program:   &ProgramSignature{Seeds: seeds, ProgramID: programID},
	}
}

// validateAuthority checks that auth proves the right to act as expected.
// Three proof paths:
//   - a program signature whose seeds re-derive to expected;
//   - expected is a multisig account and a quorum of its configured
//     signers is present in auth.Signers;
//   - expected itself is present in auth.Signers.
func (t *Txn) validateAuthority(expected types.Pubkey, auth Authorization) error {
	if auth.Authority != expected {
		return fmt.Errorf("%w: authority %s, expected %s",
			token.ErrAuthorityMismatch, auth.Authority, expected)
	}

	if auth.Program != nil {
		derived, ok := auth.Program.Derive()
		if !ok || derived != expected {
			return fmt.Errorf("%w: seeds do not derive %s", ErrInvalidProgramSignature, expected)
		}
		return nil
	}

	// Multisig owners are approved by quorum rather than a single signer.
	if ms := t.multisigAt(expected); ms != nil {
		if !ms.Approves(auth.Signers) {
			return fmt.Errorf("%w: multisig %s requires %d of %d signers",
				token.ErrMissingSigners, expected, ms.M, ms.N)
		}
		return nil
	}

	for _, signer := range auth.Signers {
		if signer == expected {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrMissingSignature, expected)
}

// multisigAt returns the multisig state stored at addr, or nil if addr does
// not hold an initialized multisig account.
func (t *Txn) multisigAt(addr types.Pubkey) *token.Multisig {
	account, err := t.GetAccount(addr)
	if err != nil || account == nil {
		return nil
	}
	if !account.Owner.IsTokenProgram() || len(account.Data) != token.MultisigSize {
		return nil
	}
	ms, err := token.DeserializeMultisig(account.Data)
	if err != nil || !ms.IsInitialized {
		return nil
	}
	return ms
}
