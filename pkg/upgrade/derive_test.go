package upgrade

import (
	"fmt"
	"testing"

	"github.com/rogaldh/token-upgrade/pkg/pda"
	"github.com/rogaldh/token-upgrade/pkg/types"
)

// Helper function to create test pubkeys
func testPubkey(seed string) types.Pubkey {
	return types.Pubkey(types.SHA256([]byte(seed)))
}

func TestDeriveEscrowAuthority_Deterministic(t *testing.T) {
	oldMint := testPubkey("old_mint")
	newMint := testPubkey("new_mint")

	first, err := DeriveEscrowAuthority(oldMint, newMint, types.TokenUpgradeProgramID)
	if err != nil {
		t.Fatalf("DeriveEscrowAuthority failed: %v", err)
	}
	second, err := DeriveEscrowAuthority(oldMint, newMint, types.TokenUpgradeProgramID)
	if err != nil {
		t.Fatalf("DeriveEscrowAuthority failed: %v", err)
	}

	if first.Address != second.Address {
		t.Errorf("derivation not deterministic: %s vs %s", first.Address, second.Address)
	}
	if first.Bump != second.Bump {
		t.Errorf("bump not deterministic: %d vs %d", first.Bump, second.Bump)
	}
}

func TestDeriveEscrowAuthority_DistinctPairs(t *testing.T) {
	seen := make(map[types.Pubkey]string)

	for i := 0; i < 64; i++ {
		oldMint := testPubkey(fmt.Sprintf("old_%d", i))
		newMint := testPubkey(fmt.Sprintf("new_%d", i))

		authority, err := DeriveEscrowAuthority(oldMint, newMint, types.TokenUpgradeProgramID)
		if err != nil {
			t.Fatalf("pair %d: %v", i, err)
		}
		if prev, ok := seen[authority.Address]; ok {
			t.Fatalf("authority collision between pair %d and %s", i, prev)
		}
		seen[authority.Address] = fmt.Sprintf("pair %d", i)
	}
}

func TestDeriveEscrowAuthority_OrderMatters(t *testing.T) {
	a := testPubkey("mint_a")
	b := testPubkey("mint_b")

	forward, err := DeriveEscrowAuthority(a, b, types.TokenUpgradeProgramID)
	if err != nil {
		t.Fatalf("forward derivation failed: %v", err)
	}
	reverse, err := DeriveEscrowAuthority(b, a, types.TokenUpgradeProgramID)
	if err != nil {
		t.Fatalf("reverse derivation failed: %v", err)
	}

	if forward.Address == reverse.Address {
		t.Error("swapping the mint pair must change the escrow authority")
	}
}

func TestDeriveEscrowAuthority_ProgramSeparation(t *testing.T) {
	oldMint := testPubkey("old_mint")
	newMint := testPubkey("new_mint")

	under, err := DeriveEscrowAuthority(oldMint, newMint, types.TokenUpgradeProgramID)
	if err != nil {
		t.Fatalf("derivation failed: %v", err)
	}
	other, err := DeriveEscrowAuthority(oldMint, newMint, testPubkey("other_program"))
	if err != nil {
		t.Fatalf("derivation failed: %v", err)
	}

	if under.Address == other.Address {
		t.Error("different program IDs must derive different authorities")
	}
}

func TestSignerSeeds_RederiveAuthority(t *testing.T) {
	oldMint := testPubkey("old_mint")
	newMint := testPubkey("new_mint")

	authority, err := DeriveEscrowAuthority(oldMint, newMint, types.TokenUpgradeProgramID)
	if err != nil {
		t.Fatalf("derivation failed: %v", err)
	}

	derived, ok := pda.CreateProgramAddress(
		authority.SignerSeeds(oldMint, newMint), types.TokenUpgradeProgramID)
	if !ok {
		t.Fatal("signer seeds did not produce a valid address")
	}
	if derived != authority.Address {
		t.Errorf("signer seeds derive %s, want %s", derived, authority.Address)
	}
}

func TestDeriveEscrowAddress_Deterministic(t *testing.T) {
	oldMint := testPubkey("old_mint")
	newMint := testPubkey("new_mint")

	first, err := DeriveEscrowAddress(oldMint, newMint, types.TokenUpgradeProgramID, types.TokenProgramID)
	if err != nil {
		t.Fatalf("DeriveEscrowAddress failed: %v", err)
	}
	second, err := DeriveEscrowAddress(oldMint, newMint, types.TokenUpgradeProgramID, types.TokenProgramID)
	if err != nil {
		t.Fatalf("DeriveEscrowAddress failed: %v", err)
	}
	if first != second {
		t.Errorf("escrow address not deterministic: %s vs %s", first, second)
	}

	other, err := DeriveEscrowAddress(oldMint, newMint, types.TokenUpgradeProgramID, types.Token2022ProgramID)
	if err != nil {
		t.Fatalf("DeriveEscrowAddress failed: %v", err)
	}
	if other == first {
		t.Error("different token programs must derive different escrow addresses")
	}
}
