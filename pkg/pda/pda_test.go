package pda

import (
	"crypto/ed25519"
	"testing"

	"github.com/rogaldh/token-upgrade/pkg/types"
)

func testPubkey(seed string) types.Pubkey {
	return types.Pubkey(types.SHA256([]byte(seed)))
}

func TestFindProgramAddress_Deterministic(t *testing.T) {
	seeds := [][]byte{[]byte("escrow"), []byte("pair")}
	program := testPubkey("program")

	addr1, bump1, ok := FindProgramAddress(seeds, program)
	if !ok {
		t.Fatal("no derivable address")
	}
	addr2, bump2, ok := FindProgramAddress(seeds, program)
	if !ok {
		t.Fatal("no derivable address on retry")
	}
	if addr1 != addr2 || bump1 != bump2 {
		t.Errorf("derivation not deterministic: (%s, %d) vs (%s, %d)", addr1, bump1, addr2, bump2)
	}
}

func TestFindProgramAddress_BumpRederives(t *testing.T) {
	seeds := [][]byte{[]byte("escrow"), []byte("pair")}
	program := testPubkey("program")

	addr, bump, ok := FindProgramAddress(seeds, program)
	if !ok {
		t.Fatal("no derivable address")
	}

	full := append(append([][]byte{}, seeds...), []byte{bump})
	derived, valid := CreateProgramAddress(full, program)
	if !valid {
		t.Fatal("found bump does not re-derive a valid address")
	}
	if derived != addr {
		t.Errorf("re-derivation %s, want %s", derived, addr)
	}
}

func TestFindProgramAddress_NeverOnCurve(t *testing.T) {
	program := testPubkey("program")
	for i := 0; i < 128; i++ {
		seeds := [][]byte{[]byte("escrow"), {byte(i)}}
		addr, _, ok := FindProgramAddress(seeds, program)
		if !ok {
			t.Fatalf("seeds %d: no derivable address", i)
		}
		if isOnCurve(addr[:]) {
			t.Fatalf("seeds %d: derived address %s decodes as a curve point", i, addr)
		}
	}

	// A real ed25519 public key is a curve point, so the check itself is live.
	seed := types.SHA256([]byte("signable"))
	pub := ed25519.NewKeyFromSeed(seed[:]).Public().(ed25519.PublicKey)
	if !isOnCurve(pub) {
		t.Fatal("ed25519 public key should decode as a curve point")
	}
}

func TestFindProgramAddress_SeedSensitivity(t *testing.T) {
	program := testPubkey("program")

	a, _, ok := FindProgramAddress([][]byte{[]byte("seed_a")}, program)
	if !ok {
		t.Fatal("no derivable address for seed_a")
	}
	b, _, ok := FindProgramAddress([][]byte{[]byte("seed_b")}, program)
	if !ok {
		t.Fatal("no derivable address for seed_b")
	}
	if a == b {
		t.Error("different seeds derived the same address")
	}

	other, _, ok := FindProgramAddress([][]byte{[]byte("seed_a")}, testPubkey("program_2"))
	if !ok {
		t.Fatal("no derivable address under program_2")
	}
	if a == other {
		t.Error("different programs derived the same address")
	}
}

func TestCreateProgramAddress_SeedLimits(t *testing.T) {
	program := testPubkey("program")

	tooMany := make([][]byte, MaxSeeds+1)
	for i := range tooMany {
		tooMany[i] = []byte{byte(i)}
	}
	if _, ok := CreateProgramAddress(tooMany, program); ok {
		t.Error("more than MaxSeeds seeds must be rejected")
	}

	tooLong := [][]byte{make([]byte, MaxSeedLen+1)}
	if _, ok := CreateProgramAddress(tooLong, program); ok {
		t.Error("a seed longer than MaxSeedLen must be rejected")
	}
}

func TestDeriveAssociatedTokenAddress(t *testing.T) {
	wallet := testPubkey("wallet")
	mint := testPubkey("mint")

	addr1, _, ok := DeriveAssociatedTokenAddress(wallet, mint, types.TokenProgramID)
	if !ok {
		t.Fatal("no associated token address")
	}
	addr2, _, ok := DeriveAssociatedTokenAddress(wallet, mint, types.TokenProgramID)
	if !ok {
		t.Fatal("no associated token address on retry")
	}
	if addr1 != addr2 {
		t.Error("associated token derivation not deterministic")
	}

	otherWallet, _, ok := DeriveAssociatedTokenAddress(testPubkey("wallet_2"), mint, types.TokenProgramID)
	if !ok {
		t.Fatal("no associated token address for wallet_2")
	}
	if addr1 == otherWallet {
		t.Error("different wallets derived the same associated token address")
	}
}
