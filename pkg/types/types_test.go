package types

import (
	"bytes"
	"crypto/sha256"
	"testing"
)

func TestPubkey_Base58RoundTrip(t *testing.T) {
	original := SHA256([]byte("some key"))
	pk := Pubkey(original)

	decoded, err := PubkeyFromBase58(pk.String())
	if err != nil {
		t.Fatalf("PubkeyFromBase58 failed: %v", err)
	}
	if decoded != pk {
		t.Errorf("round trip changed pubkey: %s vs %s", decoded, pk)
	}
}

func TestPubkeyFromBase58_Invalid(t *testing.T) {
	if _, err := PubkeyFromBase58("not-base58-!!"); err == nil {
		t.Error("invalid base58 must fail")
	}
	// Valid base58 of the wrong length.
	if _, err := PubkeyFromBase58("abc"); err == nil {
		t.Error("short pubkey must fail")
	}
}

func TestPubkeyFromBytes_Length(t *testing.T) {
	if _, err := PubkeyFromBytes(make([]byte, 31)); err == nil {
		t.Error("31-byte pubkey must fail")
	}
	pk, err := PubkeyFromBytes(make([]byte, 32))
	if err != nil {
		t.Fatalf("PubkeyFromBytes failed: %v", err)
	}
	if !pk.IsZero() {
		t.Error("all-zero bytes must yield the zero pubkey")
	}
}

func TestIsTokenProgram(t *testing.T) {
	if !TokenProgramID.IsTokenProgram() {
		t.Error("token program not recognized")
	}
	if !Token2022ProgramID.IsTokenProgram() {
		t.Error("token-2022 program not recognized")
	}
	if SystemProgramID.IsTokenProgram() {
		t.Error("system program misclassified as a token program")
	}
	if TokenUpgradeProgramID.IsTokenProgram() {
		t.Error("upgrade program misclassified as a token program")
	}
}

func TestSHA256Multi(t *testing.T) {
	a := []byte("old mint")
	b := []byte("new mint")

	combined := SHA256Multi(a, b)
	direct := sha256.Sum256(append(append([]byte{}, a...), b...))
	if !bytes.Equal(combined[:], direct[:]) {
		t.Error("SHA256Multi differs from hashing the concatenation")
	}

	swapped := SHA256Multi(b, a)
	if combined == swapped {
		t.Error("argument order must affect the hash")
	}
}

func TestHash_Base58RoundTrip(t *testing.T) {
	h := SHA256([]byte("payload"))

	decoded, err := HashFromBase58(h.String())
	if err != nil {
		t.Fatalf("HashFromBase58 failed: %v", err)
	}
	if decoded != h {
		t.Errorf("round trip changed hash: %s vs %s", decoded, h)
	}
	if h.IsZero() {
		t.Error("hash of data must not be zero")
	}
	if !ZeroHash.IsZero() {
		t.Error("ZeroHash must report zero")
	}
}

func TestLamports_SOL(t *testing.T) {
	if got := Lamports(2_500_000_000).SOL(); got != 2.5 {
		t.Errorf("SOL() = %v, want 2.5", got)
	}
	if got := LamportsFromSOL(1.5); got != 1_500_000_000 {
		t.Errorf("LamportsFromSOL(1.5) = %d, want 1500000000", got)
	}
}

func TestAccountHash_Sensitivity(t *testing.T) {
	pk := Pubkey(SHA256([]byte("account")))
	account := &Account{Lamports: 10, Data: []byte{1}, Owner: TokenProgramID}

	before := account.Hash(pk)
	account.Lamports = 11
	after := account.Hash(pk)
	if before == after {
		t.Error("account hash unchanged after lamports change")
	}

	clone := account.Clone()
	if clone.Hash(pk) != after {
		t.Error("clone hashes differently from the original")
	}
	clone.Data[0] = 9
	if bytes.Equal(clone.Data, account.Data) {
		t.Error("clone shares data with the original")
	}
}
