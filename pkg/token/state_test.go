package token

import (
	"errors"
	"testing"

	"github.com/rogaldh/token-upgrade/pkg/types"
)

func testPubkey(seed string) types.Pubkey {
	return types.Pubkey(types.SHA256([]byte(seed)))
}

func TestMintRoundTrip(t *testing.T) {
	authority := testPubkey("authority")
	freeze := testPubkey("freeze")
	mint := NewMint(8, &authority, &freeze)
	mint.Supply = 42_000_000

	data := mint.Serialize()
	if len(data) != MintSize {
		t.Fatalf("serialized mint is %d bytes, want %d", len(data), MintSize)
	}

	decoded, err := DeserializeMint(data)
	if err != nil {
		t.Fatalf("DeserializeMint failed: %v", err)
	}
	if decoded.Supply != 42_000_000 || decoded.Decimals != 8 {
		t.Errorf("decoded supply=%d decimals=%d", decoded.Supply, decoded.Decimals)
	}
	if !decoded.MintAuthority.IsSome || decoded.MintAuthority.Value != authority {
		t.Error("mint authority lost in round trip")
	}
	if !decoded.FreezeAuthority.IsSome || decoded.FreezeAuthority.Value != freeze {
		t.Error("freeze authority lost in round trip")
	}
}

func TestTokenAccountRoundTrip(t *testing.T) {
	acct := NewTokenAccount(testPubkey("mint"), testPubkey("owner"))
	acct.Amount = 123_456
	acct.Delegate = COption{IsSome: true, Value: testPubkey("delegate")}
	acct.DelegatedAmount = 1_000

	data := acct.Serialize()
	if len(data) != TokenAccountSize {
		t.Fatalf("serialized account is %d bytes, want %d", len(data), TokenAccountSize)
	}

	decoded, err := DeserializeTokenAccount(data)
	if err != nil {
		t.Fatalf("DeserializeTokenAccount failed: %v", err)
	}
	if decoded.Amount != 123_456 || decoded.DelegatedAmount != 1_000 {
		t.Errorf("decoded amount=%d delegated=%d", decoded.Amount, decoded.DelegatedAmount)
	}
	if decoded.State != AccountStateInitialized {
		t.Errorf("decoded state %d, want initialized", decoded.State)
	}
	if !decoded.Delegate.IsSome || decoded.Delegate.Value != testPubkey("delegate") {
		t.Error("delegate lost in round trip")
	}
}

func TestDeserialize_TruncatedData(t *testing.T) {
	if _, err := DeserializeMint(make([]byte, MintSize-1)); err == nil {
		t.Error("truncated mint data must fail")
	}
	if _, err := DeserializeTokenAccount(make([]byte, TokenAccountSize-1)); err == nil {
		t.Error("truncated token account data must fail")
	}
	if _, err := DeserializeMultisig(make([]byte, MultisigSize-1)); err == nil {
		t.Error("truncated multisig data must fail")
	}
}

func TestMultisigRoundTrip(t *testing.T) {
	signers := []types.Pubkey{testPubkey("s1"), testPubkey("s2"), testPubkey("s3")}
	ms, err := NewMultisig(2, signers)
	if err != nil {
		t.Fatalf("NewMultisig failed: %v", err)
	}

	decoded, err := DeserializeMultisig(ms.Serialize())
	if err != nil {
		t.Fatalf("DeserializeMultisig failed: %v", err)
	}
	if decoded.M != 2 || decoded.N != 3 {
		t.Errorf("decoded m=%d n=%d, want 2 and 3", decoded.M, decoded.N)
	}
	for i, signer := range signers {
		if decoded.Signers[i] != signer {
			t.Errorf("signer %d lost in round trip", i)
		}
	}
}

func TestNewMultisig_Validation(t *testing.T) {
	if _, err := NewMultisig(1, nil); !errors.Is(err, ErrInvalidMultisig) {
		t.Errorf("empty signer set: got %v", err)
	}
	if _, err := NewMultisig(3, []types.Pubkey{testPubkey("s1")}); !errors.Is(err, ErrInvalidMultisig) {
		t.Errorf("quorum above signer count: got %v", err)
	}
	if _, err := NewMultisig(0, []types.Pubkey{testPubkey("s1")}); !errors.Is(err, ErrInvalidMultisig) {
		t.Errorf("zero quorum: got %v", err)
	}

	tooMany := make([]types.Pubkey, MaxMultisigSigners+1)
	if _, err := NewMultisig(1, tooMany); !errors.Is(err, ErrInvalidMultisig) {
		t.Errorf("too many signers: got %v", err)
	}
}

func TestMultisigApproves(t *testing.T) {
	s1, s2, s3 := testPubkey("s1"), testPubkey("s2"), testPubkey("s3")
	ms, err := NewMultisig(2, []types.Pubkey{s1, s2, s3})
	if err != nil {
		t.Fatalf("NewMultisig failed: %v", err)
	}

	if ms.Approves([]types.Pubkey{s1}) {
		t.Error("one signer must not satisfy a 2-of-3 quorum")
	}
	if !ms.Approves([]types.Pubkey{s1, s3}) {
		t.Error("two configured signers must satisfy a 2-of-3 quorum")
	}
	if ms.Approves([]types.Pubkey{s1, testPubkey("outsider")}) {
		t.Error("an unconfigured signer must not count toward the quorum")
	}
	// Presenting the same signer twice counts once.
	if ms.Approves([]types.Pubkey{s1, s1}) {
		t.Error("a duplicated signer must not satisfy the quorum")
	}
}
