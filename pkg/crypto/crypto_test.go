package crypto

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestSignAndVerify(t *testing.T) {
	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair failed: %v", err)
	}

	message := []byte("burn 100, release 100")
	sig := kp.Sign(message)

	pubkey := kp.Pubkey()
	if !VerifySignature(pubkey[:], message, sig[:]) {
		t.Error("valid signature did not verify")
	}
	if VerifySignature(pubkey[:], []byte("tampered"), sig[:]) {
		t.Error("signature verified for a different message")
	}

	if err := VerifySignatureStrict(pubkey[:], message, sig[:]); err != nil {
		t.Errorf("strict verification failed: %v", err)
	}
	if err := VerifySignatureStrict(pubkey[:], []byte("tampered"), sig[:]); err == nil {
		t.Error("strict verification passed for a different message")
	}
}

func TestKeypairFromSeed_Deterministic(t *testing.T) {
	seed := make([]byte, SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}

	kp1, err := KeypairFromSeed(seed)
	if err != nil {
		t.Fatalf("KeypairFromSeed failed: %v", err)
	}
	kp2, err := KeypairFromSeed(seed)
	if err != nil {
		t.Fatalf("KeypairFromSeed failed: %v", err)
	}
	if kp1.Pubkey() != kp2.Pubkey() {
		t.Error("same seed derived different keypairs")
	}

	if _, err := KeypairFromSeed(seed[:SeedSize-1]); err == nil {
		t.Error("short seed must be rejected")
	}
}

func TestKeypairFromBytes(t *testing.T) {
	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair failed: %v", err)
	}

	restored, err := KeypairFromBytes(kp.Bytes())
	if err != nil {
		t.Fatalf("KeypairFromBytes failed: %v", err)
	}
	if restored.Pubkey() != kp.Pubkey() {
		t.Error("pubkey changed through bytes round trip")
	}
	if !bytes.Equal(restored.Bytes(), kp.Bytes()) {
		t.Error("keypair bytes changed through round trip")
	}
}

func TestKeypairFile_RoundTrip(t *testing.T) {
	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "id.json")
	if err := SaveKeypairFile(kp, path); err != nil {
		t.Fatalf("SaveKeypairFile failed: %v", err)
	}

	loaded, err := LoadKeypairFile(path)
	if err != nil {
		t.Fatalf("LoadKeypairFile failed: %v", err)
	}
	if loaded.Pubkey() != kp.Pubkey() {
		t.Error("pubkey changed through file round trip")
	}

	message := []byte("prove it")
	sig := loaded.Sign(message)
	pubkey := kp.Pubkey()
	if !VerifySignature(pubkey[:], message, sig[:]) {
		t.Error("loaded keypair produced an invalid signature")
	}
}

func TestLoadKeypairFile_MismatchedPublicHalf(t *testing.T) {
	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair failed: %v", err)
	}

	// Corrupt the stored public key half; the seed half stays valid.
	b := kp.Bytes()
	b[40] ^= 0xff
	broken, err := KeypairFromBytes(b)
	if err != nil {
		t.Fatalf("KeypairFromBytes failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "broken.json")
	if err := SaveKeypairFile(broken, path); err != nil {
		t.Fatalf("SaveKeypairFile failed: %v", err)
	}
	if _, err := LoadKeypairFile(path); err == nil {
		t.Error("loading a keypair with a mismatched public key half must fail")
	}
}

func TestLoadKeypairFile_Missing(t *testing.T) {
	if _, err := LoadKeypairFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("loading a missing keypair file must fail")
	}
}
