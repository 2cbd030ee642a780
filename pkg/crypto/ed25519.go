package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rogaldh/token-upgrade/pkg/types"
)

// VerifySignature verifies a single Ed25519 signature.
// Returns true if the signature is valid, false otherwise.
//
// Parameters:
//   - pubkey: 32-byte Ed25519 public key
//   - message: the message that was signed
//   - signature: 64-byte Ed25519 signature
//
// Returns false if the public key or signature have invalid lengths.
func VerifySignature(pubkey, message, signature []byte) bool {
	if len(pubkey) != PublicKeySize {
		return false
	}
	if len(signature) != SignatureSize {
		return false
	}
	return ed25519.Verify(pubkey, message, signature)
}

// VerifySignatureStrict is like VerifySignature but returns an error
// with details about why verification failed.
func VerifySignatureStrict(pubkey, message, signature []byte) error {
	if len(pubkey) != PublicKeySize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKey, PublicKeySize, len(pubkey))
	}
	if len(signature) != SignatureSize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, SignatureSize, len(signature))
	}
	if !VerifySignature(pubkey, message, signature) {
		return ErrVerificationFailed
	}
	return nil
}

// Keypair holds an Ed25519 keypair.
type Keypair struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
}

// GenerateKeypair creates a new random keypair.
func GenerateKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return &Keypair{private: priv, public: pub}, nil
}

// KeypairFromSeed derives a keypair from a 32-byte seed.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: seed must be %d bytes, got %d", ErrInvalidPrivateKey, SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Keypair{
		private: priv,
		public:  priv.Public().(ed25519.PublicKey),
	}, nil
}

// KeypairFromBytes reconstructs a keypair from a 64-byte private key
// (seed || public key), the layout used by solana keypair files.
func KeypairFromBytes(b []byte) (*Keypair, error) {
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPrivateKey, PrivateKeySize, len(b))
	}
	priv := ed25519.PrivateKey(make([]byte, PrivateKeySize))
	copy(priv, b)
	return &Keypair{
		private: priv,
		public:  priv.Public().(ed25519.PublicKey),
	}, nil
}

// Pubkey returns the public key as a types.Pubkey.
func (kp *Keypair) Pubkey() types.Pubkey {
	var pk types.Pubkey
	copy(pk[:], kp.public)
	return pk
}

// Sign signs a message and returns the signature.
func (kp *Keypair) Sign(message []byte) types.Signature {
	var sig types.Signature
	copy(sig[:], ed25519.Sign(kp.private, message))
	return sig
}

// Bytes returns the 64-byte private key (seed || public key).
func (kp *Keypair) Bytes() []byte {
	b := make([]byte, PrivateKeySize)
	copy(b, kp.private)
	return b
}

// LoadKeypairFile reads a keypair from a JSON file containing a 64-element
// byte array, the format written by solana-keygen.
func LoadKeypairFile(path string) (*Keypair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair file: %w", err)
	}
	var nums []int
	if err := json.Unmarshal(raw, &nums); err != nil {
		return nil, fmt.Errorf("failed to parse keypair file %s: %w", path, err)
	}
	b := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return nil, fmt.Errorf("%w: byte %d out of range in %s", ErrInvalidPrivateKey, n, path)
		}
		b[i] = byte(n)
	}
	kp, err := KeypairFromBytes(b)
	if err != nil {
		return nil, err
	}
	// The seed and public key halves are stored independently; a mismatch
	// yields signatures that never verify.
	check := kp.Sign(keypairCheckMessage)
	if err := VerifySignatureStrict(kp.public, keypairCheckMessage, check[:]); err != nil {
		return nil, fmt.Errorf("keypair file %s: public key does not match seed: %w", path, err)
	}
	return kp, nil
}

var keypairCheckMessage = []byte("keypair consistency check")

// SaveKeypairFile writes a keypair to a JSON file in the solana-keygen
// 64-element byte array format.
func SaveKeypairFile(kp *Keypair, path string) error {
	b := kp.Bytes()
	nums := make([]int, len(b))
	for i, v := range b {
		nums[i] = int(v)
	}
	raw, err := json.Marshal(nums)
	if err != nil {
		return fmt.Errorf("failed to encode keypair: %w", err)
	}
	if err := os.WriteFile(path, raw, 0600); err != nil {
		return fmt.Errorf("failed to write keypair file: %w", err)
	}
	return nil
}
