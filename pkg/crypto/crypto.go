// Package crypto provides the cryptographic utilities used by the
// token-upgrade protocol.
//
// This package implements Ed25519 keypair handling, signing and signature
// verification, plus SHA256 hashing helpers. Key material is always loaded
// from explicit files or generated on demand; nothing in this package reads
// ambient environment state.
//
// The package uses Go's standard library crypto/ed25519 for signatures and
// crypto/sha256 for hashing.
//
// Example usage:
//
//	kp, _ := crypto.GenerateKeypair()
//	sig := kp.Sign(message)
//	valid := crypto.VerifySignature(kp.Pubkey().Bytes(), message, sig[:])
package crypto

import (
	"errors"
)

// Signature and key sizes for Ed25519.
const (
	// PublicKeySize is the size of an Ed25519 public key in bytes.
	PublicKeySize = 32

	// SignatureSize is the size of an Ed25519 signature in bytes.
	SignatureSize = 64

	// PrivateKeySize is the size of an Ed25519 private key in bytes.
	PrivateKeySize = 64

	// SeedSize is the size of an Ed25519 seed in bytes.
	SeedSize = 32
)

// Hash sizes.
const (
	// HashSize is the size of a SHA256 hash in bytes.
	HashSize = 32
)

// Common errors returned by the crypto package.
var (
	// ErrInvalidPublicKey is returned when a public key has an invalid format.
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrInvalidPrivateKey is returned when a private key has an invalid format.
	ErrInvalidPrivateKey = errors.New("invalid private key")

	// ErrInvalidSignature is returned when a signature has an invalid format.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrVerificationFailed is returned when signature verification fails.
	ErrVerificationFailed = errors.New("signature verification failed")
)
