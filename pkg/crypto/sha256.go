package crypto

import (
	"crypto/sha256"
)

// Hash computes the SHA256 hash of the input data.
// Returns a fixed-size 32-byte array.
func Hash(data []byte) [HashSize]byte {
	return sha256.Sum256(data)
}

// HashMulti computes the SHA256 hash of multiple byte slices concatenated
// together. This is more efficient than concatenating the slices first, as
// it avoids an additional memory allocation.
//
// Example:
//
//	hash := HashMulti(header, body, footer)
func HashMulti(data ...[]byte) [HashSize]byte {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	var result [HashSize]byte
	copy(result[:], h.Sum(nil))
	return result
}
