package digest

import (
	"crypto/sha256"

	"golang.org/x/crypto/sha3"
)

func init() {
	Register("keccak256", Algorithm{Func: Keccak256})
	Register("sha256", Algorithm{Func: SHA256})
}

// Keccak256 is the original (pre-SHA-3 padding) Keccak-256, the fast hash of
// CryptoNight style proof-of-work chains.
func Keccak256(data []byte) Digest {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)

	var result Digest
	h.Sum(result[:0])
	return result
}

func SHA256(data []byte) Digest {
	return sha256.Sum256(data)
}
