package digest

import (
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/scrypt"
)

// Parameters of the memory-hard transforms. Changing any of them changes
// every Full digest, so they are fixed at compile time.
const (
	argon2Time    = 1
	argon2Memory  = 2 * 1024 // KiB, the size of a CryptoNight scratchpad
	argon2Threads = 1

	scryptN = 1 << 11
	scryptR = 8
	scryptP = 1
)

// fullSalt separates Full digests from any other use of the same primitive.
var fullSalt = []byte("powhash.full.v1\x00")

func init() {
	Register("argon2id", Algorithm{Func: Argon2id, MemoryHard: true})
	Register("scrypt", Algorithm{Func: Scrypt, MemoryHard: true})
}

// Argon2id runs a single pass of Argon2id over a 2 MiB scratchpad.
func Argon2id(data []byte) Digest {
	return Digest(argon2.IDKey(data, fullSalt, argon2Time, argon2Memory, argon2Threads, Size))
}

// Scrypt runs scrypt with N=2048, r=8 (2 MiB of memory).
func Scrypt(data []byte) Digest {
	key, err := scrypt.Key(data, fullSalt, scryptN, scryptR, scryptP, Size)
	if err != nil {
		// the parameters above are constants that scrypt accepts
		panic(err)
	}
	return Digest(key)
}
