package digest

import "github.com/zeebo/blake3"

func init() {
	Register("blake3", Algorithm{Func: BLAKE3})
}

func BLAKE3(data []byte) Digest {
	return blake3.Sum256(data)
}
