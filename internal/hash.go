package internal

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint is a high-performance non-cryptographic hash of an input buffer.
// It is only used to correlate log lines about the same input, never as a
// digest.
func Fingerprint(data []byte) string {
	h := xxhash.Sum64(data)
	return strconv.FormatUint(h, 16)
}

// FastHash is Fingerprint for strings.
func FastHash(text string) string {
	h := xxhash.Sum64String(text)
	return strconv.FormatUint(h, 16)
}
