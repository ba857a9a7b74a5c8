// Package digest is the hash engine. It reduces a byte buffer to a 32 byte
// Digest with one of two transforms: a memory-hard Full transform meant for
// proof-of-work verification and a cheap Fast transform meant for integrity
// checks.
package digest

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/bits"
)

// Size is the length of every digest in bytes.
const Size = 32

var (
	ErrUnknownVariant = errors.New("digest: unknown variant")
	ErrBadDigest      = errors.New("digest: text is not a hex encoded 32 byte digest")
)

// Digest is the output of a hash computation. It is a value type and safe to
// copy and compare.
type Digest [Size]byte

// String returns the lower-case hex encoding of d.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// LeadingZeros counts the zero bits at the start of d. Proof-of-work
// difficulty is expressed in this unit.
func (d Digest) LeadingZeros() int {
	n := 0
	for _, b := range d {
		if b != 0 {
			return n + bits.LeadingZeros8(b)
		}
		n += 8
	}
	return n
}

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(text []byte) error {
	if hex.DecodedLen(len(text)) != Size {
		return fmt.Errorf("%w: got %d characters", ErrBadDigest, len(text))
	}

	if _, err := hex.Decode(d[:], text); err != nil {
		return fmt.Errorf("%w: %w", ErrBadDigest, err)
	}

	return nil
}

// Variant selects which transform is applied. The zero value is Full.
type Variant uint8

const (
	Full Variant = iota
	Fast
)

// VariantOf maps the boolean "fast" flag used by callers to a Variant.
func VariantOf(fast bool) Variant {
	if fast {
		return Fast
	}
	return Full
}

func (v Variant) String() string {
	switch v {
	case Full:
		return "full"
	case Fast:
		return "fast"
	default:
		return fmt.Sprintf("Variant(%d)", uint8(v))
	}
}

func (v Variant) Valid() error {
	switch v {
	case Full, Fast:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnknownVariant, uint8(v))
	}
}

func (v Variant) MarshalText() ([]byte, error) {
	if err := v.Valid(); err != nil {
		return nil, err
	}
	return []byte(v.String()), nil
}

func (v *Variant) UnmarshalText(text []byte) error {
	switch string(text) {
	case "full":
		*v = Full
	case "fast":
		*v = Fast
	default:
		return fmt.Errorf("%w: %q", ErrUnknownVariant, text)
	}
	return nil
}
