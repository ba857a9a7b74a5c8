// Package digesttest holds the checks every registered digest algorithm must
// pass.
package digesttest

import (
	"bytes"
	"crypto/rand"
	"sync"
	"testing"

	"github.com/TecharoHQ/powhash/lib/digest"
)

// Common checks that fn is deterministic, total over empty input, does not
// mutate or retain its input and is safe to call concurrently.
func Common(t *testing.T, fn digest.Func) {
	t.Helper()

	for _, tt := range []struct {
		name string
		doer func(t *testing.T)
	}{
		{
			name: "deterministic",
			doer: func(t *testing.T) {
				input := RandomInput(t, 256)
				if a, b := fn(input), fn(input); a != b {
					t.Errorf("same input gave %s then %s", a, b)
				}
			},
		},
		{
			name: "empty input",
			doer: func(t *testing.T) {
				a, b := fn(nil), fn([]byte{})
				if a != b {
					t.Errorf("nil and empty input disagree: %s vs %s", a, b)
				}
				if a == (digest.Digest{}) {
					t.Error("empty input produced the zero digest")
				}
			},
		},
		{
			name: "input is not mutated",
			doer: func(t *testing.T) {
				input := RandomInput(t, 1024)
				orig := bytes.Clone(input)
				fn(input)
				if !bytes.Equal(input, orig) {
					t.Error("digest function modified its input")
				}
			},
		},
		{
			name: "input sensitive",
			doer: func(t *testing.T) {
				input := RandomInput(t, 64)
				flipped := bytes.Clone(input)
				flipped[0] ^= 1
				if fn(input) == fn(flipped) {
					t.Error("flipping one bit did not change the digest")
				}
			},
		},
		{
			name: "concurrent use",
			doer: func(t *testing.T) {
				shared := RandomInput(t, 512)
				want := fn(shared)

				var wg sync.WaitGroup
				for range 8 {
					wg.Add(1)
					go func() {
						defer wg.Done()
						if got := fn(shared); got != want {
							t.Errorf("concurrent call on shared input gave %s, want %s", got, want)
						}
					}()
				}
				wg.Wait()
			},
		},
	} {
		t.Run(tt.name, tt.doer)
	}
}

// RandomInput returns n random bytes.
func RandomInput(t testing.TB, n int) []byte {
	t.Helper()

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		t.Fatal(err)
	}
	return buf
}
