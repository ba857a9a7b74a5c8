package verify

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"testing"

	"github.com/TecharoHQ/powhash/lib/digest"
)

func mkRequest(t *testing.T, values map[string]string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, "/", nil)
	if err != nil {
		t.Fatal(err)
	}

	q := req.URL.Query()

	for k, v := range values {
		q.Set(k, v)
	}

	req.URL.RawQuery = q.Encode()

	return req
}

func TestBasic(t *testing.T) {
	e := digest.Default()
	data := []byte("hunter")

	d, err := e.ComputeFast(data)
	if err != nil {
		t.Fatal(err)
	}
	zeros := d.LeadingZeros()

	var wrong digest.Digest
	copy(wrong[:], d[:])
	wrong[31] ^= 0xff

	for _, cs := range []struct {
		name   string
		values map[string]string
		err    error
		status int
	}{
		{
			name: "allgood",
			values: map[string]string{
				"digest": d.String(),
				"fast":   "true",
			},
		},
		{
			name: "exact-difficulty",
			values: map[string]string{
				"digest":     d.String(),
				"difficulty": strconv.Itoa(zeros),
				"fast":       "true",
			},
		},
		{
			name:   "no-params",
			values: map[string]string{},
			err:    ErrMissingField,
			status: http.StatusBadRequest,
		},
		{
			name: "digest-not-hex",
			values: map[string]string{
				"digest": "hunter",
				"fast":   "true",
			},
			err:    ErrInvalidFormat,
			status: http.StatusBadRequest,
		},
		{
			name: "difficulty-not-number",
			values: map[string]string{
				"digest":     d.String(),
				"difficulty": "lots",
				"fast":       "true",
			},
			err:    ErrInvalidFormat,
			status: http.StatusBadRequest,
		},
		{
			name: "difficulty-out-of-range",
			values: map[string]string{
				"digest":     d.String(),
				"difficulty": "257",
				"fast":       "true",
			},
			err:    ErrInvalidFormat,
			status: http.StatusBadRequest,
		},
		{
			name: "fast-not-bool",
			values: map[string]string{
				"digest": d.String(),
				"fast":   "sometimes",
			},
			err:    ErrInvalidFormat,
			status: http.StatusBadRequest,
		},
		{
			name: "mismatch",
			values: map[string]string{
				"digest": wrong.String(),
				"fast":   "true",
			},
			err:    ErrMismatch,
			status: http.StatusUnprocessableEntity,
		},
		{
			name: "wrong-variant",
			values: map[string]string{
				"digest": d.String(),
			},
			err:    ErrMismatch,
			status: http.StatusUnprocessableEntity,
		},
		{
			name: "insufficient-work",
			values: map[string]string{
				"digest":     d.String(),
				"difficulty": strconv.Itoa(zeros + 1),
				"fast":       "true",
			},
			err:    ErrInsufficientWork,
			status: http.StatusUnprocessableEntity,
		},
	} {
		t.Run(cs.name, func(t *testing.T) {
			err := func() error {
				req, err := ParseRequest(mkRequest(t, cs.values), data)
				if err != nil {
					return err
				}
				return Verify(e, slog.Default(), req)
			}()

			if !errors.Is(err, cs.err) {
				t.Fatalf("got wrong error: wanted %v, got %v", cs.err, err)
			}

			if cs.err == nil {
				return
			}

			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("error is not a *Error: %T", err)
			}

			if verr.StatusCode != cs.status {
				t.Errorf("wrong status code: wanted %d, got %d", cs.status, verr.StatusCode)
			}
		})
	}
}
