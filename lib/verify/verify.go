// Package verify checks proof-of-work claims: a client states the digest of
// some data and how many leading zero bits it has, and the server recomputes
// the digest to confirm both.
package verify

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/TecharoHQ/powhash/lib/digest"
)

var verifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "powhash_verifications_total",
	Help: "Number of proof-of-work verifications by variant and outcome",
}, []string{"variant", "outcome"})

type Request struct {
	Data       []byte
	Variant    digest.Variant
	Claimed    digest.Digest
	Difficulty int
}

// ParseRequest reads the digest, difficulty and fast query parameters of r.
// data becomes the Data of the request as is.
func ParseRequest(r *http.Request, data []byte) (*Request, error) {
	q := r.URL.Query()

	digestStr := q.Get("digest")
	if digestStr == "" {
		return nil, NewError("parse", "invalid request", fmt.Errorf("%w digest", ErrMissingField))
	}

	var claimed digest.Digest
	if err := claimed.UnmarshalText([]byte(digestStr)); err != nil {
		return nil, NewError("parse", "invalid request", fmt.Errorf("%w: digest: %w", ErrInvalidFormat, err))
	}

	difficulty := 0
	if val := q.Get("difficulty"); val != "" {
		var err error
		difficulty, err = strconv.Atoi(val)
		if err != nil {
			return nil, NewError("parse", "invalid request", fmt.Errorf("%w: difficulty: %w", ErrInvalidFormat, err))
		}
		if difficulty < 0 || difficulty > digest.Size*8 {
			return nil, NewError("parse", "invalid request", fmt.Errorf("%w: difficulty: %d is not in [0, %d]", ErrInvalidFormat, difficulty, digest.Size*8))
		}
	}

	fast := false
	if val := q.Get("fast"); val != "" {
		var err error
		fast, err = strconv.ParseBool(val)
		if err != nil {
			return nil, NewError("parse", "invalid request", fmt.Errorf("%w: fast: %w", ErrInvalidFormat, err))
		}
	}

	return &Request{
		Data:       data,
		Variant:    digest.VariantOf(fast),
		Claimed:    claimed,
		Difficulty: difficulty,
	}, nil
}

// Verify recomputes the digest of req.Data with e and checks it against the
// claim. A nil error means the claim holds.
func Verify(e *digest.Engine, lg *slog.Logger, req *Request) error {
	calculated, err := e.Compute(req.Data, req.Variant)
	if err != nil {
		return err
	}

	if subtle.ConstantTimeCompare(req.Claimed[:], calculated[:]) != 1 {
		verifications.WithLabelValues(req.Variant.String(), "mismatch").Inc()
		return NewError("verify", "invalid proof", fmt.Errorf("%w: wanted %s but got %s", ErrMismatch, calculated, req.Claimed))
	}

	if zeros := calculated.LeadingZeros(); zeros < req.Difficulty {
		verifications.WithLabelValues(req.Variant.String(), "insufficient").Inc()
		return NewError("verify", "invalid proof", fmt.Errorf("%w: wanted %d leading zero bits but got %d", ErrInsufficientWork, req.Difficulty, zeros))
	}

	lg.Debug("proof verified", "variant", req.Variant, "difficulty", req.Difficulty)
	verifications.WithLabelValues(req.Variant.String(), "ok").Inc()

	return nil
}
