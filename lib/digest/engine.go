package digest

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	DefaultFast = "keccak256"
	DefaultFull = "argon2id"
)

var (
	ErrUnknownAlgorithm = errors.New("digest: unknown algorithm")

	TimeTaken = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "powhash_digest_time_taken",
		Help:    "The time taken to compute one digest (microseconds)",
		Buckets: prometheus.ExponentialBucketsRange(1, math.Pow(2, 24), 24),
	}, []string{"algorithm"})
)

// Engine binds one algorithm to each Variant. It holds no mutable state, so a
// single Engine may be shared by any number of goroutines.
type Engine struct {
	fast, full         Func
	fastName, fullName string
}

// New builds an Engine from two registered algorithm names.
func New(fastName, fullName string) (*Engine, error) {
	var errs []error

	fast, ok := Get(fastName)
	if !ok {
		errs = append(errs, fmt.Errorf("%w: fast: %q", ErrUnknownAlgorithm, fastName))
	}

	full, ok := Get(fullName)
	if !ok {
		errs = append(errs, fmt.Errorf("%w: full: %q", ErrUnknownAlgorithm, fullName))
	}

	if len(errs) != 0 {
		return nil, errors.Join(errs...)
	}

	return &Engine{
		fast:     fast.Func,
		full:     full.Func,
		fastName: fastName,
		fullName: fullName,
	}, nil
}

// Default returns an Engine using Keccak-256 for Fast and Argon2id for Full.
func Default() *Engine {
	e, err := New(DefaultFast, DefaultFull)
	if err != nil {
		panic(fmt.Sprintf("[unexpected] built-in algorithms are not registered: %v", err))
	}
	return e
}

// Algorithm returns the name of the algorithm bound to v.
func (e *Engine) Algorithm(v Variant) string {
	if v == Fast {
		return e.fastName
	}
	return e.fullName
}

func (e *Engine) ComputeFast(data []byte) (Digest, error) {
	return e.Compute(data, Fast)
}

func (e *Engine) ComputeFull(data []byte) (Digest, error) {
	return e.Compute(data, Full)
}

// Compute applies the transform selected by v to data. A zero length data is
// valid input. A panic raised by the transform is returned as a *Fault.
func (e *Engine) Compute(data []byte, v Variant) (result Digest, err error) {
	if err := v.Valid(); err != nil {
		return Digest{}, err
	}

	fn, name := e.full, e.fullName
	if v == Fast {
		fn, name = e.fast, e.fastName
	}

	defer func() {
		if r := recover(); r != nil {
			result = Digest{}
			err = &Fault{Algorithm: name, Variant: v, Cause: r}
		}
	}()

	t0 := time.Now()
	result = fn(data)
	TimeTaken.WithLabelValues(name).Observe(float64(time.Since(t0).Microseconds()))

	return result, nil
}
