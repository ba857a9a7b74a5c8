package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/TecharoHQ/powhash/lib/digest"
)

var ErrAlreadyResolved = errors.New("dispatch: future was already resolved")

// Result is what a job delivers to its sink: a digest on success, or an error
// and a zero digest on failure.
type Result struct {
	Digest digest.Digest
	Err    error
}

func (r Result) OK() bool { return r.Err == nil }

// Sink receives the result of exactly one job. The dispatcher calls Complete
// once per job. An error returned by Complete is reported to the fault
// handler.
type Sink interface {
	Complete(Result) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Result) error

func (f SinkFunc) Complete(r Result) error { return f(r) }

// Callback is the node-style completion shape: a digest or an error.
type Callback func(digest.Digest, error)

func (f Callback) Complete(r Result) error {
	f(r.Digest, r.Err)
	return nil
}

// Future is a single-resolution Sink that can be waited on.
type Future struct {
	done chan struct{}
	once sync.Once
	res  Result
}

func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Complete resolves the future. Only the first call has an effect; later
// calls return ErrAlreadyResolved.
func (f *Future) Complete(r Result) error {
	resolved := false
	f.once.Do(func() {
		f.res = r
		close(f.done)
		resolved = true
	})

	if !resolved {
		return ErrAlreadyResolved
	}
	return nil
}

// Done is closed once the future has been resolved.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the resolved result, and false if the future is still
// pending.
func (f *Future) Result() (Result, bool) {
	select {
	case <-f.done:
		return f.res, true
	default:
		return Result{}, false
	}
}

// Wait blocks until the future resolves or ctx is done. Giving up on a future
// does not stop the job behind it.
func (f *Future) Wait(ctx context.Context) (digest.Digest, error) {
	select {
	case <-f.done:
		return f.res.Digest, f.res.Err
	case <-ctx.Done():
		return digest.Digest{}, ctx.Err()
	}
}
