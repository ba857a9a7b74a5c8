package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a key does not exist or has expired.
	ErrNotFound = errors.New("store: key not found")

	// ErrCantDecode is returned when a stored value cannot be turned back into
	// what the caller asked for.
	ErrCantDecode = errors.New("store: can't decode value")

	// ErrCantEncode is returned when a value cannot be written in the format
	// the backend uses.
	ErrCantEncode = errors.New("store: can't encode value")

	// ErrBadConfig is returned when a backend's configuration is invalid.
	ErrBadConfig = errors.New("store: configuration is invalid")

	// ErrUnknownBackend is returned by Build for a backend name nobody
	// registered.
	ErrUnknownBackend = errors.New("store: unknown backend")
)

// Interface is the key/value store powhash keeps asynchronous job results in.
// Every value expires; a backend must never return a value past its expiry.
type Interface interface {
	// Delete removes a value. Deleting a key that does not exist returns an
	// error wrapping ErrNotFound.
	Delete(ctx context.Context, key string) error

	// Get returns the value of a key that exists and has not expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value, until expiry
	// has passed.
	Set(ctx context.Context, key string, value []byte, expiry time.Duration) error

	// Close releases the backend's resources and stops its background work.
	Close() error
}

// JSON is a typed view over an Interface that stores values as JSON under a
// shared key prefix.
type JSON[T any] struct {
	Underlying Interface
	Prefix     string
}

func (j *JSON[T]) key(k string) string {
	return j.Prefix + k
}

func (j *JSON[T]) Delete(ctx context.Context, key string) error {
	return j.Underlying.Delete(ctx, j.key(key))
}

func (j *JSON[T]) Get(ctx context.Context, key string) (T, error) {
	var result T

	data, err := j.Underlying.Get(ctx, j.key(key))
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal(data, &result); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrCantDecode, err)
	}

	return result, nil
}

func (j *JSON[T]) Set(ctx context.Context, key string, value T, expiry time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCantEncode, err)
	}

	return j.Underlying.Set(ctx, j.key(key), data, expiry)
}
