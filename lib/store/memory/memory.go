// Package memory is the default store backend. Values live in process memory
// and are lost on restart; every powhashd instance has its own.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/TecharoHQ/powhash/decaymap"
	"github.com/TecharoHQ/powhash/lib/store"
)

const cleanupInterval = 5 * time.Minute

type factory struct{}

func (factory) Build(ctx context.Context, _ json.RawMessage) (store.Interface, error) {
	return New(ctx), nil
}

func (factory) Valid(json.RawMessage) error { return nil }

func init() {
	store.Register("memory", factory{})
}

type impl struct {
	values *decaymap.Impl[string, []byte]
	cancel context.CancelFunc
}

// New creates an in-memory store. Expired values are swept every five minutes
// until ctx is done or the store is closed.
func New(ctx context.Context) store.Interface {
	ctx, cancel := context.WithCancel(ctx)

	result := &impl{
		values: decaymap.New[string, []byte](),
		cancel: cancel,
	}

	go result.cleanupThread(ctx)

	return result
}

func (i *impl) Delete(_ context.Context, key string) error {
	if !i.values.Delete(key) {
		return fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}

	return nil
}

func (i *impl) Get(_ context.Context, key string) ([]byte, error) {
	result, ok := i.values.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}

	return bytes.Clone(result), nil
}

func (i *impl) Set(_ context.Context, key string, value []byte, expiry time.Duration) error {
	if value == nil {
		value = []byte{}
	}

	i.values.Set(key, bytes.Clone(value), expiry)
	return nil
}

func (i *impl) Close() error {
	i.cancel()
	return nil
}

func (i *impl) cleanupThread(ctx context.Context) {
	t := time.NewTicker(cleanupInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			i.values.Cleanup()
		}
	}
}
