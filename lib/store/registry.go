package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

var (
	registry map[string]Factory = map[string]Factory{}
	regLock  sync.RWMutex
)

// Factory validates a backend's JSON parameters and builds the backend from
// them.
type Factory interface {
	Build(ctx context.Context, config json.RawMessage) (Interface, error)
	Valid(config json.RawMessage) error
}

func Register(name string, impl Factory) {
	regLock.Lock()
	defer regLock.Unlock()

	registry[name] = impl
}

func Get(name string) (Factory, bool) {
	regLock.RLock()
	defer regLock.RUnlock()
	result, ok := registry[name]
	return result, ok
}

// Backends lists the registered backend names in sorted order.
func Backends() []string {
	regLock.RLock()
	defer regLock.RUnlock()
	var result []string
	for name := range registry {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Build looks up backend and builds it from config. Background work started
// by the backend stops when ctx is done or the store is closed.
func Build(ctx context.Context, backend string, config json.RawMessage) (Interface, error) {
	f, ok := Get(backend)
	if !ok {
		return nil, fmt.Errorf("%w: %q, known backends: %v", ErrUnknownBackend, backend, Backends())
	}

	if len(config) == 0 {
		config = json.RawMessage("{}")
	}

	if err := f.Valid(config); err != nil {
		return nil, err
	}

	return f.Build(ctx, config)
}
