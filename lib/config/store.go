package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TecharoHQ/powhash/lib/store"
	_ "github.com/TecharoHQ/powhash/lib/store/all"
)

var (
	ErrNoStoreBackend      = errors.New("config.Store: no backend defined")
	ErrUnknownStoreBackend = errors.New("config.Store: unknown backend")
)

// Store selects where asynchronous job results are kept.
type Store struct {
	Backend    string          `json:"backend"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

func (s *Store) parameters() json.RawMessage {
	if len(s.Parameters) == 0 {
		return json.RawMessage("{}")
	}
	return s.Parameters
}

func (s *Store) Valid() error {
	if len(s.Backend) == 0 {
		return ErrNoStoreBackend
	}

	fac, ok := store.Get(s.Backend)
	if !ok {
		return fmt.Errorf("%w: %q, known: %v", ErrUnknownStoreBackend, s.Backend, store.Backends())
	}

	return fac.Valid(s.parameters())
}

// Build opens the configured backend.
func (s *Store) Build(ctx context.Context) (store.Interface, error) {
	return store.Build(ctx, s.Backend, s.parameters())
}
