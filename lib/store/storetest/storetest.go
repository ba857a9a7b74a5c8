// Package storetest holds the conformance tests every store backend must pass.
package storetest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/TecharoHQ/powhash/lib/store"
)

// Common validates config, builds a store from f and runs the conformance
// cases against it. The store is closed once every case has finished.
func Common(t *testing.T, f store.Factory, config json.RawMessage) {
	t.Helper()

	if err := f.Valid(config); err != nil {
		t.Fatal(err)
	}

	s, err := f.Build(t.Context(), config)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("can't close store: %v", err)
		}
	})

	for _, tt := range []struct {
		name string
		doer func(t *testing.T, s store.Interface) error
		err  error
	}{
		{
			name: "basic get set delete",
			doer: func(t *testing.T, s store.Interface) error {
				if _, err := s.Get(t.Context(), t.Name()); !errors.Is(err, store.ErrNotFound) {
					t.Errorf("wanted %s to not exist in store but it exists anyways", t.Name())
				}

				if err := s.Set(t.Context(), t.Name(), []byte(t.Name()), 5*time.Minute); err != nil {
					return err
				}

				val, err := s.Get(t.Context(), t.Name())
				if errors.Is(err, store.ErrNotFound) {
					t.Errorf("wanted %s to exist in store but it does not: %v", t.Name(), err)
				} else if err != nil {
					t.Error(err)
				}

				if !bytes.Equal(val, []byte(t.Name())) {
					t.Logf("want: %q", t.Name())
					t.Logf("got:  %q", string(val))
					t.Error("wrong value returned")
				}

				if err := s.Delete(t.Context(), t.Name()); err != nil {
					return err
				}

				if _, err := s.Get(t.Context(), t.Name()); !errors.Is(err, store.ErrNotFound) {
					t.Error("wanted test to not exist in store but it exists anyways")
				}

				return s.Delete(t.Context(), t.Name())
			},
			err: store.ErrNotFound,
		},
		{
			name: "overwrite",
			doer: func(t *testing.T, s store.Interface) error {
				for _, val := range []string{"queued", "completed"} {
					if err := s.Set(t.Context(), t.Name(), []byte(val), 5*time.Minute); err != nil {
						return err
					}
				}

				val, err := s.Get(t.Context(), t.Name())
				if err != nil {
					return err
				}

				if string(val) != "completed" {
					t.Errorf("wanted the second write to win, got %q", val)
				}

				return nil
			},
		},
		{
			name: "empty value",
			doer: func(t *testing.T, s store.Interface) error {
				if err := s.Set(t.Context(), t.Name(), []byte{}, 5*time.Minute); err != nil {
					return err
				}

				val, err := s.Get(t.Context(), t.Name())
				if err != nil {
					return err
				}

				if len(val) != 0 {
					t.Errorf("wanted an empty value, got %q", val)
				}

				return nil
			},
		},
		{
			name: "binary value",
			doer: func(t *testing.T, s store.Interface) error {
				want := make([]byte, 256)
				for i := range want {
					want[i] = byte(i)
				}

				if err := s.Set(t.Context(), t.Name(), want, 5*time.Minute); err != nil {
					return err
				}

				got, err := s.Get(t.Context(), t.Name())
				if err != nil {
					return err
				}

				if !bytes.Equal(got, want) {
					t.Error("binary value was not returned byte for byte")
				}

				return nil
			},
		},
		{
			name: "concurrent writers",
			doer: func(t *testing.T, s store.Interface) error {
				const n = 16

				var wg sync.WaitGroup
				errs := make([]error, n)
				for i := range n {
					wg.Add(1)
					go func() {
						defer wg.Done()
						key := fmt.Sprintf("%s/%d", t.Name(), i)
						errs[i] = s.Set(t.Context(), key, []byte(key), 5*time.Minute)
					}()
				}
				wg.Wait()

				if err := errors.Join(errs...); err != nil {
					return err
				}

				for i := range n {
					key := fmt.Sprintf("%s/%d", t.Name(), i)
					val, err := s.Get(t.Context(), key)
					if err != nil {
						return err
					}

					if string(val) != key {
						t.Errorf("key %q: got %q", key, val)
					}
				}

				return nil
			},
		},
		{
			name: "expires",
			doer: func(t *testing.T, s store.Interface) error {
				if err := s.Set(t.Context(), t.Name(), []byte(t.Name()), 150*time.Millisecond); err != nil {
					return err
				}

				//nosleep:bypass backends expire on their own clock, there is nothing to fake.
				time.Sleep(155 * time.Millisecond)

				if _, err := s.Get(t.Context(), t.Name()); !errors.Is(err, store.ErrNotFound) {
					t.Errorf("wanted %s to not exist in store but it exists anyways", t.Name())
				}

				return nil
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.doer(t, s); !errors.Is(err, tt.err) {
				t.Logf("want: %v", tt.err)
				t.Logf("got:  %v", err)
				t.Error("wrong error")
			}
		})
	}
}
