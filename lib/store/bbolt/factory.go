package bbolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/TecharoHQ/powhash/lib/store"
	"go.etcd.io/bbolt"
)

var (
	ErrMissingPath     = errors.New("bbolt: path is missing from config")
	ErrCantWriteToPath = errors.New("bbolt: can't write to path")
	ErrBadTimeout      = errors.New("bbolt: open_timeout must be a positive duration")
)

const defaultOpenTimeout = 5 * time.Second

func init() {
	store.Register("bbolt", Factory{})
}

// Factory builds bbolt stores from their JSON parameters.
type Factory struct{}

func parse(data json.RawMessage) (Config, error) {
	var config Config
	if err := json.Unmarshal([]byte(data), &config); err != nil {
		return config, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	if err := config.Valid(); err != nil {
		return config, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	return config, nil
}

// Build opens (or creates) the database file and starts its cleanup loop.
func (Factory) Build(ctx context.Context, data json.RawMessage) (store.Interface, error) {
	config, err := parse(data)
	if err != nil {
		return nil, err
	}

	timeout := defaultOpenTimeout
	if config.OpenTimeout != "" {
		timeout, _ = time.ParseDuration(config.OpenTimeout)
	}

	bdb, err := bbolt.Open(config.Path, 0600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("can't open bbolt database %s: %w", config.Path, err)
	}

	if err := bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		bdb.Close()
		return nil, fmt.Errorf("can't create %q bucket in %s: %w", bucketName, config.Path, err)
	}

	ctx, cancel := context.WithCancel(ctx)

	result := &Store{
		bdb:    bdb,
		lg:     slog.With("store", "bbolt", "path", config.Path),
		cancel: cancel,
	}

	go result.cleanupThread(ctx)

	return result, nil
}

func (Factory) Valid(data json.RawMessage) error {
	_, err := parse(data)
	return err
}

// Config is the bbolt backend configuration.
type Config struct {
	// Path is the database file. Its directory must be writable.
	Path string `json:"path"`

	// OpenTimeout bounds how long Build waits for the file lock held by
	// another process. Defaults to 5s.
	OpenTimeout string `json:"open_timeout,omitempty"`
}

// Valid checks the configuration, including whether the database directory is
// writable.
func (c Config) Valid() error {
	var errs []error

	if c.Path == "" {
		errs = append(errs, ErrMissingPath)
	} else {
		dir := filepath.Dir(c.Path)
		probe := filepath.Join(dir, ".powhash-write-test")
		if err := os.WriteFile(probe, []byte(""), 0600); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrCantWriteToPath, err))
		}
		os.Remove(probe)
	}

	if c.OpenTimeout != "" {
		if d, err := time.ParseDuration(c.OpenTimeout); err != nil || d <= 0 {
			errs = append(errs, ErrBadTimeout)
		}
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}
