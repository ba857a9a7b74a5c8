package valkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	valkey "github.com/redis/go-redis/v9"

	"github.com/TecharoHQ/powhash/lib/store"
)

var (
	ErrNoURL      = errors.New("valkey.Config: no URL defined")
	ErrBadURL     = errors.New("valkey.Config: URL is invalid")
	ErrBadTimeout = errors.New("valkey.Config: dial_timeout must be a positive duration")
	ErrBadPrefix  = errors.New("valkey.Config: key_prefix must not contain whitespace")
)

// DefaultKeyPrefix namespaces powhash keys inside a shared valkey database.
const DefaultKeyPrefix = "powhash:"

func init() {
	store.Register("valkey", Factory{})
}

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

// Build connects to valkey and pings it once. A server that cannot be reached
// at startup is a configuration error, not something to retry later.
func (Factory) Build(ctx context.Context, data json.RawMessage) (store.Interface, error) {
	config, err := parse(data)
	if err != nil {
		return nil, err
	}

	opts, err := valkey.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	if config.DialTimeout != "" {
		opts.DialTimeout, _ = time.ParseDuration(config.DialTimeout)
	}

	rdb := valkey.NewClient(opts)

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("can't ping valkey instance: %w", err)
	}

	prefix := DefaultKeyPrefix
	if config.KeyPrefix != nil {
		prefix = *config.KeyPrefix
	}

	return &Store{
		rdb:    rdb,
		prefix: prefix,
	}, nil
}

func (Factory) Valid(data json.RawMessage) error {
	_, err := parse(data)
	return err
}

type Config struct {
	// URL is a redis:// or rediss:// URL.
	URL string `json:"url"`

	// KeyPrefix is put in front of every key. Nil means DefaultKeyPrefix; an
	// empty string disables prefixing.
	KeyPrefix *string `json:"key_prefix,omitempty"`

	DialTimeout string `json:"dial_timeout,omitempty"`
}

func (c Config) Valid() error {
	var errs []error

	if c.URL == "" {
		errs = append(errs, ErrNoURL)
	} else if _, err := valkey.ParseURL(c.URL); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrBadURL, err))
	}

	if c.KeyPrefix != nil {
		for _, r := range *c.KeyPrefix {
			if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
				errs = append(errs, ErrBadPrefix)
				break
			}
		}
	}

	if c.DialTimeout != "" {
		if d, err := time.ParseDuration(c.DialTimeout); err != nil || d <= 0 {
			errs = append(errs, ErrBadTimeout)
		}
	}

	if len(errs) != 0 {
		return fmt.Errorf("valkey.Config: invalid config: %w", errors.Join(errs...))
	}

	return nil
}
