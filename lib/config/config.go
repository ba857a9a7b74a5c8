// Package config parses the powhashd configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	"k8s.io/apimachinery/pkg/util/yaml"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/TecharoHQ/powhash"
	"github.com/TecharoHQ/powhash/lib/digest"
)

var (
	ErrUnknownFastAlgorithm = errors.New("config.Engine: unknown fast algorithm")
	ErrUnknownFullAlgorithm = errors.New("config.Engine: unknown full algorithm")
	ErrFullNotMemoryHard    = errors.New("config.Engine: full algorithm must be memory-hard")
	ErrNegativeWorkers      = errors.New("config.Dispatcher: workers must not be negative")
	ErrNegativeMaxPending   = errors.New("config.Dispatcher: max_pending must not be negative")
	ErrBadResultTTL         = errors.New("config.Results: ttl must be a positive duration")
)

// Engine names the registered digest algorithms behind each variant.
type Engine struct {
	Fast string `json:"fast"`
	Full string `json:"full"`
}

func (e Engine) Valid() error {
	var errs []error

	if _, ok := digest.Get(e.Fast); !ok {
		errs = append(errs, fmt.Errorf("%w: %q, known: %v", ErrUnknownFastAlgorithm, e.Fast, digest.Algorithms()))
	}

	if alg, ok := digest.Get(e.Full); !ok {
		errs = append(errs, fmt.Errorf("%w: %q, known: %v", ErrUnknownFullAlgorithm, e.Full, digest.Algorithms()))
	} else if !alg.MemoryHard {
		errs = append(errs, fmt.Errorf("%w: %q", ErrFullNotMemoryHard, e.Full))
	}

	return errors.Join(errs...)
}

// Build returns the digest engine this section describes.
func (e Engine) Build() (*digest.Engine, error) {
	return digest.New(e.Fast, e.Full)
}

// Dispatcher sizes the asynchronous worker pool. Zero workers means one per
// CPU; zero max_pending means the queue is unbounded.
type Dispatcher struct {
	Workers    int `json:"workers"`
	MaxPending int `json:"max_pending"`
}

func (d Dispatcher) Valid() error {
	var errs []error

	if d.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrNegativeWorkers, d.Workers))
	}

	if d.MaxPending < 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrNegativeMaxPending, d.MaxPending))
	}

	return errors.Join(errs...)
}

type fileResults struct {
	TTL string `json:"ttl"`
}

type fileConfig struct {
	Engine     Engine      `json:"engine"`
	Dispatcher Dispatcher  `json:"dispatcher"`
	Store      Store       `json:"store"`
	Results    fileResults `json:"results"`
	RateLimit  RateLimit   `json:"rate_limit"`
}

func defaultFileConfig() *fileConfig {
	return &fileConfig{
		Engine: Engine{
			Fast: digest.DefaultFast,
			Full: digest.DefaultFull,
		},
		Dispatcher: Dispatcher{
			MaxPending: powhash.DefaultMaxPending,
		},
		Store: Store{
			Backend: "memory",
		},
		Results: fileResults{
			TTL: powhash.DefaultResultTTL.String(),
		},
	}
}

func (c *fileConfig) Valid() error {
	var errs []error

	if err := c.Engine.Valid(); err != nil {
		errs = append(errs, err)
	}

	if err := c.Dispatcher.Valid(); err != nil {
		errs = append(errs, err)
	}

	if err := c.Store.Valid(); err != nil {
		errs = append(errs, err)
	}

	if d, err := time.ParseDuration(c.Results.TTL); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("%w: %q", ErrBadResultTTL, c.Results.TTL))
	}

	if err := c.RateLimit.Valid(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) != 0 {
		return fmt.Errorf("config is not valid:\n%w", errors.Join(errs...))
	}

	return nil
}

// Config is a validated powhashd configuration.
type Config struct {
	Engine     Engine
	Dispatcher Dispatcher
	Store      Store
	ResultTTL  time.Duration
	RateLimit  RateLimit
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c, err := convert(defaultFileConfig())
	if err != nil {
		panic(fmt.Sprintf("[unexpected] default config is invalid: %v", err))
	}
	return c
}

// Load parses a YAML (or JSON) config from fin. Keys that are missing keep
// their default values. fname is only used in error messages.
func Load(fin io.Reader, fname string) (*Config, error) {
	c := defaultFileConfig()

	if err := yaml.NewYAMLToJSONDecoder(fin).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("can't parse config YAML %s: %w", fname, err)
	}

	return convert(c)
}

func convert(c *fileConfig) (*Config, error) {
	if err := c.Valid(); err != nil {
		return nil, err
	}

	ttl, _ := time.ParseDuration(c.Results.TTL)

	return &Config{
		Engine:     c.Engine,
		Dispatcher: c.Dispatcher,
		Store:      c.Store,
		ResultTTL:  ttl,
		RateLimit:  c.RateLimit,
	}, nil
}

// YAML renders c in the file format Load reads.
func (c *Config) YAML() ([]byte, error) {
	return sigsyaml.Marshal(fileConfig{
		Engine:     c.Engine,
		Dispatcher: c.Dispatcher,
		Store:      c.Store,
		Results:    fileResults{TTL: c.ResultTTL.String()},
		RateLimit:  c.RateLimit,
	})
}
