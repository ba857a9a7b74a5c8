package config

import (
	"github.com/TecharoHQ/powhash/internal"
)

// RateLimit configures the per-client limit on API requests. A zero
// requests_per_second turns limiting off.
type RateLimit struct {
	RequestsPerSecond float64  `json:"requests_per_second"`
	Burst             int      `json:"burst"`
	Exempt            []string `json:"exempt,omitempty"`
}

func (r RateLimit) Enabled() bool {
	return r.RequestsPerSecond != 0
}

func (r RateLimit) Valid() error {
	if !r.Enabled() {
		return nil
	}

	_, err := r.Build()
	return err
}

// Build returns the limiter, or nil when limiting is off.
func (r RateLimit) Build() (*internal.RateLimiter, error) {
	if !r.Enabled() {
		return nil, nil
	}

	return internal.NewRateLimiter(r.RequestsPerSecond, r.Burst, r.Exempt)
}
