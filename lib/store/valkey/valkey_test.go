package valkey

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/TecharoHQ/powhash/internal"
	"github.com/TecharoHQ/powhash/lib/store/storetest"
)

func init() {
	if err := internal.UnbreakDocker(); err != nil {
		slog.Debug("can't join the bridge network, valkey may be unreachable", "err", err)
	}
}

func TestImpl(t *testing.T) {
	if os.Getenv("DONT_USE_NETWORK") != "" {
		t.Skip("test requires network egress")
		return
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)

	req := testcontainers.ContainerRequest{
		Image:      "valkey/valkey:8",
		WaitingFor: wait.ForLog("Ready to accept connections"),
	}
	valkeyC, err := testcontainers.GenericContainer(t.Context(), testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	testcontainers.CleanupContainer(t, valkeyC)
	if err != nil {
		t.Fatal(err)
	}

	containerIP, err := valkeyC.ContainerIP(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(Config{
		URL: fmt.Sprintf("redis://%s:6379/0", containerIP),
	})
	if err != nil {
		t.Fatal(err)
	}

	storetest.Common(t, Factory{}, json.RawMessage(data))
}

func TestConfigValid(t *testing.T) {
	ptr := func(s string) *string { return &s }

	for _, tt := range []struct {
		name string
		cfg  Config
		err  error
	}{
		{
			name: "valid",
			cfg:  Config{URL: "redis://localhost:6379/0"},
		},
		{
			name: "valid with prefix and timeout",
			cfg:  Config{URL: "redis://localhost:6379/0", KeyPrefix: ptr("jobs:"), DialTimeout: "2s"},
		},
		{
			name: "empty prefix",
			cfg:  Config{URL: "redis://localhost:6379/0", KeyPrefix: ptr("")},
		},
		{
			name: "no url",
			cfg:  Config{},
			err:  ErrNoURL,
		},
		{
			name: "bad url",
			cfg:  Config{URL: "http://localhost"},
			err:  ErrBadURL,
		},
		{
			name: "prefix with whitespace",
			cfg:  Config{URL: "redis://localhost:6379/0", KeyPrefix: ptr("pow hash:")},
			err:  ErrBadPrefix,
		},
		{
			name: "bad timeout",
			cfg:  Config{URL: "redis://localhost:6379/0", DialTimeout: "0s"},
			err:  ErrBadTimeout,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Valid(); !errors.Is(err, tt.err) {
				t.Errorf("want: %v, got: %v", tt.err, err)
			}
		})
	}
}
