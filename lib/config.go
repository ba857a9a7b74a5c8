package lib

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/TecharoHQ/powhash/data"
	"github.com/TecharoHQ/powhash/lib/config"
)

// LoadConfigOrDefault loads the config file at fname, or the embedded default
// config when fname is empty.
func LoadConfigOrDefault(fname string) (*config.Config, error) {
	var fin io.ReadCloser
	var err error

	if fname != "" {
		fin, err = os.Open(fname)
		if err != nil {
			return nil, fmt.Errorf("can't open config file %s: %w", fname, err)
		}
	} else {
		fname = "(data)/powhash.yaml"
		fin, err = data.Config.Open("powhash.yaml")
		if err != nil {
			return nil, fmt.Errorf("[unexpected] can't open builtin config file %s: %w", fname, err)
		}
	}

	defer func(fin io.ReadCloser) {
		if err := fin.Close(); err != nil {
			slog.Error("failed to close config file", "file", fname, "err", err)
		}
	}(fin)

	result, err := config.Load(fin, fname)
	if err != nil {
		return nil, fmt.Errorf("can't load config file %s: %w", fname, err)
	}

	return result, nil
}
