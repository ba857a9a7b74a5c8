// Package all imports every store backend so that they register themselves.
package all

import (
	_ "github.com/TecharoHQ/powhash/lib/store/bbolt"
	_ "github.com/TecharoHQ/powhash/lib/store/memory"
	_ "github.com/TecharoHQ/powhash/lib/store/valkey"
)
