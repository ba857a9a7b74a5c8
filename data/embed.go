// Package data holds files compiled into the powhash binaries.
package data

import "embed"

var (
	//go:embed powhash.yaml
	Config embed.FS
)
