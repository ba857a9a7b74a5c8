// Package powhash holds the constants shared by the powhash daemon, its CLI and
// its libraries.
package powhash

import "time"

// Version is the current version of powhash.
//
// This variable is set at build time using the -X linker flag. If not set,
// it defaults to "devel".
var Version = "devel"

// BasePrefix is a global prefix for all powhash endpoints. Can be emptied to
// remove the prefix entirely.
var BasePrefix = ""

// APIPrefix is the path prefix of every API route.
const APIPrefix = "/api/"

// DefaultMaxPending is the default upper bound on queued asynchronous jobs.
const DefaultMaxPending = 1024

// DefaultResultTTL is how long a finished asynchronous job result stays
// readable in the result store.
const DefaultResultTTL = time.Hour

// DefaultMaxBodySize caps the size of a single input buffer accepted over HTTP.
const DefaultMaxBodySize = 16 << 20
