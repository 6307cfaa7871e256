package version

import (
	_ "embed"
)

// Version is the gatherd release string, embedded from the VERSION file at
// build time.
//
//go:embed VERSION
var Version string

// Get returns the running gatherd version.
func Get() string {
	return Version
}
