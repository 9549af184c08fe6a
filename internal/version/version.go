// SPDX-License-Identifier: MIT

// Package version exposes build-time version metadata.
package version

var (
	// Version is the semantic version, overridden at build time via ldflags.
	Version = "v0.4.0"
	// Commit is the git commit hash the binary was built from.
	Commit = "none"
	// BuildDate is the UTC build timestamp.
	BuildDate = "unknown"
)
