// Package version reports the researchmind release.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the current version with whitespace trimmed.
func Get() string {
	return strings.TrimSpace(versionContent)
}

// UserAgent is sent by HTTP transports when calling worker agents.
func UserAgent() string {
	return "researchmind/" + Get()
}
