package bomtool

import (
	"sync"
	"time"
)

const (
	// ClientVersion is the version of the bomtool binary itself. It is
	// unrelated to the versions bomtool stamps into the manifests it builds.
	ClientVersion = "0.9.0"

	// DefaultConfigFile is the settings file bomtool looks for in the
	// user's home directory and next to the binary.
	DefaultConfigFile = ".bomtool.yml"

	// VersionTagPrefix is the git tag naming convention for release
	// versions, e.g. "version-1.2.3".
	VersionTagPrefix = "version-"

	// TimestampFormat renders the build time recorded in a manifest.
	TimestampFormat = "2006-01-02 15:04:05"

	// DefaultWorkers bounds the per-repository fan-out when a command is
	// not restricted to one repository at a time.
	DefaultWorkers = 8

	// DefaultFallbackBranch is used when cloning and the requested branch
	// does not exist in a particular repository.
	DefaultFallbackBranch = "master"
)

var (
	defaultBuildNumber     string
	defaultBuildNumberOnce sync.Once
)

// DefaultBuildNumber returns the process-wide build number used when no
// build number is configured. It is derived from the time the process first
// asked for it, so every repository registered in one invocation shares it.
func DefaultBuildNumber() string {
	defaultBuildNumberOnce.Do(func() {
		defaultBuildNumber = time.Now().UTC().Format("20060102150405")
	})
	return defaultBuildNumber
}
