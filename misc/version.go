// Package misc keeps build time information.
package misc

// Set with -ldflags "-X jrr/misc.version=... -X jrr/misc.gitHash=..."
var (
	version = "dev"
	gitHash = "unknown"
)

const appName = "jrr"

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

func GetGitHash() string {
	return gitHash
}
