package version

// version is overridden at build time with
// -ldflags "-X github.com/cbodonnell/tilesync/pkg/version.version=<version>"
var version = "dev"

// Get returns the build version.
func Get() string {
	return version
}
