// Package build carries version metadata injected at compile time via
// -ldflags, for example:
//
//	go build -ldflags "-X rfsynth/pkg/build.buildName=rfsynth \
//	                   -X rfsynth/pkg/build.buildVersion=0.1.0"
//
// Development builds without ldflags fall back to "unknown" values.
package build

type Info struct {
	Name    string // Application name
	Time    string // Build timestamp
	Commit  string // Git commit hash
	Version string // Semantic version
}

// Populated by -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string

	info = Info{
		Name:    "rfsynth",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "unknown",
	}
)

// Initialize copies whatever ldflags values were provided into the build
// info, keeping the development defaults for anything missing. Call once,
// early in startup.
func Initialize() {
	if buildName != "" {
		info.Name = buildName
	}
	if buildTime != "" {
		info.Time = buildTime
	}
	if buildCommit != "" {
		info.Commit = buildCommit
	}
	if buildVersion != "" {
		info.Version = buildVersion
	}
}

// GetInfo returns the build information.
func GetInfo() Info {
	return info
}
