package version

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/fatih/color"
)

// Version information for the dffi CLI. The variables can be overridden at
// build time via -ldflags.
var (
	// Version is the semantic version of the CLI.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

// DescFormat is the newest type description format this build reads.
// Descriptions declaring a version inside DescConstraint are accepted.
const (
	DescFormat     = "1.1.0"
	DescConstraint = "^1"
)

var (
	majorColor = color.New(color.FgYellow, color.Bold)
	minorColor = color.New(color.FgGreen, color.Bold)
	patchColor = color.New(color.FgBlue, color.Bold)
)

// Semver parses Version.
func Semver() (*semver.Version, error) {
	v, err := semver.NewVersion(Version)
	if err != nil {
		return nil, fmt.Errorf("version %q: %w", Version, err)
	}
	return v, nil
}

// Colored renders Version with one color per component. Versions that do
// not parse are returned as is.
func Colored() string {
	v, err := Semver()
	if err != nil {
		return Version
	}
	s := majorColor.Sprint(v.Major()) + "." + minorColor.Sprint(v.Minor()) + "." + patchColor.Sprint(v.Patch())
	if v.Prerelease() != "" {
		s += "-" + v.Prerelease()
	}
	if v.Metadata() != "" {
		s += "+" + v.Metadata()
	}
	return s
}
