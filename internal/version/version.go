// Package version holds the build metadata of the tephra CLI. Every variable
// can be overridden at build time via -ldflags "-X tephra/internal/version.X=...".
package version

import (
	"strings"

	"github.com/fatih/color"
)

var (
	versionMajorColor = color.New(color.FgYellow, color.Bold)
	versionMinorColor = color.New(color.FgGreen, color.Bold)
	versionPatchColor = color.New(color.FgBlue, color.Bold)

	Major = "0"
	Minor = "1"
	Patch = "0"
	// Suffix is appended as is, e.g. "-dev" or "-rc.1".
	Suffix = "-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// GitMessage is an optional git commit message.
	GitMessage = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

// Plain returns the version without colors, for machine-readable output.
func Plain() string {
	return strings.Join([]string{Major, Minor, Patch}, ".") + Suffix
}

// Colored returns the version for the banner. fatih/color drops the escapes
// when stdout is not a terminal.
func Colored() string {
	return versionMajorColor.Sprint(Major) + "." + versionMinorColor.Sprint(Minor) + "." + versionPatchColor.Sprint(Patch) + Suffix
}
