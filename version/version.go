// Package version parses and compares the version of the search service under test.
package version

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
)

// EnvVar overrides the default expected es version
const EnvVar = "FTR_ES_VERSION"

// DefaultVersion is the es version expected when none is configured
const DefaultVersion = "8.15.0"

// Version is a parsed es version. The zero value is not valid; use Parse.
type Version struct {
	v *semver.Version
}

// Parse parses s, accepting partial versions such as "8.1" and an optional "v" prefix
func Parse(s string) (Version, error) {
	v, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("unable to parse es version [%s]: %w", s, err)
	}
	return Version{v: v}, nil
}

// MustParse is like Parse but panics on invalid input
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Default returns the version from FTR_ES_VERSION, or DefaultVersion when it is unset
func Default() (Version, error) {
	if s := os.Getenv(EnvVar); s != "" {
		return Parse(s)
	}
	return Parse(DefaultVersion)
}

// IsZero reports whether v was never parsed
func (v Version) IsZero() bool {
	return v.v == nil
}

// String returns the normalized version, eg. "8.1.0-SNAPSHOT"
func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.String()
}

// Original returns the string v was parsed from
func (v Version) Original() string {
	if v.v == nil {
		return ""
	}
	return v.v.Original()
}

// Eql reports whether s parses to the same release as v. Build metadata is
// ignored and prereleases count as the release they precede, as in Matches, so
// "8.15.0-SNAPSHOT" equals "8.15.0".
func (v Version) Eql(s string) bool {
	if v.v == nil {
		return false
	}
	other, err := semver.NewVersion(s)
	if err != nil {
		return false
	}
	return release(v.v).Equal(release(other))
}

// release drops the prerelease of v
func release(v *semver.Version) *semver.Version {
	r, err := v.SetPrerelease("")
	if err != nil {
		return v
	}
	return &r
}

// Matches reports whether v satisfies constraint, eg. ">=8.0.0 <9". Prereleases
// such as snapshots are treated as the release they precede.
func (v Version) Matches(constraint string) (bool, error) {
	if v.v == nil {
		return false, fmt.Errorf("cannot match empty version against %q", constraint)
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("invalid es version requirement %q: %w", constraint, err)
	}
	return c.Check(release(v.v)), nil
}
