package model

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/evergreen-ci/bomtool"
)

// Component indexes into a SemanticVersion, ordered from most to least
// significant.
const (
	MajorIndex = iota
	MinorIndex
	PatchIndex
)

// versionRegexp matches the numeric triple at the end of a version or tag
// string, e.g. "1.2.3" or "version-1.2.3".
var versionRegexp = regexp.MustCompile(`^\D*(\d+)\.(\d+)\.(\d+)$`)

// SemanticVersion is an immutable dotted three-part version.
type SemanticVersion struct {
	Major int
	Minor int
	Patch int
}

// ParseSemanticVersion extracts a SemanticVersion from a version string or
// a tag following the tag naming convention. It returns a FormatError when
// the string does not match.
func ParseSemanticVersion(s string) (SemanticVersion, error) {
	m := versionRegexp.FindStringSubmatch(s)
	if m == nil {
		return SemanticVersion{}, bomtool.NewFormatError("'%s' is not a valid semantic version or version tag", s)
	}

	// The regexp guarantees the captures are numeric.
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])

	return SemanticVersion{Major: major, Minor: minor, Patch: patch}, nil
}

func (v SemanticVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Tag renders the version in the git tag naming convention.
func (v SemanticVersion) Tag() string {
	return bomtool.VersionTagPrefix + v.String()
}

// Next returns a new version with the given component incremented and all
// lower-order components reset to zero. The receiver is not modified.
func (v SemanticVersion) Next(index int) SemanticVersion {
	switch index {
	case MajorIndex:
		return SemanticVersion{Major: v.Major + 1}
	case MinorIndex:
		return SemanticVersion{Major: v.Major, Minor: v.Minor + 1}
	case PatchIndex:
		return SemanticVersion{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
	}

	// Callers pass one of the component index constants.
	panic(fmt.Sprintf("invalid semantic version component index %d", index))
}

// Compare imposes a total order on versions: major, then minor, then patch.
// It returns a negative number when v sorts before other, zero when they
// are equal, and a positive number otherwise.
func (v SemanticVersion) Compare(other SemanticVersion) int {
	if v.Major != other.Major {
		return v.Major - other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor - other.Minor
	}
	return v.Patch - other.Patch
}

// LessThan reports whether v sorts strictly before other.
func (v SemanticVersion) LessThan(other SemanticVersion) bool {
	return v.Compare(other) < 0
}
