package model

// RepositorySpec describes where one source repository lives for a build.
// Specs are immutable: a changed target revision yields a new spec.
type RepositorySpec struct {
	// Name uniquely identifies the repository; it is also the default
	// local directory name and, absent a mapping in the repository
	// database, the published service name.
	Name string

	// GitDir is the local working copy path.
	GitDir string

	// Origin is the URL or filesystem path the repository is cloned from.
	Origin string

	// Upstream is the authoritative upstream location when Origin is a
	// fork. Empty when Origin is already authoritative.
	Upstream string

	// CommitID pins the working copy to an exact commit, when resolving
	// repositories from a previously published manifest.
	CommitID string

	// Branch pins the working copy to a branch, when resolving
	// repositories by branch.
	Branch string
}

// RepositorySummary snapshots the observed state of one local working copy.
type RepositorySummary struct {
	// CommitID is the commit the working copy is at.
	CommitID string

	// Tag is the most recent reachable version tag.
	Tag string

	// Version is the semantic version derived from Tag and the commits
	// since it.
	Version string

	// PrevVersion is the version before the most recent bump; equal to
	// Version when the working copy sits exactly at Tag.
	PrevVersion string

	// CommitMessages are the messages between PrevVersion and Version,
	// most recent first.
	CommitMessages []string
}

// SourceInfo pairs a build number with a repository summary. One is
// produced per repository per build invocation.
type SourceInfo struct {
	BuildNumber string
	Summary     RepositorySummary
}

// BuildVersion is the version recorded for the repository's service in a
// manifest: the derived semantic version suffixed with the build number.
func (i SourceInfo) BuildVersion() string {
	return i.Summary.Version + "-" + i.BuildNumber
}
