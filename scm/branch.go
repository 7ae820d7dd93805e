package scm

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/evergreen-ci/bomtool"
	"github.com/evergreen-ci/bomtool/model"
	"github.com/evergreen-ci/bomtool/thirdparty"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
)

// Owner sentinels: a configured owner of "upstream" or "default" resolves
// to the repository's own declared owner rather than a fork.
const (
	OwnerUpstream = "upstream"
	OwnerDefault  = "default"
)

// BranchSourceCodeManager resolves repositories from the repository
// database at a configured git branch.
type BranchSourceCodeManager struct {
	baseManager
}

// NewBranchSourceCodeManager constructs a branch-resolving manager rooted
// at rootDir. The settings must name a git branch and owner.
func NewBranchSourceCodeManager(settings *bomtool.Settings, db *Database, rootDir string, git *thirdparty.GitRunner) (*BranchSourceCodeManager, error) {
	if settings.GitBranch == "" {
		return nil, bomtool.NewConfigError("no git branch is configured")
	}
	if settings.GitOwner == "" {
		return nil, bomtool.NewConfigError("no git owner is configured")
	}
	return &BranchSourceCodeManager{
		baseManager: baseManager{settings: settings, db: db, rootDir: rootDir, git: git},
	}, nil
}

// DetermineOrigin resolves the origin for name using the configured owner.
func (m *BranchSourceCodeManager) DetermineOrigin(name string) (string, error) {
	return m.determineOriginForOwner(name, m.settings.GitOwner)
}

// DetermineUpstream resolves the authoritative upstream location for name,
// regardless of the configured owner.
func (m *BranchSourceCodeManager) DetermineUpstream(name string) (string, error) {
	return m.determineOriginForOwner(name, OwnerDefault)
}

func (m *BranchSourceCodeManager) determineOriginForOwner(name, owner string) (string, error) {
	entry, err := m.db.Entry(name)
	if err != nil {
		return "", err
	}

	if owner == OwnerUpstream || owner == OwnerDefault {
		owner = entry.Owner
		if owner == "" {
			owner = m.db.DefaultGitOwner
		}
		if owner == "" {
			return "", bomtool.NewConfigError(
				"'%s' does not specify 'default_git_owner'; cannot determine owner for '%s'",
				m.db.Path(), name)
		}
	}

	hostname := entry.OriginHostname
	if hostname == "" {
		hostname = m.db.DefaultOriginHostname
	}
	if hostname == "" {
		return "", bomtool.NewConfigError(
			"'%s' does not specify 'default_origin_hostname'; cannot determine git hostname for '%s'",
			m.db.Path(), name)
	}

	if m.settings.GitFilesystemRoot != "" {
		return filepath.Join(m.settings.GitFilesystemRoot, hostname, owner, name), nil
	}
	if m.settings.GitPullSSH {
		return fmt.Sprintf("git@%s:%s/%s", hostname, owner, name), nil
	}
	return fmt.Sprintf("https://%s/%s/%s", hostname, owner, name), nil
}

// MakeRepositorySpec resolves name into a spec pinned to the configured
// branch.
func (m *BranchSourceCodeManager) MakeRepositorySpec(name string) (model.RepositorySpec, error) {
	origin, err := m.DetermineOrigin(name)
	if err != nil {
		return model.RepositorySpec{}, err
	}
	upstream, err := m.DetermineUpstream(name)
	if err != nil {
		return model.RepositorySpec{}, err
	}

	return model.RepositorySpec{
		Name:     name,
		GitDir:   m.gitDirFor(name),
		Origin:   origin,
		Upstream: upstream,
		Branch:   m.settings.GitBranch,
	}, nil
}

// EnsureLocalRepository clones the repository at the configured branch if
// no working copy exists yet. An existing working copy is left alone; use
// CheckRepositoryIsCurrent to verify it.
func (m *BranchSourceCodeManager) EnsureLocalRepository(ctx context.Context, repo model.RepositorySpec) error {
	if m.haveGitDir(repo.GitDir) {
		logEnsured(repo, "exists")
		return nil
	}

	branch := repo.Branch
	if branch == "" {
		branch = m.settings.GitBranch
	}
	if err := m.git.Clone(ctx, repo, branch, m.settings.EffectiveFallbackBranch()); err != nil {
		return err
	}
	logEnsured(repo, "cloned")
	return nil
}

// CheckRepositoryIsCurrent fails with an UnexpectedError when the working
// copy is not at the configured branch.
func (m *BranchSourceCodeManager) CheckRepositoryIsCurrent(ctx context.Context, repo model.RepositorySpec) error {
	branch, err := m.git.CurrentBranch(ctx, repo.GitDir)
	if err != nil {
		return err
	}
	if branch != m.settings.GitBranch {
		return bomtool.NewUnexpectedError("'%s' is at the wrong branch '%s', expected '%s'",
			repo.GitDir, branch, m.settings.GitBranch)
	}
	return nil
}

// LookupSourceInfo collects the working copy's summary paired with this
// invocation's build number.
func (m *BranchSourceCodeManager) LookupSourceInfo(ctx context.Context, repo model.RepositorySpec) (model.SourceInfo, error) {
	info, err := m.lookupSourceInfo(ctx, repo)
	if err != nil {
		return model.SourceInfo{}, err
	}
	if m.settings.BuildNumber == "" {
		grip.Debug(message.Fields{
			"message":      "using default build number",
			"repository":   repo.Name,
			"build_number": info.BuildNumber,
		})
	}
	return info, nil
}

// FilterSourceRepositories resolves specs for every database entry passing
// the predicate.
func (m *BranchSourceCodeManager) FilterSourceRepositories(pred Predicate) ([]model.RepositorySpec, error) {
	return m.filterSourceRepositories(pred, m.MakeRepositorySpec)
}
