package scm

import (
	"context"

	"github.com/evergreen-ci/bomtool"
	"github.com/evergreen-ci/bomtool/model"
	"github.com/evergreen-ci/bomtool/thirdparty"
	"github.com/pkg/errors"
)

// BomSourceCodeManager resolves repositories from a previously published
// manifest: each service's recorded commit is the pinned revision, and the
// manifest's git prefix (or the service's own override) is the origin.
type BomSourceCodeManager struct {
	baseManager
	doc *model.Document
}

// NewBomSourceCodeManager constructs a manifest-resolving manager over doc.
func NewBomSourceCodeManager(settings *bomtool.Settings, db *Database, rootDir string, git *thirdparty.GitRunner, doc *model.Document) (*BomSourceCodeManager, error) {
	if doc == nil {
		return nil, bomtool.NewConfigError("no manifest is bound to resolve repositories from")
	}
	return &BomSourceCodeManager{
		baseManager: baseManager{settings: settings, db: db, rootDir: rootDir, git: git},
		doc:         doc,
	}, nil
}

// Document returns the manifest repositories resolve from.
func (m *BomSourceCodeManager) Document() *model.Document { return m.doc }

// MakeRepositorySpec resolves a repository (or service) name into a spec
// pinned to the commit the manifest records for it.
func (m *BomSourceCodeManager) MakeRepositorySpec(name string) (model.RepositorySpec, error) {
	service := m.db.ServiceName(name)
	entry, ok := m.doc.Services[service]
	if !ok {
		// The name may already be a service name for a repository the
		// database does not declare.
		entry, ok = m.doc.Services[name]
		service = name
	}
	if !ok {
		return model.RepositorySpec{}, bomtool.NewConfigError(
			"service '%s' is not in the manifest's services", service)
	}

	prefix := entry.GitPrefix
	if prefix == "" {
		prefix = m.doc.ArtifactSources.GitPrefix
	}
	if prefix == "" {
		return model.RepositorySpec{}, bomtool.NewConfigError(
			"manifest records no git prefix for service '%s'", service)
	}

	return model.RepositorySpec{
		Name:     name,
		GitDir:   m.gitDirFor(name),
		Origin:   prefix + "/" + name,
		CommitID: entry.Commit,
	}, nil
}

// EnsureLocalRepository clones the repository if no working copy exists,
// then detaches it at the pinned commit.
func (m *BomSourceCodeManager) EnsureLocalRepository(ctx context.Context, repo model.RepositorySpec) error {
	if !m.haveGitDir(repo.GitDir) {
		if err := m.git.Clone(ctx, repo, "", ""); err != nil {
			return err
		}
		logEnsured(repo, "cloned")
	} else {
		logEnsured(repo, "exists")
	}

	if repo.CommitID == "" {
		return bomtool.NewUnexpectedError("repository '%s' resolved from a manifest has no pinned commit", repo.Name)
	}
	return errors.Wrapf(m.git.CheckoutCommit(ctx, repo.GitDir, repo.CommitID),
		"checking out pinned commit for repository '%s'", repo.Name)
}

// LookupSourceInfo collects the working copy's summary paired with this
// invocation's build number.
func (m *BomSourceCodeManager) LookupSourceInfo(ctx context.Context, repo model.RepositorySpec) (model.SourceInfo, error) {
	return m.lookupSourceInfo(ctx, repo)
}

// FilterSourceRepositories resolves specs for database entries that pass
// the predicate and are recorded in the manifest. Declared repositories the
// manifest does not pin are skipped rather than failed: a manifest is
// allowed to cover a subset of the database.
func (m *BomSourceCodeManager) FilterSourceRepositories(pred Predicate) ([]model.RepositorySpec, error) {
	inManifest := func(name string, entry Entry) bool {
		if !pred(name, entry) {
			return false
		}
		_, ok := m.doc.Services[m.db.ServiceName(name)]
		return ok
	}
	return m.filterSourceRepositories(inManifest, m.MakeRepositorySpec)
}
