package scm

import (
	"context"
	"path/filepath"

	"github.com/evergreen-ci/bomtool"
	"github.com/evergreen-ci/bomtool/model"
	"github.com/evergreen-ci/bomtool/thirdparty"
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// SourceCodeManager resolves repository names into fully specified specs
// and ensures local working copies exist at the right revision. The two
// implementations differ in how they resolve: by configured branch, or from
// a previously published manifest.
type SourceCodeManager interface {
	// Database returns the repository database the manager queries.
	Database() *Database

	// MakeRepositorySpec resolves a repository name into a spec.
	MakeRepositorySpec(name string) (model.RepositorySpec, error)

	// EnsureLocalRepository makes the spec's working copy present and at
	// the expected revision. Existing working copies are verified, not
	// re-cloned.
	EnsureLocalRepository(ctx context.Context, repo model.RepositorySpec) error

	// LookupSourceInfo inspects the working copy and pairs the resulting
	// summary with the build number for this invocation.
	LookupSourceInfo(ctx context.Context, repo model.RepositorySpec) (model.SourceInfo, error)

	// FilterSourceRepositories resolves specs for every database entry
	// passing the predicate.
	FilterSourceRepositories(pred Predicate) ([]model.RepositorySpec, error)
}

// RepositoryFunc is a unit of work applied to one repository.
type RepositoryFunc func(ctx context.Context, repo model.RepositorySpec) (interface{}, error)

// ForEachSourceRepository applies fn to each repository in order and
// returns the results keyed by repository name. It is a sequential
// convenience with no failure isolation; the orchestrator in the processor
// package builds the concurrent, failure-isolating equivalent on top of a
// SourceCodeManager.
func ForEachSourceRepository(ctx context.Context, repos []model.RepositorySpec, fn RepositoryFunc) (map[string]interface{}, error) {
	results := map[string]interface{}{}
	for _, repo := range repos {
		result, err := fn(ctx, repo)
		if err != nil {
			return nil, errors.Wrapf(err, "repository '%s'", repo.Name)
		}
		results[repo.Name] = result
	}
	return results, nil
}

// baseManager carries the collaborators both manager implementations share.
type baseManager struct {
	settings *bomtool.Settings
	db       *Database
	rootDir  string
	git      *thirdparty.GitRunner
}

func (m *baseManager) Database() *Database { return m.db }

func (m *baseManager) gitDirFor(name string) string {
	return filepath.Join(m.rootDir, name)
}

func (m *baseManager) lookupSourceInfo(ctx context.Context, repo model.RepositorySpec) (model.SourceInfo, error) {
	summary, err := m.git.CollectSummary(ctx, repo.GitDir)
	if err != nil {
		return model.SourceInfo{}, errors.Wrapf(err, "collecting summary for repository '%s'", repo.Name)
	}
	return model.SourceInfo{
		BuildNumber: m.settings.EffectiveBuildNumber(),
		Summary:     summary,
	}, nil
}

// filterSourceRepositories evaluates pred over every merged database entry
// and resolves specs through makeSpec for the entries that pass.
func (m *baseManager) filterSourceRepositories(pred Predicate, makeSpec func(string) (model.RepositorySpec, error)) ([]model.RepositorySpec, error) {
	repos := []model.RepositorySpec{}
	for _, name := range m.db.RepositoryNames() {
		entry, err := m.db.MergedEntry(name)
		if err != nil {
			return nil, err
		}
		if !pred(name, entry) {
			continue
		}
		repo, err := makeSpec(name)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return repos, nil
}

func (m *baseManager) haveGitDir(gitDir string) bool {
	return utility.FileExists(gitDir)
}

func logEnsured(repo model.RepositorySpec, action string) {
	grip.Debug(message.Fields{
		"message":    "ensured local repository",
		"repository": repo.Name,
		"git_dir":    repo.GitDir,
		"action":     action,
	})
}
