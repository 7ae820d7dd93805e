package scm

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/evergreen-ci/bomtool"
	"github.com/evergreen-ci/bomtool/model"
	"github.com/evergreen-ci/bomtool/testutil"
	"github.com/evergreen-ci/bomtool/thirdparty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeManifest() *model.Document {
	return &model.Document{
		ArtifactSources: model.ArtifactSources{
			GitPrefix: "https://test-gitserver/test-owner",
		},
		Services: map[string]model.ServiceEntry{
			"normal-test-service": {Commit: "CommitNormal", Version: "7.8.10-bn"},
			"outlier-test-service": {
				Commit:    "CommitOutlier",
				Version:   "7.8.10-bn",
				GitPrefix: "https://outlier-gitserver/outlier-owner",
			},
		},
		Version: "release-1.0.x-bn",
	}
}

func newBomManager(t *testing.T, settings *bomtool.Settings, rootDir string, doc *model.Document) *BomSourceCodeManager {
	t.Helper()
	mgr, err := NewBomSourceCodeManager(settings, loadTestDatabase(t), rootDir, thirdparty.NewGitRunner(), doc)
	require.NoError(t, err)
	return mgr
}

func TestNewBomSourceCodeManagerRequiresManifest(t *testing.T) {
	_, err := NewBomSourceCodeManager(&bomtool.Settings{}, loadTestDatabase(t), "root", thirdparty.NewGitRunner(), nil)
	require.Error(t, err)
	assert.True(t, bomtool.IsConfigError(err))
}

func TestBomMakeRepositorySpec(t *testing.T) {
	rootDir := t.TempDir()
	mgr := newBomManager(t, &bomtool.Settings{}, rootDir, makeManifest())

	t.Run("ManifestPrefix", func(t *testing.T) {
		repo, err := mgr.MakeRepositorySpec("normal-test-service")
		require.NoError(t, err)
		assert.Equal(t, model.RepositorySpec{
			Name:     "normal-test-service",
			GitDir:   filepath.Join(rootDir, "normal-test-service"),
			Origin:   "https://test-gitserver/test-owner/normal-test-service",
			CommitID: "CommitNormal",
		}, repo)
	})

	t.Run("ServiceSpecificPrefix", func(t *testing.T) {
		// the repository name maps to its service name through the database
		repo, err := mgr.MakeRepositorySpec("outlier-test-repo")
		require.NoError(t, err)
		assert.Equal(t, "https://outlier-gitserver/outlier-owner/outlier-test-repo", repo.Origin)
		assert.Equal(t, "CommitOutlier", repo.CommitID)
	})

	t.Run("NotInManifest", func(t *testing.T) {
		_, err := mgr.MakeRepositorySpec("extra-test-repo")
		require.Error(t, err)
		assert.True(t, bomtool.IsConfigError(err))
	})
}

func TestBomFilterSourceRepositories(t *testing.T) {
	mgr := newBomManager(t, &bomtool.Settings{}, t.TempDir(), makeManifest())

	repos, err := mgr.FilterSourceRepositories(AllFilter)
	require.NoError(t, err)

	names := []string{}
	for _, repo := range repos {
		names = append(names, repo.Name)
	}
	// extra-test-repo passes the filter but is not pinned by the manifest
	assert.Equal(t, []string{"normal-test-service", "outlier-test-repo"}, names)
}

func TestBomEnsureLocalRepository(t *testing.T) {
	testutil.RequireGit(t)
	ctx := context.Background()

	base := t.TempDir()
	commits := testutil.MakeStandardRepos(t, base)

	doc := &model.Document{
		ArtifactSources: model.ArtifactSources{
			GitPrefix: filepath.Join(base, testutil.StandardGitHost, testutil.StandardGitOwner),
		},
		Services: map[string]model.ServiceEntry{
			"normal-test-service": {
				Commit:  commits["normal-test-service"][testutil.PatchBranch],
				Version: testutil.PatchVersionNumber + "-bn",
			},
		},
	}
	mgr := newBomManager(t, &bomtool.Settings{BuildNumber: "bn2"}, filepath.Join(base, "sources"), doc)

	repo, err := mgr.MakeRepositorySpec("normal-test-service")
	require.NoError(t, err)
	require.NoError(t, mgr.EnsureLocalRepository(ctx, repo))

	commit, err := thirdparty.NewGitRunner().CurrentCommit(ctx, repo.GitDir)
	require.NoError(t, err)
	assert.Equal(t, repo.CommitID, commit)

	// summaries derive from the pinned commit, not the origin's HEAD
	info, err := mgr.LookupSourceInfo(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, repo.CommitID, info.Summary.CommitID)
	assert.Equal(t, testutil.PatchVersionNumber, info.Summary.Version)
	assert.Equal(t, "bn2", info.BuildNumber)

	// re-ensuring an existing working copy re-pins the commit
	require.NoError(t, mgr.EnsureLocalRepository(ctx, repo))
}
