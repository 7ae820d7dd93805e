package operations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/evergreen-ci/bomtool"
	"github.com/evergreen-ci/bomtool/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunFetchBOM(t *testing.T) {
	ctx := context.Background()

	doc := &model.Document{
		Services:  map[string]model.ServiceEntry{"normal-test-service": {Commit: "CommitA", Version: "7.8.9-B1"}},
		Timestamp: "2024-05-06 07:08:09",
		Version:   "master-B1",
	}
	publisher := newStubPublisher(doc)
	settings := &bomtool.Settings{OutputDir: t.TempDir()}

	require.NoError(t, runFetchBOM(ctx, settings, publisher, "master-B1", ""))

	fetched, err := model.ReadDocument(filepath.Join(settings.OutputDir, "master-B1.yml"))
	require.NoError(t, err)
	assert.Equal(t, doc, fetched)

	t.Run("ExplicitPath", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "manifest.yml")
		require.NoError(t, runFetchBOM(ctx, settings, publisher, "master-B1", path))
		fetched, err := model.ReadDocument(path)
		require.NoError(t, err)
		assert.Equal(t, "master-B1", fetched.Version)
	})

	t.Run("UnknownVersion", func(t *testing.T) {
		err := runFetchBOM(ctx, settings, publisher, "no-such-version", "")
		require.Error(t, err)
		assert.True(t, bomtool.IsConfigError(err))
	})
}

func TestRunList(t *testing.T) {
	base := t.TempDir()
	settings := &bomtool.Settings{RepositoryDBPath: writeRepositoryDB(t, base)}

	require.NoError(t, runList(settings, false))
	require.NoError(t, runList(settings, true))

	settings.RepositoryDBPath = ""
	err := runList(settings, false)
	require.Error(t, err)
	assert.True(t, bomtool.IsConfigError(err))
}

func TestManifestOutputPath(t *testing.T) {
	settings := &bomtool.Settings{}
	assert.Equal(t, filepath.Join(".", "master-B1.yml"), manifestOutputPath(settings, "", "master-B1"))

	settings.OutputDir = "out"
	assert.Equal(t, filepath.Join("out", "master-B1.yml"), manifestOutputPath(settings, "", "master-B1"))
	assert.Equal(t, "explicit.yml", manifestOutputPath(settings, "explicit.yml", "master-B1"))
}
