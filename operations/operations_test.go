package operations

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/evergreen-ci/bomtool"
	"github.com/evergreen-ci/bomtool/model"
	"github.com/evergreen-ci/bomtool/publish"
	"github.com/evergreen-ci/bomtool/scm"
	"github.com/stretchr/testify/require"
)

const repositoryDBYAML = `default_git_owner: test-owner
default_origin_hostname: test-gitserver

repositories:
  normal-test-service:
    in_bom: true
  outlier-test-repo:
    in_bom: true
    owner: outlier-owner
    origin_hostname: outlier-gitserver
    service_name: outlier-test-service
  extra-test-repo: {}
`

func writeRepositoryDB(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "repositories.yml")
	require.NoError(t, os.WriteFile(path, []byte(repositoryDBYAML), 0644))
	return path
}

// fixtureSettings configures source resolution against a filesystem git
// root built by testutil.MakeStandardRepos.
func fixtureSettings(t *testing.T, base string) *bomtool.Settings {
	t.Helper()
	return &bomtool.Settings{
		GitOwner:          "default",
		GitFilesystemRoot: base,
		RepositoryDBPath:  writeRepositoryDB(t, base),
		InputDir:          filepath.Join(base, "sources"),
		OutputDir:         filepath.Join(base, "output"),
	}
}

func loadTestDB(t *testing.T) *scm.Database {
	t.Helper()
	db, err := scm.LoadDatabase(writeRepositoryDB(t, t.TempDir()))
	require.NoError(t, err)
	return db
}

// stubPublisher keeps manifests and release announcements in memory.
type stubPublisher struct {
	docs      map[string]*model.Document
	published []*model.Document
	releases  []publish.ReleaseInfo
}

func newStubPublisher(docs ...*model.Document) *stubPublisher {
	p := &stubPublisher{docs: map[string]*model.Document{}}
	for _, doc := range docs {
		p.docs[doc.Version] = doc
	}
	return p
}

func (p *stubPublisher) RetrieveBOMVersion(_ context.Context, version string) (*model.Document, error) {
	doc, ok := p.docs[version]
	if !ok {
		return nil, bomtool.NewConfigError("manifest version '%s' is not published", version)
	}
	return doc.Copy(), nil
}

func (p *stubPublisher) PublishBOM(_ context.Context, doc *model.Document) error {
	p.published = append(p.published, doc.Copy())
	return nil
}

func (p *stubPublisher) PublishRelease(_ context.Context, info publish.ReleaseInfo) error {
	p.releases = append(p.releases, info)
	return nil
}
