package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTestDocument() *Document {
	return &Document{
		ArtifactSources: ArtifactSources{
			DebianRepository:   "https://apt.example.com/test-repo",
			DockerRegistry:     "test-registry",
			GitPrefix:          "https://github.com/test-owner",
			GoogleImageProject: "test-image-project",
		},
		Dependencies: map[string]DependencyEntry{
			"redis": {Version: "2:2.8.4"},
		},
		Services: map[string]ServiceEntry{
			"gateway": {Commit: "abcdef0", Version: "1.2.3-100"},
			"metrics": {
				Commit:    "1234567",
				Version:   "0.4.0-100",
				GitPrefix: "https://example.com/other-owner",
			},
		},
		Timestamp: "2018-01-02 03:04:05",
		Version:   "master-100",
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	doc := makeTestDocument()

	data, err := doc.Marshal()
	require.NoError(t, err)

	parsed, err := ParseDocument(data)
	require.NoError(t, err)
	assert.Equal(t, doc, parsed)
}

func TestDocumentMarshalIsStable(t *testing.T) {
	first, err := makeTestDocument().Marshal()
	require.NoError(t, err)
	second, err := makeTestDocument().Marshal()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDocumentOmitsEmptyGitPrefix(t *testing.T) {
	doc := &Document{
		Services: map[string]ServiceEntry{
			"gateway": {Commit: "abcdef0", Version: "1.2.3-100"},
		},
	}
	data, err := doc.Marshal()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "gitPrefix")
}

func TestDocumentReadWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "output", "bom.yml")

	doc := makeTestDocument()
	require.NoError(t, doc.Write(path))

	read, err := ReadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, doc, read)

	_, err = ReadDocument(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bogus.yml"), []byte("]not yaml["), 0644))
	_, err = ReadDocument(filepath.Join(dir, "bogus.yml"))
	assert.Error(t, err)
}

func TestDocumentCopyIsIndependent(t *testing.T) {
	doc := makeTestDocument()
	dup := doc.Copy()
	require.Equal(t, doc, dup)

	dup.Services["gateway"] = ServiceEntry{Commit: "fedcba9", Version: "9.9.9-200"}
	dup.Dependencies["consul"] = DependencyEntry{Version: "0.7.5"}
	dup.Version = "changed"

	assert.Equal(t, "abcdef0", doc.Services["gateway"].Commit)
	assert.NotContains(t, doc.Dependencies, "consul")
	assert.Equal(t, "master-100", doc.Version)
}

func TestSourceInfoBuildVersion(t *testing.T) {
	info := SourceInfo{
		BuildNumber: "B1",
		Summary:     RepositorySummary{Version: "9.8.7"},
	}
	assert.Equal(t, "9.8.7-B1", info.BuildVersion())
}
