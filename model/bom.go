package model

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// ArtifactSources records where a release's artifacts come from.
type ArtifactSources struct {
	DebianRepository   string `yaml:"debianRepository,omitempty"`
	DockerRegistry     string `yaml:"dockerRegistry,omitempty"`
	GitPrefix          string `yaml:"gitPrefix,omitempty"`
	GoogleImageProject string `yaml:"googleImageProject,omitempty"`
}

// ServiceEntry pins one service to an exact commit and build version.
// GitPrefix is present only when the service's origin differs from the
// manifest-wide prefix.
type ServiceEntry struct {
	Commit    string `yaml:"commit,omitempty"`
	Version   string `yaml:"version,omitempty"`
	GitPrefix string `yaml:"gitPrefix,omitempty"`
}

// DependencyEntry records the version of one non-service dependency.
type DependencyEntry struct {
	Version string `yaml:"version"`
}

// Document is a Bill of Materials: a manifest pinning every constituent
// service of one release to an exact commit/version pair.
type Document struct {
	ArtifactSources ArtifactSources            `yaml:"artifactSources"`
	Dependencies    map[string]DependencyEntry `yaml:"dependencies"`
	Services        map[string]ServiceEntry    `yaml:"services"`
	Timestamp       string                     `yaml:"timestamp"`
	Version         string                     `yaml:"version"`
}

// ReadDocument loads a manifest from a YAML file.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifest from file '%s'", path)
	}
	return ParseDocument(data)
}

// ParseDocument decodes a manifest from YAML.
func ParseDocument(data []byte) (*Document, error) {
	doc := &Document{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, errors.Wrap(err, "reading YAML manifest data")
	}
	return doc, nil
}

// Marshal renders the manifest as YAML. Map keys serialize in sorted order,
// so an unchanged document always renders to identical bytes.
func (d *Document) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(d)
	return data, errors.Wrap(err, "marshalling manifest to YAML")
}

// Write renders the manifest and writes it to path, creating parent
// directories as needed.
func (d *Document) Write(path string) error {
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "creating manifest directory '%s'", dir)
		}
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "writing manifest to file '%s'", path)
}

// Copy returns a deep copy of the document.
func (d *Document) Copy() *Document {
	out := &Document{
		ArtifactSources: d.ArtifactSources,
		Timestamp:       d.Timestamp,
		Version:         d.Version,
	}
	if d.Dependencies != nil {
		out.Dependencies = make(map[string]DependencyEntry, len(d.Dependencies))
		for name, dep := range d.Dependencies {
			out.Dependencies[name] = dep
		}
	}
	if d.Services != nil {
		out.Services = make(map[string]ServiceEntry, len(d.Services))
		for name, svc := range d.Services {
			out.Services[name] = svc
		}
	}
	return out
}
