// Package scm resolves repository names into fully specified repository
// specs and keeps local working copies present and at the right revision.
package scm

import (
	"os"
	"sort"

	"github.com/evergreen-ci/bomtool"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// Entry is one repository's declarative record in the repository database.
type Entry struct {
	Owner          string `yaml:"owner,omitempty"`
	OriginHostname string `yaml:"origin_hostname,omitempty"`
	InBOM          bool   `yaml:"in_bom,omitempty"`
	ServiceName    string `yaml:"service_name,omitempty"`
}

// Predicate selects repository database entries. The entry passed in is the
// merged view: database-wide defaults overlaid with the entry's own fields.
type Predicate func(name string, entry Entry) bool

// AllFilter passes every entry.
func AllFilter(string, Entry) bool { return true }

// InBOMFilter passes the entries that participate in the Bill of Materials.
func InBOMFilter(_ string, entry Entry) bool { return entry.InBOM }

// Database is the declarative table of source repositories plus the
// database-wide defaults. It is read-only once loaded and safe to share
// across workers.
type Database struct {
	DefaultGitOwner       string           `yaml:"default_git_owner,omitempty"`
	DefaultOriginHostname string           `yaml:"default_origin_hostname,omitempty"`
	Repositories          map[string]Entry `yaml:"repositories"`

	loadedFrom string
}

// LoadDatabase reads a repository database from a YAML file.
func LoadDatabase(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading repository database from file '%s'", path)
	}

	db := &Database{}
	if err := yaml.Unmarshal(data, db); err != nil {
		return nil, errors.Wrapf(err, "reading YAML repository database from file '%s'", path)
	}
	db.loadedFrom = path
	return db, nil
}

// Path returns where the database was loaded from.
func (db *Database) Path() string { return db.loadedFrom }

// Entry returns the raw database record for name, failing with a
// ConfigError when the repository is not declared.
func (db *Database) Entry(name string) (Entry, error) {
	entry, ok := db.Repositories[name]
	if !ok {
		return Entry{}, bomtool.NewConfigError("repository '%s' is not in '%s'", name, db.loadedFrom)
	}
	return entry, nil
}

// MergedEntry returns the record for name with the database-wide defaults
// overlaid by the entry's own fields.
func (db *Database) MergedEntry(name string) (Entry, error) {
	entry, err := db.Entry(name)
	if err != nil {
		return Entry{}, err
	}
	return db.merge(entry), nil
}

func (db *Database) merge(entry Entry) Entry {
	merged := entry
	if merged.Owner == "" {
		merged.Owner = db.DefaultGitOwner
	}
	if merged.OriginHostname == "" {
		merged.OriginHostname = db.DefaultOriginHostname
	}
	return merged
}

// RepositoryNames returns every declared repository name in sorted order.
// The database inherits no meaningful ordering from its file, so a stable
// order keeps command output and prefix computation deterministic.
func (db *Database) RepositoryNames() []string {
	names := make([]string, 0, len(db.Repositories))
	for name := range db.Repositories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServiceName maps a repository name to its published service name. The
// published manifest is keyed by service names, which may differ from the
// source-control names.
func (db *Database) ServiceName(repository string) string {
	if entry, ok := db.Repositories[repository]; ok && entry.ServiceName != "" {
		return entry.ServiceName
	}
	return repository
}

// RepositoryForService inverts ServiceName.
func (db *Database) RepositoryForService(service string) string {
	for _, name := range db.RepositoryNames() {
		if db.Repositories[name].ServiceName == service {
			return name
		}
	}
	return service
}
