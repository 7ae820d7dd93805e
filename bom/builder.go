package bom

import (
	"os"
	"strings"
	"time"

	"github.com/evergreen-ci/bomtool"
	"github.com/evergreen-ci/bomtool/model"
	"github.com/evergreen-ci/bomtool/scm"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// now is swapped out by tests that need a fixed timestamp.
var now = time.Now

// Builder accumulates per-repository source info and renders it as a
// manifest document. It is not safe for concurrent use; collect source
// info in parallel and feed the builder from a single goroutine.
type Builder struct {
	settings *bomtool.Settings
	db       *scm.Database

	base         *model.Document
	services     map[string]model.ServiceEntry
	dependencies map[string]model.DependencyEntry

	// Origin prefix bookkeeping for DetermineMostCommonPrefix. Each
	// prefix carries the sequence number at which it reached its current
	// count, so ties resolve to whichever prefix reached the count first.
	servicePrefixes map[string]string
	prefixStats     map[string]*prefixStat
	prefixSeq       int
}

type prefixStat struct {
	count     int
	reachedAt int
}

type dependenciesFile struct {
	Dependencies map[string]model.DependencyEntry `yaml:"dependencies"`
}

// NewBuilder constructs an empty builder. When the settings name a
// dependencies file, its entries are carried into every built manifest.
func NewBuilder(settings *bomtool.Settings, db *scm.Database) (*Builder, error) {
	b := &Builder{
		settings:        settings,
		db:              db,
		services:        map[string]model.ServiceEntry{},
		dependencies:    map[string]model.DependencyEntry{},
		servicePrefixes: map[string]string{},
		prefixStats:     map[string]*prefixStat{},
	}

	if settings.DependenciesPath != "" {
		data, err := os.ReadFile(settings.DependenciesPath)
		if err != nil {
			return nil, errors.Wrapf(err, "reading dependencies from file '%s'", settings.DependenciesPath)
		}
		deps := dependenciesFile{}
		if err := yaml.Unmarshal(data, &deps); err != nil {
			return nil, errors.Wrapf(err, "reading YAML data from dependencies file '%s'", settings.DependenciesPath)
		}
		for name, dep := range deps.Dependencies {
			b.dependencies[name] = dep
		}
	}

	return b, nil
}

// NewBuilderFromBOM constructs a builder seeded from a prior manifest.
// Services that are not re-registered before Build carry over unchanged,
// as do the prior dependencies.
func NewBuilderFromBOM(settings *bomtool.Settings, db *scm.Database, doc *model.Document) (*Builder, error) {
	if doc == nil {
		return nil, bomtool.NewConfigError("no manifest to rebuild from")
	}

	b, err := NewBuilder(settings, db)
	if err != nil {
		return nil, err
	}
	b.base = doc.Copy()
	for name, svc := range b.base.Services {
		b.services[name] = svc
	}
	if len(b.dependencies) == 0 {
		for name, dep := range b.base.Dependencies {
			b.dependencies[name] = dep
		}
	}
	return b, nil
}

// AddRepository registers one repository's observed source info, keyed by
// its published service name. Registering a repository twice overwrites
// the earlier entry.
func (b *Builder) AddRepository(repo model.RepositorySpec, info model.SourceInfo) {
	service := b.db.ServiceName(repo.Name)
	b.services[service] = model.ServiceEntry{
		Commit:  info.Summary.CommitID,
		Version: info.BuildVersion(),
	}

	if prefix := originPrefix(repo.Origin); prefix != "" {
		prior, ok := b.servicePrefixes[service]
		if ok && prior == prefix {
			return
		}
		if ok {
			b.bumpPrefix(prior, -1)
		}
		b.servicePrefixes[service] = prefix
		b.bumpPrefix(prefix, 1)
	}
}

func (b *Builder) bumpPrefix(prefix string, delta int) {
	b.prefixSeq++
	stat, ok := b.prefixStats[prefix]
	if !ok {
		stat = &prefixStat{}
		b.prefixStats[prefix] = stat
	}
	stat.count += delta
	stat.reachedAt = b.prefixSeq
}

// DetermineMostCommonPrefix returns the origin prefix shared by the most
// currently registered repositories, or the empty string when none are
// registered. Counts follow the registrations, so a repository moved to a
// new origin no longer counts toward its old prefix. When counts tie, the
// prefix that reached the count first wins, keeping the election stable
// across calls.
func (b *Builder) DetermineMostCommonPrefix() string {
	var (
		best     string
		bestStat prefixStat
	)
	for prefix, stat := range b.prefixStats {
		if stat.count <= 0 {
			continue
		}
		if best == "" || stat.count > bestStat.count ||
			(stat.count == bestStat.count && stat.reachedAt < bestStat.reachedAt) {
			best = prefix
			bestStat = *stat
		}
	}
	return best
}

// Build renders the accumulated state as a manifest with a fresh
// timestamp and version. The builder remains usable afterwards; the
// returned document shares no state with it.
func (b *Builder) Build() (*model.Document, error) {
	version, err := b.buildVersion()
	if err != nil {
		return nil, err
	}

	prefix := b.DetermineMostCommonPrefix()
	if prefix == "" && b.base != nil {
		prefix = b.base.ArtifactSources.GitPrefix
	}

	doc := &model.Document{
		ArtifactSources: model.ArtifactSources{
			DebianRepository:   b.settings.ArtifactSources.DebianRepository,
			DockerRegistry:     b.settings.ArtifactSources.DockerRegistry,
			GitPrefix:          prefix,
			GoogleImageProject: b.settings.ArtifactSources.GoogleImageProject,
		},
		Dependencies: map[string]model.DependencyEntry{},
		Services:     map[string]model.ServiceEntry{},
		Timestamp:    now().UTC().Format(bomtool.TimestampFormat),
		Version:      version,
	}
	for name, dep := range b.dependencies {
		doc.Dependencies[name] = dep
	}
	for name, svc := range b.services {
		// Entries registered in this session record a prefix only when
		// it deviates from the manifest-wide one. Carried-over entries
		// are left exactly as the prior manifest had them.
		if recorded, ok := b.servicePrefixes[name]; ok {
			if recorded != prefix {
				svc.GitPrefix = recorded
			} else {
				svc.GitPrefix = ""
			}
		}
		doc.Services[name] = svc
	}

	grip.Info(message.Fields{
		"op":       "build manifest",
		"version":  doc.Version,
		"services": len(doc.Services),
		"prefix":   prefix,
	})
	return doc, nil
}

func (b *Builder) buildVersion() (string, error) {
	alias := b.settings.GitBranch
	if alias == "" && b.base != nil {
		alias = priorAlias(b.base.Version)
	}
	if alias == "" {
		return "", bomtool.NewConfigError("no git branch is configured to alias the manifest version")
	}
	return alias + "-" + b.settings.EffectiveBuildNumber(), nil
}

// originPrefix strips the final path component from an origin URL or
// filesystem path. Origins are never normalized, so plain string
// splitting keeps scheme separators intact.
func originPrefix(origin string) string {
	idx := strings.LastIndex(origin, "/")
	if idx <= 0 {
		return ""
	}
	return origin[:idx]
}

// priorAlias recovers the branch alias from a prior manifest version by
// stripping its build number suffix.
func priorAlias(version string) string {
	idx := strings.LastIndex(version, "-")
	if idx <= 0 {
		return ""
	}
	return version[:idx]
}
