package operations

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/evergreen-ci/bomtool"
	"github.com/evergreen-ci/bomtool/metrics"
	"github.com/evergreen-ci/bomtool/model"
	"github.com/evergreen-ci/bomtool/processor"
	"github.com/evergreen-ci/bomtool/publish"
	"github.com/evergreen-ci/bomtool/scm"
	"github.com/evergreen-ci/bomtool/thirdparty"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

const bomVersionFlagName = "bom-version"

// releaseOptions carries the publish-release command's arguments.
type releaseOptions struct {
	BOMVersion               string
	ReleaseVersion           string
	Alias                    string
	ChangelogURI             string
	MinimumDependencyVersion string
	Path                     string
}

// PublishRelease turns an already built manifest into a release: it tags
// and branches every constituent repository, republishes the manifest
// under the release branch, and announces the release to the publish
// service.
func PublishRelease() cli.Command {
	return cli.Command{
		Name:  "publish-release",
		Usage: "tag and branch every repository of a built manifest and announce the release",
		Flags: addPathFlag(addServiceFlag(addBuildFlags(addSourceFlags(
			cli.StringFlag{
				Name:  bomVersionFlagName,
				Usage: "version of the built manifest to release",
			},
			cli.StringFlag{
				Name:  versionFlagName,
				Usage: "semantic version of the release, e.g. 1.2.0",
			},
			cli.StringFlag{
				Name:  aliasFlagName,
				Usage: "human-facing release name",
			},
			cli.StringFlag{
				Name:  changelogFlag,
				Usage: "URI of the release changelog",
			},
			cli.StringFlag{
				Name:  minDepFlagName,
				Usage: "oldest tooling version able to consume the release",
			},
		)...)...)...),
		Before: mergeBeforeFuncs(
			requireStringFlag(bomVersionFlagName),
			requireStringFlag(versionFlagName),
			requireStringFlag(aliasFlagName),
		),
		Action: func(c *cli.Context) error {
			settings, err := loadSettings(c)
			if err != nil {
				return err
			}
			publisher, err := publish.NewServiceClient(settings)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			return runPublishRelease(ctx, settings, publisher, releaseOptions{
				BOMVersion:               c.String(bomVersionFlagName),
				ReleaseVersion:           c.String(versionFlagName),
				Alias:                    c.String(aliasFlagName),
				ChangelogURI:             c.String(changelogFlag),
				MinimumDependencyVersion: c.String(minDepFlagName),
				Path:                     c.String(pathFlagName),
			})
		},
	}
}

// repoReleaseResult carries one tagged repository from the tag pass to the
// push pass.
type repoReleaseResult struct {
	Repo model.RepositorySpec
	Tag  string
}

// runPublishRelease works in two passes over the manifest's repositories:
// the first tags and branches every working copy locally, the second
// pushes them all. Nothing reaches any origin unless every repository
// tagged cleanly.
func runPublishRelease(ctx context.Context, settings *bomtool.Settings, publisher publish.Publisher, opts releaseOptions) error {
	sv, err := model.ParseSemanticVersion(opts.ReleaseVersion)
	if err != nil {
		return err
	}
	releaseBranch := fmt.Sprintf("release-%d.%d.x", sv.Major, sv.Minor)

	doc, err := publisher.RetrieveBOMVersion(ctx, opts.BOMVersion)
	if err != nil {
		return err
	}

	db, err := loadDatabase(settings)
	if err != nil {
		return err
	}
	git := thirdparty.NewGitRunner()
	mgr, err := scm.NewBomSourceCodeManager(settings, db, sourceRoot(settings), git, doc)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	defer reportMetrics(collector)

	proc, err := processor.NewProcessor(processor.Options{
		Name:      "publish-release",
		Settings:  settings,
		Manager:   mgr,
		Collector: collector,
		Filter:    scm.InBOMFilter,
		Work: func(ctx context.Context, repo model.RepositorySpec) (interface{}, error) {
			tag, err := serviceVersionTag(db, doc, repo.Name)
			if err != nil {
				return nil, err
			}
			if err := git.CheckoutNewBranch(ctx, repo.GitDir, releaseBranch); err != nil {
				return nil, err
			}
			if err := git.Tag(ctx, repo.GitDir, tag); err != nil {
				return nil, err
			}
			return repoReleaseResult{Repo: repo, Tag: tag}, nil
		},
		Postprocess: func(ctx context.Context, results map[string]interface{}) (interface{}, error) {
			names := make([]string, 0, len(results))
			for name := range results {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				result, ok := results[name].(repoReleaseResult)
				if !ok {
					return nil, errors.Errorf("unexpected result type for repository '%s'", name)
				}
				if err := git.PushBranch(ctx, result.Repo.GitDir, releaseBranch); err != nil {
					return nil, err
				}
				if err := git.PushTag(ctx, result.Repo.GitDir, result.Tag); err != nil {
					return nil, err
				}
			}

			published := doc.Copy()
			published.Version = releaseBranch + "-" + settings.EffectiveBuildNumber()
			return published, nil
		},
	})
	if err != nil {
		return err
	}

	result, err := proc.Run(ctx)
	if err != nil {
		return err
	}
	published, ok := result.(*model.Document)
	if !ok {
		return errors.New("release publication produced an unexpected result type")
	}

	out := manifestOutputPath(settings, opts.Path, published.Version)
	if err := published.Write(out); err != nil {
		return err
	}
	if err := publisher.PublishBOM(ctx, published); err != nil {
		return err
	}
	if err := publisher.PublishRelease(ctx, publish.ReleaseInfo{
		Version:                  opts.ReleaseVersion,
		Alias:                    opts.Alias,
		ChangelogURI:             opts.ChangelogURI,
		MinimumDependencyVersion: opts.MinimumDependencyVersion,
	}); err != nil {
		return err
	}

	grip.Info(message.Fields{
		"message": "published release",
		"version": opts.ReleaseVersion,
		"alias":   opts.Alias,
		"branch":  releaseBranch,
		"path":    out,
	})
	return nil
}

// serviceVersionTag derives the version tag to place on one repository
// from the build version its manifest entry records.
func serviceVersionTag(db *scm.Database, doc *model.Document, name string) (string, error) {
	service := db.ServiceName(name)
	entry, ok := doc.Services[service]
	if !ok {
		entry, ok = doc.Services[name]
	}
	if !ok {
		return "", bomtool.NewConfigError("service '%s' is not in the manifest's services", service)
	}

	version := entry.Version
	if idx := strings.Index(version, "-"); idx > 0 {
		version = version[:idx]
	}
	sv, err := model.ParseSemanticVersion(version)
	if err != nil {
		return "", errors.Wrapf(err, "service '%s' records an invalid version", service)
	}
	return sv.Tag(), nil
}
