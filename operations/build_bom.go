package operations

import (
	"context"
	"sort"

	"github.com/evergreen-ci/bomtool"
	"github.com/evergreen-ci/bomtool/bom"
	"github.com/evergreen-ci/bomtool/metrics"
	"github.com/evergreen-ci/bomtool/model"
	"github.com/evergreen-ci/bomtool/processor"
	"github.com/evergreen-ci/bomtool/scm"
	"github.com/evergreen-ci/bomtool/thirdparty"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// BuildBOM constructs a versioned manifest from the configured branch of
// every source repository and writes it as YAML.
func BuildBOM() cli.Command {
	return cli.Command{
		Name:  "build-bom",
		Usage: "construct a versioned manifest from the configured branch of every source repository",
		Flags: addPathFlag(addBuildFlags(addSourceFlags()...)...),
		Action: func(c *cli.Context) error {
			settings, err := loadSettings(c)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			return runBuildBOM(ctx, settings, c.String(pathFlagName))
		},
	}
}

// repoBuildResult carries one repository's observed state from the worker
// that collected it to the postprocessing step that folds it into the
// manifest.
type repoBuildResult struct {
	Repo model.RepositorySpec
	Info model.SourceInfo
}

func runBuildBOM(ctx context.Context, settings *bomtool.Settings, path string) error {
	db, err := loadDatabase(settings)
	if err != nil {
		return err
	}
	mgr, err := scm.NewBranchSourceCodeManager(settings, db, sourceRoot(settings), thirdparty.NewGitRunner())
	if err != nil {
		return err
	}
	builder, err := bom.NewBuilder(settings, db)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	defer reportMetrics(collector)

	proc, err := processor.NewProcessor(processor.Options{
		Name:      "build-bom",
		Settings:  settings,
		Manager:   mgr,
		Collector: collector,
		Filter:    scm.InBOMFilter,
		Work: func(ctx context.Context, repo model.RepositorySpec) (interface{}, error) {
			if err := mgr.CheckRepositoryIsCurrent(ctx, repo); err != nil {
				return nil, err
			}
			info, err := mgr.LookupSourceInfo(ctx, repo)
			if err != nil {
				return nil, err
			}
			return repoBuildResult{Repo: repo, Info: info}, nil
		},
		// The builder is not safe for concurrent use; feed it only here,
		// on the command goroutine, after every worker has finished.
		Postprocess: func(_ context.Context, results map[string]interface{}) (interface{}, error) {
			names := make([]string, 0, len(results))
			for name := range results {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				result, ok := results[name].(repoBuildResult)
				if !ok {
					return nil, errors.Errorf("unexpected result type for repository '%s'", name)
				}
				builder.AddRepository(result.Repo, result.Info)
			}
			return builder.Build()
		},
	})
	if err != nil {
		return err
	}

	result, err := proc.Run(ctx)
	if err != nil {
		return err
	}
	doc, ok := result.(*model.Document)
	if !ok {
		return errors.New("manifest construction produced an unexpected result type")
	}

	out := manifestOutputPath(settings, path, doc.Version)
	if err := doc.Write(out); err != nil {
		return err
	}
	grip.Info(message.Fields{
		"message":  "wrote manifest",
		"version":  doc.Version,
		"services": len(doc.Services),
		"path":     out,
	})
	return nil
}
