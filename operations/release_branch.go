package operations

import (
	"context"

	"github.com/evergreen-ci/bomtool"
	"github.com/evergreen-ci/bomtool/metrics"
	"github.com/evergreen-ci/bomtool/model"
	"github.com/evergreen-ci/bomtool/processor"
	"github.com/evergreen-ci/bomtool/scm"
	"github.com/evergreen-ci/bomtool/thirdparty"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/urfave/cli"
)

const newBranchFlagName = "new-branch"

// ReleaseBranch creates and pushes a release branch in every source
// repository.
func ReleaseBranch() cli.Command {
	return cli.Command{
		Name:  "release-branch",
		Usage: "create and push a release branch in every source repository",
		Flags: addSourceFlags(
			cli.StringFlag{
				Name:  newBranchFlagName,
				Usage: "name of the release branch to create",
			},
			cli.BoolFlag{
				Name:  skipExistingFlag,
				Usage: "leave repositories alone when the branch already exists on the origin",
			},
			cli.BoolFlag{
				Name:  deleteExisting,
				Usage: "delete and recreate the branch when it already exists on the origin",
			},
		),
		Before: requireStringFlag(newBranchFlagName),
		Action: func(c *cli.Context) error {
			settings, err := loadSettings(c)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			return runReleaseBranch(ctx, settings,
				c.String(newBranchFlagName), c.Bool(skipExistingFlag), c.Bool(deleteExisting))
		},
	}
}

func runReleaseBranch(ctx context.Context, settings *bomtool.Settings, branch string, skipExisting, deleteExistingBranch bool) error {
	if skipExisting && deleteExistingBranch {
		return bomtool.NewConfigError("--%s and --%s are mutually exclusive", skipExistingFlag, deleteExisting)
	}

	db, err := loadDatabase(settings)
	if err != nil {
		return err
	}
	git := thirdparty.NewGitRunner()
	mgr, err := scm.NewBranchSourceCodeManager(settings, db, sourceRoot(settings), git)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	defer reportMetrics(collector)

	proc, err := processor.NewProcessor(processor.Options{
		Name:      "release-branch",
		Settings:  settings,
		Manager:   mgr,
		Collector: collector,
		Filter:    scm.InBOMFilter,
		Work: func(ctx context.Context, repo model.RepositorySpec) (interface{}, error) {
			remotes, err := git.RemoteBranches(ctx, repo.GitDir)
			if err != nil {
				return nil, err
			}

			if containsBranch(remotes, branch) {
				switch {
				case skipExisting:
					grip.Info(message.Fields{
						"message":    "branch already exists, skipping",
						"repository": repo.Name,
						"branch":     branch,
					})
					return "skipped", nil
				case deleteExistingBranch:
					if err := git.DeleteRemoteBranch(ctx, repo.GitDir, branch); err != nil {
						return nil, err
					}
				default:
					return nil, bomtool.NewConfigError(
						"branch '%s' already exists in repository '%s'", branch, repo.Name)
				}
			}

			if err := git.CheckoutNewBranch(ctx, repo.GitDir, branch); err != nil {
				return nil, err
			}
			if err := git.PushBranch(ctx, repo.GitDir, branch); err != nil {
				return nil, err
			}
			return "pushed", nil
		},
	})
	if err != nil {
		return err
	}

	result, err := proc.Run(ctx)
	if err != nil {
		return err
	}
	grip.Info(message.Fields{
		"message":      "created release branch",
		"branch":       branch,
		"repositories": len(result.(map[string]interface{})),
	})
	return nil
}

func containsBranch(remotes []string, branch string) bool {
	for _, remote := range remotes {
		if remote == "origin/"+branch {
			return true
		}
	}
	return false
}
