package operations

import (
	"github.com/evergreen-ci/bomtool"
	"github.com/urfave/cli"
)

const (
	confFlagName      = "conf"
	pathFlagName      = "path"
	branchFlagName    = "branch"
	fallbackFlagName  = "fallback-branch"
	ownerFlagName     = "owner"
	sshFlagName       = "ssh"
	fsRootFlagName    = "filesystem-root"
	buildNumFlagName  = "build-number"
	repoDBFlagName    = "repository-db"
	depsFlagName      = "dependencies"
	inputDirFlagName  = "input-dir"
	outputDirFlagName = "output-dir"
	serialFlagName    = "one-at-a-time"
	onlyFlagName      = "only"
	serviceFlagName   = "service-url"

	versionFlagName  = "version"
	aliasFlagName    = "alias"
	changelogFlag    = "changelog-uri"
	minDepFlagName   = "min-dependency-version"
	skipExistingFlag = "skip-existing"
	deleteExisting   = "delete-existing"
	allFlagName      = "all"
)

func addPathFlag(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.StringFlag{
		Name:  pathFlagName + ", p",
		Usage: "path to read or write a manifest file",
	})
}

// addSourceFlags attaches the flags that override how source repositories
// are resolved and where their working copies live.
func addSourceFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags,
		cli.StringFlag{
			Name:  branchFlagName + ", b",
			Usage: "git branch to resolve source repositories at",
		},
		cli.StringFlag{
			Name:  fallbackFlagName,
			Usage: "branch to clone when the configured branch does not exist",
		},
		cli.StringFlag{
			Name:  ownerFlagName,
			Usage: "git owner to resolve origins under; 'default' or 'upstream' use the repository database",
		},
		cli.BoolFlag{
			Name:  sshFlagName,
			Usage: "resolve origins as SSH URLs instead of HTTPS",
		},
		cli.StringFlag{
			Name:  fsRootFlagName,
			Usage: "resolve origins under a local filesystem root instead of a git server",
		},
		cli.StringFlag{
			Name:  repoDBFlagName,
			Usage: "path to the repository database file",
		},
		cli.StringFlag{
			Name:  inputDirFlagName,
			Usage: "directory holding the local working copies",
		},
		cli.BoolFlag{
			Name:  serialFlagName,
			Usage: "process repositories one at a time instead of concurrently",
		},
		cli.StringSliceFlag{
			Name:  onlyFlagName,
			Usage: "restrict processing to the named repository; may specify more than once",
		},
	)
}

// addBuildFlags attaches the flags that shape the built manifest.
func addBuildFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags,
		cli.StringFlag{
			Name:  buildNumFlagName,
			Usage: "build number to stamp into the manifest; defaults to a UTC timestamp",
		},
		cli.StringFlag{
			Name:  depsFlagName,
			Usage: "path to the dependencies file carried into the manifest",
		},
		cli.StringFlag{
			Name:  outputDirFlagName,
			Usage: "directory to write output files into",
		},
	)
}

func addServiceFlag(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.StringFlag{
		Name:  serviceFlagName,
		Usage: "base URL of the release-publishing service",
	})
}

// applyFlagOverrides copies any flag the user set over the corresponding
// settings field, so flags win over the configuration file.
func applyFlagOverrides(c *cli.Context, settings *bomtool.Settings) {
	for flag, target := range map[string]*string{
		branchFlagName:    &settings.GitBranch,
		fallbackFlagName:  &settings.GitFallbackBranch,
		ownerFlagName:     &settings.GitOwner,
		fsRootFlagName:    &settings.GitFilesystemRoot,
		buildNumFlagName:  &settings.BuildNumber,
		repoDBFlagName:    &settings.RepositoryDBPath,
		depsFlagName:      &settings.DependenciesPath,
		inputDirFlagName:  &settings.InputDir,
		outputDirFlagName: &settings.OutputDir,
		serviceFlagName:   &settings.PublishServiceURL,
	} {
		if v := c.String(flag); v != "" {
			*target = v
		}
	}
	if c.Bool(sshFlagName) {
		settings.GitPullSSH = true
	}
	if c.Bool(serialFlagName) {
		settings.OneAtATime = true
	}
	if only := c.StringSlice(onlyFlagName); len(only) > 0 {
		settings.OnlyRepositories = only
	}
}
