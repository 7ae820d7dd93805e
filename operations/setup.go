package operations

import (
	"path/filepath"

	"github.com/evergreen-ci/bomtool"
	"github.com/evergreen-ci/bomtool/metrics"
	"github.com/evergreen-ci/bomtool/scm"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// defaultInputDir is where working copies land when no input directory is
// configured.
const defaultInputDir = "source_code"

func loadSettings(c *cli.Context) (*bomtool.Settings, error) {
	settings, err := bomtool.NewSettings(c.Parent().String(confFlagName))
	if err != nil {
		return nil, errors.Wrap(err, "loading configuration")
	}
	applyFlagOverrides(c, settings)
	return settings, nil
}

func loadDatabase(settings *bomtool.Settings) (*scm.Database, error) {
	if settings.RepositoryDBPath == "" {
		return nil, bomtool.NewConfigError("no repository database is configured")
	}
	return scm.LoadDatabase(settings.RepositoryDBPath)
}

func sourceRoot(settings *bomtool.Settings) string {
	if settings.InputDir != "" {
		return settings.InputDir
	}
	return defaultInputDir
}

// reportMetrics dumps the collected observations at debug level. Commands
// defer it so the dump also covers failed runs.
func reportMetrics(collector *metrics.Collector) {
	for _, fields := range collector.Report() {
		grip.Debug(fields)
	}
}

// manifestOutputPath picks where a manifest lands: the explicit path when
// given, otherwise a version-named file under the output directory.
func manifestOutputPath(settings *bomtool.Settings, path, version string) string {
	if path != "" {
		return path
	}
	dir := settings.OutputDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, version+".yml")
}
