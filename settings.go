package bomtool

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/kardianos/osext"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// ArtifactSourcesSettings holds the static artifact locations stamped into
// every manifest this process builds.
type ArtifactSourcesSettings struct {
	DebianRepository   string `yaml:"debian_repository,omitempty"`
	DockerRegistry     string `yaml:"docker_registry,omitempty"`
	GoogleImageProject string `yaml:"google_image_project,omitempty"`
}

// Settings represents the data stored in the user's config file, by default
// located at ~/.bomtool.yml. Command line flags override individual fields
// for a single invocation.
type Settings struct {
	// Source resolution.
	GitBranch         string `yaml:"git_branch,omitempty"`
	GitFallbackBranch string `yaml:"git_fallback_branch,omitempty"`
	GitOwner          string `yaml:"git_owner,omitempty"`
	GitPullSSH        bool   `yaml:"git_pull_ssh,omitempty"`
	// GitFilesystemRoot, when set, resolves origins off the local
	// filesystem instead of a git server. Used for local and test builds.
	GitFilesystemRoot string `yaml:"git_filesystem_root,omitempty"`

	// Manifest construction.
	BuildNumber      string                  `yaml:"build_number,omitempty"`
	RepositoryDBPath string                  `yaml:"repository_db,omitempty"`
	DependenciesPath string                  `yaml:"dependencies,omitempty"`
	ArtifactSources  ArtifactSourcesSettings `yaml:"artifact_sources,omitempty"`

	// Execution.
	InputDir         string   `yaml:"input_dir,omitempty"`
	OutputDir        string   `yaml:"output_dir,omitempty"`
	OneAtATime       bool     `yaml:"one_at_a_time,omitempty"`
	OnlyRepositories []string `yaml:"only_repositories,omitempty"`

	// Publishing.
	PublishServiceURL string `yaml:"publish_service_url,omitempty"`

	LoadedFrom string `yaml:"-"`
}

func findConfigFilePath(fn string) (string, error) {
	currentBinPath, _ := osext.Executable()

	userHome, err := homedir.Dir()
	if err != nil {
		// workaround for cygwin if we're on windows but couldn't get a homedir
		if runtime.GOOS == "windows" && len(os.Getenv("HOME")) > 0 {
			userHome = os.Getenv("HOME")
		}
	}

	if fn != "" {
		if isValidPath(fn) {
			return fn, nil
		}
		absfn, _ := filepath.Abs(fn)
		if isValidPath(absfn) {
			return absfn, nil
		}
		return "", errors.Errorf("could not find configuration file '%s'", fn)
	}

	defaultFiles := []string{
		filepath.Join(userHome, DefaultConfigFile),
		filepath.Join(filepath.Dir(currentBinPath), DefaultConfigFile),
	}
	for _, path := range defaultFiles {
		if isValidPath(path) {
			return path, nil
		}
	}

	return "", nil
}

func isValidPath(path string) bool {
	stat, err := os.Stat(path)
	if os.IsNotExist(err) || err != nil || stat.IsDir() {
		return false
	}
	return true
}

// NewSettings loads settings from fn, or from the default locations when fn
// is empty. A missing default file is not an error; commands can be fully
// configured from flags.
func NewSettings(fn string) (*Settings, error) {
	path, err := findConfigFilePath(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "finding config file '%s'", fn)
	}
	if path == "" {
		grip.Debug("no configuration file found, using flag values only")
		return &Settings{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading configuration from file '%s'", path)
	}

	conf := &Settings{}
	if err = yaml.Unmarshal(data, conf); err != nil {
		return nil, errors.Wrapf(err, "reading YAML data from configuration file '%s'", path)
	}
	conf.LoadedFrom = path

	return conf, nil
}

// Write persists the settings back to the file they were loaded from, or to
// fn when given.
func (s *Settings) Write(fn string) error {
	if fn == "" {
		fn = s.LoadedFrom
	}
	if fn == "" {
		return errors.New("no output location specified")
	}

	yml, err := yaml.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "marshalling settings to YAML")
	}

	return errors.Wrapf(os.WriteFile(fn, yml, 0600), "writing settings to file '%s'", fn)
}

// EffectiveBuildNumber returns the configured build number, or the
// process-wide default when none is configured.
func (s *Settings) EffectiveBuildNumber() string {
	if s.BuildNumber != "" {
		return s.BuildNumber
	}
	return DefaultBuildNumber()
}

// EffectiveFallbackBranch returns the configured clone fallback branch, or
// the default.
func (s *Settings) EffectiveFallbackBranch() string {
	if s.GitFallbackBranch != "" {
		return s.GitFallbackBranch
	}
	return DefaultFallbackBranch
}
