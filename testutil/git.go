// Package testutil creates throwaway git repositories for tests that
// exercise the git layer and the source code managers.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Fixture constants shared with the repository database fixtures under the
// scm package's testdata.
const (
	StandardGitHost  = "test-gitserver"
	OutlierGitHost   = "outlier-gitserver"
	StandardGitOwner = "test-owner"
	OutlierGitOwner  = "outlier-owner"

	BaseVersionTag     = "version-7.8.9"
	PatchVersionNumber = "7.8.10"
	PatchBranch        = "patch"
	UntaggedBranch     = "untagged-branch"
)

// RunGit runs a git command in dir and fails the test on error.
func RunGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), string(out))
	return strings.TrimSpace(string(out))
}

// RequireGit skips the test when no git binary is available.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func commitFile(t *testing.T, dir, name, message string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0644))
	RunGit(t, dir, "add", name)
	RunGit(t, dir, "commit", "-m", message)
}

// MakeStandardRepo initializes a git repository laid out like the standard
// test fixtures: master tagged with the base version, a patch branch with a
// fix commit, and an untagged branch with a chore commit. It returns a map
// of branch name to commit id, plus "ORIGIN" mapped to the repository path.
func MakeStandardRepo(t *testing.T, gitDir string) map[string]string {
	t.Helper()
	RequireGit(t)

	repoName := filepath.Base(gitDir)
	commits := map[string]string{"ORIGIN": gitDir}

	require.NoError(t, os.MkdirAll(gitDir, 0755))
	RunGit(t, gitDir, "init", "--initial-branch", "master")
	RunGit(t, gitDir, "config", "user.email", "bomtool-test@example.com")
	RunGit(t, gitDir, "config", "user.name", "bomtool test")
	// Allow pushing to the checked out branch from clones.
	RunGit(t, gitDir, "config", "receive.denyCurrentBranch", "ignore")

	commitFile(t, gitDir, repoName+"-basefile.txt", "feat(first): first commit")
	RunGit(t, gitDir, "tag", BaseVersionTag)
	commits["master"] = RunGit(t, gitDir, "rev-parse", "HEAD")

	RunGit(t, gitDir, "checkout", "-b", PatchBranch)
	commitFile(t, gitDir, repoName+"-patchfile.txt", "fix(patch): added patch change")
	commits[PatchBranch] = RunGit(t, gitDir, "rev-parse", "HEAD")

	RunGit(t, gitDir, "checkout", "master")
	RunGit(t, gitDir, "checkout", "-b", UntaggedBranch)
	commitFile(t, gitDir, repoName+"-untagged.txt", "chore(uniq): untagged commit")
	commits[UntaggedBranch] = RunGit(t, gitDir, "rev-parse", "HEAD")

	RunGit(t, gitDir, "checkout", "master")
	return commits
}

// MakeStandardRepos builds the three standard fixture repositories under
// baseDir, arranged as <host>/<owner>/<name> so a filesystem root can act
// as the git server. It returns the per-repository commit maps.
func MakeStandardRepos(t *testing.T, baseDir string) map[string]map[string]string {
	t.Helper()

	result := map[string]map[string]string{}
	for name, location := range map[string][2]string{
		"normal-test-service": {StandardGitHost, StandardGitOwner},
		"extra-test-repo":     {StandardGitHost, StandardGitOwner},
		"outlier-test-repo":   {OutlierGitHost, OutlierGitOwner},
	} {
		path := filepath.Join(baseDir, location[0], location[1], name)
		result[name] = MakeStandardRepo(t, path)
	}
	return result
}
