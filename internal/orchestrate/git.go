// Package orchestrate drives a full inspection run: clone or pull the model
// repository, walk its entity files, fan them out across the inspection
// engine, and commit/push whatever changed.
package orchestrate

import (
	"context"
	"net/url"
	"os"
	"os/exec"

	"github.com/archi-tools/inspector/internal/xerrors"
)

// Git shells out to the git binary, grounded on the original's GitPython
// usage (clone, pull, add, commit, push) with no porcelain library in the
// pack to wrap instead.
type Git struct {
	dir string
}

// NewGit binds a Git to the local clone directory dir.
func NewGit(dir string) *Git {
	return &Git{dir: dir}
}

func (g *Git) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, xerrors.FailedToWithDetails("run git command", "git", args[0], err)
	}
	return out, nil
}

// EnsureClone clones repoURL into g.dir if it doesn't exist yet, or pulls
// the current branch if it does.
func (g *Git) EnsureClone(ctx context.Context, repoURL string) error {
	info, err := os.Stat(g.dir)
	switch {
	case os.IsNotExist(err):
		_, err := g.run(ctx, "", "clone", repoURL, g.dir)
		return err
	case err != nil:
		return xerrors.FailedTo("stat local clone dir", err)
	case !info.IsDir():
		return xerrors.ConfigurationError("clone dir", g.dir+" exists and is not a directory")
	default:
		_, err := g.run(ctx, g.dir, "pull", "--ff-only")
		return err
	}
}

// StageAll stages every modified and untracked file under g.dir.
func (g *Git) StageAll(ctx context.Context) error {
	_, err := g.run(ctx, g.dir, "add", "-A")
	return err
}

// HasStagedChanges reports whether anything is staged for commit.
func (g *Git) HasStagedChanges(ctx context.Context) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--cached", "--quiet")
	cmd.Dir = g.dir
	err := cmd.Run()
	if err == nil {
		return false, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, xerrors.FailedTo("check staged changes", err)
}

// Commit commits staged changes with the given message, authored as the
// inspector service identity.
func (g *Git) Commit(ctx context.Context, message string) error {
	_, err := g.run(ctx, g.dir,
		"-c", "user.name=Archi Power Tools Inspector",
		"-c", "user.email=inspector@localhost",
		"commit", "-m", message)
	return err
}

// Push pushes the current branch to its upstream.
func (g *Git) Push(ctx context.Context) error {
	_, err := g.run(ctx, g.dir, "push")
	return err
}

// RedactURL replaces a password embedded in a repository URL with
// "REDACTED" so it's safe to log, grounded on the original's redact_url.
func RedactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.User == nil {
		return raw
	}
	if _, hasPassword := parsed.User.Password(); !hasPassword {
		return raw
	}
	redacted := *parsed
	redacted.User = url.UserPassword(parsed.User.Username(), "REDACTED")
	return redacted.String()
}
