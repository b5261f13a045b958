// Copyright (c) 2026 Repofleet Authors
// Repofleet - shared file propagation for repository fleets
// This source code is licensed under the MIT license found in the LICENSE file.

// Package gitrepo wraps the git command line for working-copy operations.
// Repofleet shells out to the system git binary so that the operator's
// existing credential helpers, SSH agent and global configuration apply
// unchanged to every clone, pull and push.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/repofleet/repofleet/internal/logging"
)

// gitBinary is the executable name resolved via PATH. Tests point this at a
// stub.
var gitBinary = "git"

// OpError describes a failed git invocation, carrying the captured output
// for diagnostics.
type OpError struct {
	Repo   string
	Args   []string
	Output string
	Err    error
}

func (e *OpError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out != "" {
		return fmt.Sprintf("git %s failed for %s: %v: %s", strings.Join(e.Args, " "), e.Repo, e.Err, out)
	}
	return fmt.Sprintf("git %s failed for %s: %v", strings.Join(e.Args, " "), e.Repo, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// run executes git with the given arguments in dir and returns the combined
// output.
func run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, gitBinary, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), &OpError{Repo: filepath.Base(dir), Args: args, Output: string(out), Err: err}
	}
	return string(out), nil
}

// Checkout ensures a working copy for remoteURL exists at dir. An existing
// clone is brought up to date with its remote; otherwise a fresh clone is
// made. A non-empty branch pins the checkout to that branch.
func Checkout(ctx context.Context, dir, remoteURL, branch string) error {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		logging.Debugf("updating %s", dir)
		// Local state never wins over the remote; the working copy is a
		// propagation target, not a place to keep edits.
		if _, err := run(ctx, dir, "reset", "--quiet", "--hard", "origin/HEAD"); err != nil {
			return err
		}
		if _, err := run(ctx, dir, "remote", "prune", "origin"); err != nil {
			return err
		}
		if branch != "" {
			if _, err := run(ctx, dir, "checkout", "--quiet", branch); err != nil {
				return err
			}
		}
		// A failed pull (offline, diverged remote HEAD) is logged but not
		// fatal; the sync proceeds against the reset working copy.
		if _, err := run(ctx, dir, "pull", "--quiet"); err != nil {
			logging.Warnf("pull failed for %s: %v", filepath.Base(dir), err)
		}
		return nil
	}

	logging.Debugf("cloning %s into %s", remoteURL, dir)
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("failed to create fleet root: %w", err)
	}
	args := []string{"clone", "--quiet"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, remoteURL, dir)
	_, err := run(ctx, filepath.Dir(dir), args...)
	return err
}

// StageAll stages every change in the working copy.
func StageAll(ctx context.Context, dir string) error {
	_, err := run(ctx, dir, "add", ".")
	return err
}

// HasStagedChanges reports whether the index differs from HEAD.
func HasStagedChanges(ctx context.Context, dir string) (bool, error) {
	_, err := run(ctx, dir, "diff", "--cached", "--quiet", "--exit-code")
	if err == nil {
		return false, nil
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		var exitErr *exec.ExitError
		if errors.As(opErr.Err, &exitErr) && exitErr.ExitCode() == 1 {
			return true, nil
		}
	}
	return false, err
}

// Commit records the staged changes with the given message.
func Commit(ctx context.Context, dir, message string) error {
	_, err := run(ctx, dir, "commit", "--quiet", "-m", message)
	return err
}

// Push publishes local commits to the remote.
func Push(ctx context.Context, dir string) error {
	_, err := run(ctx, dir, "push", "--quiet")
	return err
}

// HeadCommit returns the current HEAD commit hash of the working copy.
func HeadCommit(ctx context.Context, dir string) (string, error) {
	out, err := run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
