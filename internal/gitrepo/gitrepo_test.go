package gitrepo

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// stubGit installs a fake git executable that logs its arguments and exits
// with the code named in the REPOFLEET_TEST_GIT_EXIT environment variable.
func stubGit(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub git script requires a POSIX shell")
	}
	dir := t.TempDir()
	logFile := filepath.Join(dir, "git.log")
	script := "#!/bin/sh\necho \"$@\" >> " + logFile + "\nexit ${REPOFLEET_TEST_GIT_EXIT:-0}\n"
	stub := filepath.Join(dir, "git-stub")
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write git stub: %v", err)
	}

	old := gitBinary
	gitBinary = stub
	t.Cleanup(func() { gitBinary = old })
	return logFile
}

func loggedCalls(t *testing.T, logFile string) []string {
	t.Helper()
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read git log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestCheckout_ClonesWhenMissing(t *testing.T) {
	logFile := stubGit(t)
	root := t.TempDir()

	dir := filepath.Join(root, "social-core")
	err := Checkout(context.Background(), dir, "git@github.com:python-social-auth/social-core.git", "")
	if err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}
	calls := loggedCalls(t, logFile)
	if len(calls) != 1 || !strings.HasPrefix(calls[0], "clone --quiet") {
		t.Fatalf("expected a single clone call, got %v", calls)
	}
	if !strings.Contains(calls[0], "social-core.git") {
		t.Errorf("clone should reference the remote URL: %s", calls[0])
	}
}

func TestCheckout_CloneWithBranch(t *testing.T) {
	logFile := stubGit(t)
	root := t.TempDir()

	dir := filepath.Join(root, "social-app-django")
	err := Checkout(context.Background(), dir, "git@github.com:python-social-auth/social-app-django.git", "main")
	if err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}
	calls := loggedCalls(t, logFile)
	if !strings.Contains(calls[0], "--branch main") {
		t.Errorf("clone should pin the branch: %s", calls[0])
	}
}

func TestCheckout_UpdatesExistingClone(t *testing.T) {
	logFile := stubGit(t)
	root := t.TempDir()

	dir := filepath.Join(root, "social-core")
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	err := Checkout(context.Background(), dir, "git@github.com:python-social-auth/social-core.git", "")
	if err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}
	calls := loggedCalls(t, logFile)
	if len(calls) != 3 {
		t.Fatalf("expected reset+prune+pull, got %v", calls)
	}
	if !strings.HasPrefix(calls[0], "reset --quiet --hard origin/HEAD") {
		t.Errorf("update should discard local state first: %v", calls)
	}
	if !strings.HasPrefix(calls[1], "remote prune origin") || !strings.HasPrefix(calls[2], "pull --quiet") {
		t.Errorf("unexpected update sequence: %v", calls)
	}
}

func TestCheckout_PullFailureIsTolerated(t *testing.T) {
	logFile := stubGit(t)
	root := t.TempDir()

	dir := filepath.Join(root, "social-core")
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	// Fail only the pull call.
	script := "#!/bin/sh\necho \"$@\" >> " + logFile + "\ncase \"$1\" in pull) exit 1;; esac\nexit 0\n"
	if err := os.WriteFile(gitBinary, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := Checkout(context.Background(), dir, "git@github.com:python-social-auth/social-core.git", ""); err != nil {
		t.Fatalf("a failed pull should not fail the checkout: %v", err)
	}
}

func TestHasStagedChanges(t *testing.T) {
	_ = stubGit(t)
	dir := t.TempDir()

	t.Setenv("REPOFLEET_TEST_GIT_EXIT", "0")
	changed, err := HasStagedChanges(context.Background(), dir)
	if err != nil {
		t.Fatalf("HasStagedChanges failed: %v", err)
	}
	if changed {
		t.Error("exit 0 means a clean index")
	}

	t.Setenv("REPOFLEET_TEST_GIT_EXIT", "1")
	changed, err = HasStagedChanges(context.Background(), dir)
	if err != nil {
		t.Fatalf("HasStagedChanges failed: %v", err)
	}
	if !changed {
		t.Error("exit 1 means staged changes exist")
	}

	t.Setenv("REPOFLEET_TEST_GIT_EXIT", "128")
	if _, err = HasStagedChanges(context.Background(), dir); err == nil {
		t.Error("exit 128 should surface as an error")
	}
}

func TestOpError_IncludesOutput(t *testing.T) {
	e := &OpError{Repo: "social-core", Args: []string{"push", "--quiet"}, Output: "permission denied\n", Err: os.ErrPermission}
	msg := e.Error()
	for _, want := range []string{"social-core", "push", "permission denied"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message missing %q: %s", want, msg)
		}
	}
}
