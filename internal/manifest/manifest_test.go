package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultPath)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeManifest(t, `
files:
  - .pre-commit-config.yaml
  - .github/renovate.json
`)
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(m.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(m.Files))
	}
	if m.CommitMessage != DefaultCommitMessage {
		t.Errorf("expected default commit message, got %q", m.CommitMessage)
	}
}

func TestLoad_CustomCommitMessage(t *testing.T) {
	path := writeManifest(t, `
files:
  - SECURITY.md
commit_message: "chore: refresh policy files"
`)
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.CommitMessage != "chore: refresh policy files" {
		t.Errorf("unexpected commit message: %q", m.CommitMessage)
	}
}

func TestLoad_RejectsBadPaths(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{"empty file list", "files: []\n", "no files"},
		{"absolute path", "files:\n  - /etc/passwd\n", "must be relative"},
		{"escaping path", "files:\n  - ../outside.txt\n", "must not escape"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeManifest(t, tc.content)
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestFilesFor_Excludes(t *testing.T) {
	m := &Manifest{
		Files: []string{".pre-commit-config.yaml", ".github/renovate.json"},
		Excludes: map[string][]string{
			"social-docs": {".github/renovate.json"},
		},
	}
	files := m.FilesFor("social-docs")
	if len(files) != 1 || files[0] != ".pre-commit-config.yaml" {
		t.Errorf("unexpected files for social-docs: %v", files)
	}
	if got := m.FilesFor("social-core"); len(got) != 2 {
		t.Errorf("unexpected files for social-core: %v", got)
	}
	if !m.IsExcluded("social-docs", ".github/renovate.json") {
		t.Error("expected renovate.json to be excluded for social-docs")
	}
	if m.IsExcluded("social-core", ".github/renovate.json") {
		t.Error("renovate.json should not be excluded for social-core")
	}
}

func TestHash_TracksContentChanges(t *testing.T) {
	base := t.TempDir()
	if err := os.WriteFile(filepath.Join(base, "SECURITY.md"), []byte("report to security@"), 0o644); err != nil {
		t.Fatal(err)
	}
	m := &Manifest{Files: []string{"SECURITY.md"}}

	h1, err := m.Hash(base)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	h2, err := m.Hash(base)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if h1 != h2 {
		t.Error("hash should be stable for unchanged content")
	}

	if err := os.WriteFile(filepath.Join(base, "SECURITY.md"), []byte("report via advisory"), 0o644); err != nil {
		t.Fatal(err)
	}
	h3, err := m.Hash(base)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if h3 == h1 {
		t.Error("hash should change when a shared file changes")
	}
}

func TestHash_MissingFileDoesNotFail(t *testing.T) {
	m := &Manifest{Files: []string{"not-there.txt"}}
	if _, err := m.Hash(t.TempDir()); err != nil {
		t.Fatalf("Hash should tolerate missing files: %v", err)
	}
}
