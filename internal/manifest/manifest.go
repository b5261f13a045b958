// Copyright (c) 2026 Repofleet Authors
// Repofleet - shared file propagation for repository fleets
// This source code is licensed under the MIT license found in the LICENSE file.

// Package manifest defines the set of shared files propagated from the base
// repository to the rest of the fleet. The manifest lives as a YAML file in
// the fleet root and is hashed to detect content changes between syncs.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
)

// DefaultPath is the manifest filename looked up in the fleet root when the
// configuration does not name one.
const DefaultPath = "repofleet.manifest.yaml"

// DefaultCommitMessage is used when the manifest does not set one.
const DefaultCommitMessage = "chore: update shared files\n\nAutomated update of shared files from the base repository."

// Manifest describes which files are propagated and how the resulting
// commit is labeled.
type Manifest struct {
	// Files are the paths, relative to the repository root, that are copied
	// from the base repository into every fleet member.
	Files []string `yaml:"files"`
	// CommitMessage labels the generated commit. Optional.
	CommitMessage string `yaml:"commit_message,omitempty"`
	// Excludes maps a repository name to manifest files that should not be
	// propagated to it.
	Excludes map[string][]string `yaml:"excludes,omitempty"`
}

// Load reads and validates a manifest from path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.CommitMessage == "" {
		m.CommitMessage = DefaultCommitMessage
	}
	return &m, nil
}

// Validate checks the manifest for unusable entries. File paths must be
// relative and must not escape the repository root.
func (m *Manifest) Validate() error {
	if len(m.Files) == 0 {
		return fmt.Errorf("manifest lists no files")
	}
	check := func(f string) error {
		if f == "" {
			return fmt.Errorf("manifest contains an empty file path")
		}
		if filepath.IsAbs(f) {
			return fmt.Errorf("manifest file path must be relative: %s", f)
		}
		for _, part := range strings.Split(filepath.ToSlash(f), "/") {
			if part == ".." {
				return fmt.Errorf("manifest file path must not escape the repository: %s", f)
			}
		}
		return nil
	}
	for _, f := range m.Files {
		if err := check(f); err != nil {
			return err
		}
	}
	for repo, files := range m.Excludes {
		for _, f := range files {
			if err := check(f); err != nil {
				return fmt.Errorf("excludes for %s: %w", repo, err)
			}
		}
	}
	return nil
}

// FilesFor returns the manifest files that apply to the named repository,
// honoring its exclude list. Order follows the manifest.
func (m *Manifest) FilesFor(repoName string) []string {
	excluded := map[string]bool{}
	for _, f := range m.Excludes[repoName] {
		excluded[f] = true
	}
	var out []string
	for _, f := range m.Files {
		if !excluded[f] {
			out = append(out, f)
		}
	}
	return out
}

// IsExcluded reports whether file is excluded for the named repository.
func (m *Manifest) IsExcluded(repoName, file string) bool {
	for _, f := range m.Excludes[repoName] {
		if f == file {
			return true
		}
	}
	return false
}

// Hash computes a stable content hash over the manifest's file set as found
// in baseDir. It covers both file names and contents, so a changed, added or
// renamed shared file yields a new hash. Missing files contribute a marker
// instead of failing, so a hash can be computed before the base repository
// is fully populated.
func (m *Manifest) Hash(baseDir string) (string, error) {
	files := append([]string(nil), m.Files...)
	sort.Strings(files)

	h := sha256.New()
	for _, f := range files {
		fmt.Fprintf(h, "file:%s\n", filepath.ToSlash(f))
		src, err := os.Open(filepath.Join(baseDir, f))
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Fprint(h, "absent\n")
				continue
			}
			return "", fmt.Errorf("failed to hash %s: %w", f, err)
		}
		if _, err := io.Copy(h, src); err != nil {
			_ = src.Close()
			return "", fmt.Errorf("failed to hash %s: %w", f, err)
		}
		_ = src.Close()
		fmt.Fprint(h, "\n")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile computes the content hash of a single file. Used when comparing
// individual fleet copies against the base repository.
func HashFile(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = src.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, src); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
