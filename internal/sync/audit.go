// Copyright (c) 2026 Repofleet Authors
// Repofleet - shared file propagation for repository fleets
// This source code is licensed under the MIT license found in the LICENSE file.

package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/repofleet/repofleet/internal/db"
	"github.com/repofleet/repofleet/internal/gitrepo"
	"github.com/repofleet/repofleet/internal/manifest"
	"github.com/repofleet/repofleet/internal/model"
)

// AuditRepository compares a fleet member's working copy against the base
// repository and reports any divergence. The working copy is refreshed
// first so the comparison runs against the remote's current state.
func AuditRepository(ctx context.Context, fleet Fleet, repo model.Repository, m *manifest.Manifest, rev *model.ManifestRevision) (*model.DriftAnalysis, error) {
	dir := fleet.RepoDir(repo.Name)
	if err := gitrepo.Checkout(ctx, dir, repo.RemoteURL, repo.Branch); err != nil {
		return nil, err
	}
	return AnalyzeWorkingCopy(fleet.BaseDir(), dir, repo, m, rev)
}

// AnalyzeWorkingCopy performs the drift comparison without touching the
// network. Split out from AuditRepository for testability.
func AnalyzeWorkingCopy(baseDir, dir string, repo model.Repository, m *manifest.Manifest, rev *model.ManifestRevision) (*model.DriftAnalysis, error) {
	analysis := &model.DriftAnalysis{}
	if rev != nil {
		analysis.ExpectedSerial = rev.Serial
		analysis.ActualSerial = repo.Serial
		analysis.SerialStale = repo.Serial < rev.Serial
	}

	// The base repository is the reference; it cannot drift from itself.
	// Only the serial comparison applies to it.
	if filepath.Clean(baseDir) == filepath.Clean(dir) {
		analysis.Classify()
		return analysis, nil
	}

	for _, f := range m.Files {
		basePath := filepath.Join(baseDir, f)
		repoPath := filepath.Join(dir, f)

		baseExists := fileExists(basePath)
		repoExists := fileExists(repoPath)

		if m.IsExcluded(repo.Name, f) {
			if repoExists {
				analysis.ExcludedPresent = append(analysis.ExcludedPresent, f)
			}
			continue
		}
		if !baseExists {
			// Nothing to propagate; the base audit will flag this.
			continue
		}
		if !repoExists {
			analysis.MissingFiles = append(analysis.MissingFiles, f)
			continue
		}

		baseHash, err := manifest.HashFile(basePath)
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s in base: %w", f, err)
		}
		repoHash, err := manifest.HashFile(repoPath)
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s in %s: %w", f, repo.Name, err)
		}
		if baseHash != repoHash {
			analysis.ModifiedFiles = append(analysis.ModifiedFiles, f)
		}
	}

	analysis.Classify()
	return analysis, nil
}

// RecordDrift persists the outcome of an audit: drift events are stored per
// finding and the repository's dirty flag is updated to match.
func RecordDrift(repo model.Repository, analysis *model.DriftAnalysis) error {
	if analysis.HasDrift {
		details := analysis.Summary()
		if len(analysis.ModifiedFiles) > 0 {
			details += ", modified: " + strings.Join(analysis.ModifiedFiles, ", ")
		}
		if len(analysis.MissingFiles) > 0 {
			details += ", missing: " + strings.Join(analysis.MissingFiles, ", ")
		}
		if len(analysis.ExcludedPresent) > 0 {
			details += ", excluded-but-present: " + strings.Join(analysis.ExcludedPresent, ", ")
		}
		if err := db.RecordDriftEvent(repo.ID, analysis.Classification, details); err != nil {
			return err
		}
	}
	return db.UpdateRepositoryDirty(repo.ID, analysis.HasDrift)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
