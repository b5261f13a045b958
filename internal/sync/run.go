// Copyright (c) 2026 Repofleet Authors
// Repofleet - shared file propagation for repository fleets
// This source code is licensed under the MIT license found in the LICENSE file.

// Package sync implements the propagation cycle: bring a fleet member's
// working copy up to date, copy the manifest files from the base repository,
// and commit and push when anything changed.
package sync

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/repofleet/repofleet/internal/db"
	"github.com/repofleet/repofleet/internal/gitrepo"
	"github.com/repofleet/repofleet/internal/i18n"
	"github.com/repofleet/repofleet/internal/logging"
	"github.com/repofleet/repofleet/internal/manifest"
	"github.com/repofleet/repofleet/internal/model"
)

// Fleet carries the resolved filesystem layout for a sync run.
type Fleet struct {
	// Root is the directory holding all working copies.
	Root string
	// BaseName is the repository the shared files originate from.
	BaseName string
}

// BaseDir returns the working copy path of the base repository.
func (f Fleet) BaseDir() string {
	return filepath.Join(f.Root, f.BaseName)
}

// RepoDir returns the working copy path for a fleet member.
func (f Fleet) RepoDir(name string) string {
	return filepath.Join(f.Root, name)
}

// RunSyncForRepository performs the full propagation cycle for a single
// repository: update or clone the working copy, copy the manifest files from
// the base repository, and commit and push when the index changed. On
// success the repository's serial is advanced to the given revision and its
// dirty flag is cleared.
func RunSyncForRepository(ctx context.Context, fleet Fleet, repo model.Repository, m *manifest.Manifest, rev *model.ManifestRevision) (*model.SyncResult, error) {
	res := &model.SyncResult{Repository: repo}

	dir := fleet.RepoDir(repo.Name)
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		logging.Infof("%s", i18n.T("sync.updating", repo.String()))
	} else {
		logging.Infof("%s", i18n.T("sync.cloning", repo.String()))
	}
	if err := gitrepo.Checkout(ctx, dir, repo.RemoteURL, repo.Branch); err != nil {
		res.Error = err
		return res, err
	}

	// The base repository only gets its working copy refreshed; it is the
	// source of the shared files, never a target.
	if repo.Name == fleet.BaseName {
		if err := finishSync(repo, rev); err != nil {
			res.Error = err
			return res, err
		}
		return res, nil
	}

	copied, err := copyManifestFiles(fleet.BaseDir(), dir, m.FilesFor(repo.Name))
	if err != nil {
		res.Error = err
		return res, err
	}
	res.FilesCopied = len(copied)

	if err := gitrepo.StageAll(ctx, dir); err != nil {
		res.Error = err
		return res, err
	}
	changed, err := gitrepo.HasStagedChanges(ctx, dir)
	if err != nil {
		res.Error = err
		return res, err
	}
	if changed {
		logging.Infof("%s", i18n.T("sync.committing", repo.String()))
		if err := gitrepo.Commit(ctx, dir, m.CommitMessage); err != nil {
			res.Error = err
			return res, err
		}
		if err := gitrepo.Push(ctx, dir); err != nil {
			res.Error = err
			return res, err
		}
		res.Committed = true
	}

	if err := finishSync(repo, rev); err != nil {
		res.Error = err
		return res, err
	}
	return res, nil
}

// finishSync records a successful sync in the database. The serial update is
// retried a few times because concurrent syncs can briefly lock SQLite.
func finishSync(repo model.Repository, rev *model.ManifestRevision) error {
	if rev == nil {
		return fmt.Errorf("%s", i18n.T("sync.error_no_revision"))
	}
	var err error
	for i := 0; i < 5; i++ {
		if err = db.UpdateRepositorySerial(repo.ID, rev.Serial); err == nil || !strings.Contains(err.Error(), "database is locked") {
			break
		}
		time.Sleep(time.Duration(50+rand.Intn(100)) * time.Millisecond)
	}
	if err != nil {
		return err
	}
	if err := db.UpdateRepositoryDirty(repo.ID, false); err != nil {
		return err
	}
	return db.TouchRepositorySynced(repo.ID, time.Now().UTC())
}

// copyManifestFiles copies the listed files from baseDir into destDir,
// creating intermediate directories as needed. It returns the paths that
// were copied. Files absent from the base repository are skipped; they will
// surface as drift on the next audit of the base.
func copyManifestFiles(baseDir, destDir string, files []string) ([]string, error) {
	var copied []string
	for _, f := range files {
		src := filepath.Join(baseDir, f)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		dst := filepath.Join(destDir, f)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return copied, fmt.Errorf("failed to create directory for %s: %w", f, err)
		}
		if err := copyFile(src, dst); err != nil {
			return copied, fmt.Errorf("failed to copy %s: %w", f, err)
		}
		copied = append(copied, f)
	}
	return copied, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
