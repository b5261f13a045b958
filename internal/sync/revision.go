// Copyright (c) 2026 Repofleet Authors
// Repofleet - shared file propagation for repository fleets
// This source code is licensed under the MIT license found in the LICENSE file.

package sync

import (
	"github.com/repofleet/repofleet/internal/db"
	"github.com/repofleet/repofleet/internal/manifest"
	"github.com/repofleet/repofleet/internal/model"
)

// RefreshRevision hashes the manifest file set in the base working copy and
// publishes a new manifest revision when the content changed since the last
// active revision. It returns the revision that is active afterwards and
// whether a new one was created.
func RefreshRevision(baseDir string, m *manifest.Manifest) (*model.ManifestRevision, bool, error) {
	hash, err := m.Hash(baseDir)
	if err != nil {
		return nil, false, err
	}

	active, err := db.GetActiveManifestRevision()
	if err != nil {
		return nil, false, err
	}
	if active != nil && active.ContentHash == hash {
		return active, false, nil
	}

	if _, err := db.CreateManifestRevision(hash); err != nil {
		return nil, false, err
	}
	active, err = db.GetActiveManifestRevision()
	if err != nil {
		return nil, false, err
	}
	return active, true, nil
}
