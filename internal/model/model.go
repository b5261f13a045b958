// Copyright (c) 2026 Repofleet Authors
// Repofleet - shared file propagation for repository fleets
// This source code is licensed under the MIT license found in the LICENSE file.

// package model defines the core data structures shared across Repofleet.
package model

import (
	"fmt"
	"time"
)

// Repository represents one managed repository in the fleet. This is the
// core entity that shared files are propagated to.
type Repository struct {
	ID        int
	Name      string
	RemoteURL string
	Branch    string
	Label     string
	Tags      string
	IsActive  bool
	// Serial is the manifest revision last applied to this repository.
	// A serial of 0 means the repository has never been synced.
	Serial int
	// IsDirty is set when a sync or audit detected local divergence that
	// has not been reconciled yet.
	IsDirty      bool
	LastSyncedAt *time.Time
}

// String returns the human-readable identifier for the repository,
// preferring the label when one is set.
func (r Repository) String() string {
	if r.Label != "" {
		return fmt.Sprintf("%s (%s)", r.Label, r.Name)
	}
	return r.Name
}

// ManifestRevision identifies one published state of the shared file set.
// A new revision is created whenever the base repository's copies of the
// manifest files change. Serials increase monotonically and are never reused.
type ManifestRevision struct {
	ID          int
	Serial      int
	ContentHash string
	IsActive    bool
	CreatedAt   time.Time
}

// KnownHost represents a trusted host's public SSH key, used when mirroring
// the shared file set to non-git targets.
type KnownHost struct {
	Hostname string `json:"hostname"`
	Key      string `json:"key"`
}

// AuditLogEntry represents a single recorded action in the audit trail.
type AuditLogEntry struct {
	ID        int
	Timestamp string
	Username  string
	Action    string
	Details   string
}

// SyncResult carries the outcome of a sync or audit run for one repository.
type SyncResult struct {
	Repository Repository
	// Committed reports whether the run produced a commit (sync only).
	Committed bool
	// FilesCopied is the number of manifest files written into the
	// working copy.
	FilesCopied int
	Error       error
}
