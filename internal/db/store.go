// Copyright (c) 2026 Repofleet Authors
// Repofleet - shared file propagation for repository fleets
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"time"

	"github.com/repofleet/repofleet/internal/model"
)

// Store defines the interface for all database operations in Repofleet.
// This allows for multiple database backends to be implemented.
type Store interface {
	// Repository methods
	GetAllRepositories() ([]model.Repository, error)
	GetAllActiveRepositories() ([]model.Repository, error)
	GetRepositoryByName(name string) (*model.Repository, error)
	AddRepository(name, remoteURL, branch, label, tags string) (int, error)
	DeleteRepository(id int) error
	UpdateRepositorySerial(id, serial int) error
	ToggleRepositoryStatus(id int) error
	UpdateRepositoryLabel(id int, label string) error
	UpdateRepositoryTags(id int, tags string) error
	UpdateRepositoryDirty(id int, dirty bool) error
	TouchRepositorySynced(id int, at time.Time) error

	// Manifest revision methods
	CreateManifestRevision(contentHash string) (int, error)
	GetActiveManifestRevision() (*model.ManifestRevision, error)
	GetManifestRevisionBySerial(serial int) (*model.ManifestRevision, error)
	HasManifestRevisions() (bool, error)

	// Host key methods
	GetKnownHostKey(hostname string) (string, error)
	AddKnownHostKey(hostname, key string) error

	// Audit log methods
	GetAllAuditLogEntries() ([]model.AuditLogEntry, error)
	LogAction(action string, details string) error

	// Drift event methods
	RecordDriftEvent(repositoryID int, driftType model.DriftClassification, details string) error
	GetDriftEventsForRepository(repositoryID int) ([]model.DriftEvent, error)

	// Backup methods
	ExportDataForBackup() (*model.BackupData, error)
	ImportDataFromBackup(backup *model.BackupData) error
	IntegrateDataFromBackup(backup *model.BackupData) error
}
