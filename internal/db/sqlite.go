// Copyright (c) 2026 Repofleet Authors
// Repofleet - shared file propagation for repository fleets
// This source code is licensed under the MIT license found in the LICENSE file.

// Package db provides the data access layer for Repofleet.
// This file contains the SQLite implementation of the database store.
package db // import "github.com/repofleet/repofleet/internal/db"

import (
	"fmt"
	"time"

	"github.com/repofleet/repofleet/internal/model"
	"github.com/uptrace/bun"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SqliteStore is the SQLite implementation of the Store interface.
type SqliteStore struct {
	bun *bun.DB
}

// NewSqliteStore returns the active SQLite store. The actual initialization
// happens in InitDB.
func NewSqliteStore(dataSourceName string) (*SqliteStore, error) {
	s, ok := store.(*SqliteStore)
	if !ok {
		return nil, fmt.Errorf("internal error: store is not a *SqliteStore")
	}
	return s, nil
}

// GetAllRepositories retrieves all repositories from the database.
func (s *SqliteStore) GetAllRepositories() ([]model.Repository, error) {
	return GetAllRepositoriesBun(s.bun)
}

// GetAllActiveRepositories retrieves all active repositories.
func (s *SqliteStore) GetAllActiveRepositories() ([]model.Repository, error) {
	return GetAllActiveRepositoriesBun(s.bun)
}

// GetRepositoryByName retrieves a repository by its unique name.
func (s *SqliteStore) GetRepositoryByName(name string) (*model.Repository, error) {
	return GetRepositoryByNameBun(s.bun, name)
}

// AddRepository adds a new repository to the fleet.
func (s *SqliteStore) AddRepository(name, remoteURL, branch, label, tags string) (int, error) {
	id, err := AddRepositoryBun(s.bun, name, remoteURL, branch, label, tags)
	if err == nil {
		_ = s.LogAction("ADD_REPOSITORY", fmt.Sprintf("repository: %s (%s)", name, remoteURL))
	}
	return id, err
}

// DeleteRepository removes a repository from the fleet by its ID.
func (s *SqliteStore) DeleteRepository(id int) error {
	// Get repository details before deleting for logging.
	details := fmt.Sprintf("id: %d", id)
	var name string
	if err := QueryRawInto(ctxBG(), s.bun, &name, "SELECT name FROM repositories WHERE id = ?", id); err == nil {
		details = fmt.Sprintf("repository: %s", name)
	}
	err := DeleteRepositoryBun(s.bun, id)
	if err == nil {
		_ = s.LogAction("DELETE_REPOSITORY", details)
	}
	return err
}

// UpdateRepositorySerial sets the manifest serial for a given repository ID.
func (s *SqliteStore) UpdateRepositorySerial(id, serial int) error {
	return UpdateRepositorySerialBun(s.bun, id, serial)
}

// ToggleRepositoryStatus flips the active status of a repository.
func (s *SqliteStore) ToggleRepositoryStatus(id int) error {
	err := ToggleRepositoryStatusBun(s.bun, id)
	if err == nil {
		_ = s.LogAction("TOGGLE_REPOSITORY_STATUS", fmt.Sprintf("repository_id: %d", id))
	}
	return err
}

// UpdateRepositoryLabel updates the label for a given repository.
func (s *SqliteStore) UpdateRepositoryLabel(id int, label string) error {
	err := UpdateRepositoryLabelBun(s.bun, id, label)
	if err == nil {
		_ = s.LogAction("UPDATE_REPOSITORY_LABEL", fmt.Sprintf("repository_id: %d, new_label: '%s'", id, label))
	}
	return err
}

// UpdateRepositoryTags updates the tags for a given repository.
func (s *SqliteStore) UpdateRepositoryTags(id int, tags string) error {
	err := UpdateRepositoryTagsBun(s.bun, id, tags)
	if err == nil {
		_ = s.LogAction("UPDATE_REPOSITORY_TAGS", fmt.Sprintf("repository_id: %d, new_tags: '%s'", id, tags))
	}
	return err
}

// UpdateRepositoryDirty sets or clears the is_dirty flag for a repository.
func (s *SqliteStore) UpdateRepositoryDirty(id int, dirty bool) error {
	return UpdateRepositoryDirtyBun(s.bun, id, dirty)
}

// TouchRepositorySynced records the time of the last successful sync.
func (s *SqliteStore) TouchRepositorySynced(id int, at time.Time) error {
	return TouchRepositorySyncedBun(s.bun, id, at)
}

// CreateManifestRevision publishes a new manifest revision.
func (s *SqliteStore) CreateManifestRevision(contentHash string) (int, error) {
	serial, err := CreateManifestRevisionBun(s.bun, contentHash)
	if err == nil {
		_ = s.LogAction("CREATE_MANIFEST_REVISION", fmt.Sprintf("serial: %d", serial))
	}
	return serial, err
}

// GetActiveManifestRevision retrieves the currently active manifest revision.
func (s *SqliteStore) GetActiveManifestRevision() (*model.ManifestRevision, error) {
	return GetActiveManifestRevisionBun(s.bun)
}

// GetManifestRevisionBySerial retrieves a manifest revision by serial.
func (s *SqliteStore) GetManifestRevisionBySerial(serial int) (*model.ManifestRevision, error) {
	return GetManifestRevisionBySerialBun(s.bun, serial)
}

// HasManifestRevisions checks if any manifest revisions exist.
func (s *SqliteStore) HasManifestRevisions() (bool, error) {
	return HasManifestRevisionsBun(s.bun)
}

// GetKnownHostKey retrieves the trusted public key for a given hostname.
func (s *SqliteStore) GetKnownHostKey(hostname string) (string, error) {
	return GetKnownHostKeyBun(s.bun, hostname)
}

// AddKnownHostKey adds a new trusted host key to the database.
func (s *SqliteStore) AddKnownHostKey(hostname, key string) error {
	err := AddKnownHostKeyBun(s.bun, hostname, key)
	if err == nil {
		_ = s.LogAction("TRUST_HOST", fmt.Sprintf("hostname: %s", hostname))
	}
	return err
}

// GetAllAuditLogEntries retrieves all audit log entries, most recent first.
func (s *SqliteStore) GetAllAuditLogEntries() ([]model.AuditLogEntry, error) {
	return GetAllAuditLogEntriesBun(s.bun)
}

// LogAction records an audit trail event.
func (s *SqliteStore) LogAction(action string, details string) error {
	return LogActionBun(s.bun, action, details)
}

// RecordDriftEvent records a detected divergence for a repository.
func (s *SqliteStore) RecordDriftEvent(repositoryID int, driftType model.DriftClassification, details string) error {
	return RecordDriftEventBun(s.bun, repositoryID, string(driftType), details)
}

// GetDriftEventsForRepository retrieves recorded drift events for a repository.
func (s *SqliteStore) GetDriftEventsForRepository(repositoryID int) ([]model.DriftEvent, error) {
	return GetDriftEventsForRepositoryBun(s.bun, repositoryID)
}

// ExportDataForBackup retrieves all data from the database for a backup.
func (s *SqliteStore) ExportDataForBackup() (*model.BackupData, error) {
	return ExportDataForBackupBun(s.bun)
}

// ImportDataFromBackup restores the database from a backup data structure.
func (s *SqliteStore) ImportDataFromBackup(backup *model.BackupData) error {
	err := ImportDataFromBackupBun(s.bun, backup)
	if err == nil {
		_ = s.LogAction("RESTORE_BACKUP", "mode: full")
	}
	return err
}

// IntegrateDataFromBackup restores from a backup without wiping existing data.
func (s *SqliteStore) IntegrateDataFromBackup(backup *model.BackupData) error {
	err := IntegrateDataFromBackupBun(s.bun, backup)
	if err == nil {
		_ = s.LogAction("RESTORE_BACKUP", "mode: integrate")
	}
	return err
}
