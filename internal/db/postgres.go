// Copyright (c) 2026 Repofleet Authors
// Repofleet - shared file propagation for repository fleets
// This source code is licensed under the MIT license found in the LICENSE file.

// Package db provides the data access layer for Repofleet.
// This file contains the PostgreSQL implementation of the database store.
package db // import "github.com/repofleet/repofleet/internal/db"

import (
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/repofleet/repofleet/internal/model"
	"github.com/uptrace/bun"
)

// PostgresStore is the PostgreSQL implementation of the Store interface.
type PostgresStore struct {
	bun *bun.DB
}

// NewPostgresStore returns the active PostgreSQL store. The actual
// initialization happens in InitDB.
func NewPostgresStore(dataSourceName string) (*PostgresStore, error) {
	s, ok := store.(*PostgresStore)
	if !ok {
		return nil, fmt.Errorf("internal error: store is not a *PostgresStore")
	}
	return s, nil
}

func (s *PostgresStore) GetAllRepositories() ([]model.Repository, error) {
	return GetAllRepositoriesBun(s.bun)
}

func (s *PostgresStore) GetAllActiveRepositories() ([]model.Repository, error) {
	return GetAllActiveRepositoriesBun(s.bun)
}

func (s *PostgresStore) GetRepositoryByName(name string) (*model.Repository, error) {
	return GetRepositoryByNameBun(s.bun, name)
}

func (s *PostgresStore) AddRepository(name, remoteURL, branch, label, tags string) (int, error) {
	id, err := AddRepositoryBun(s.bun, name, remoteURL, branch, label, tags)
	if err == nil {
		_ = s.LogAction("ADD_REPOSITORY", fmt.Sprintf("repository: %s (%s)", name, remoteURL))
	}
	return id, err
}

func (s *PostgresStore) DeleteRepository(id int) error {
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

func (s *PostgresStore) UpdateRepositorySerial(id, serial int) error {
	return UpdateRepositorySerialBun(s.bun, id, serial)
}

func (s *PostgresStore) ToggleRepositoryStatus(id int) error {
	err := ToggleRepositoryStatusBun(s.bun, id)
	if err == nil {
		_ = s.LogAction("TOGGLE_REPOSITORY_STATUS", fmt.Sprintf("repository_id: %d", id))
	}
	return err
}

func (s *PostgresStore) UpdateRepositoryLabel(id int, label string) error {
	err := UpdateRepositoryLabelBun(s.bun, id, label)
	if err == nil {
		_ = s.LogAction("UPDATE_REPOSITORY_LABEL", fmt.Sprintf("repository_id: %d, new_label: '%s'", id, label))
	}
	return err
}

func (s *PostgresStore) UpdateRepositoryTags(id int, tags string) error {
	err := UpdateRepositoryTagsBun(s.bun, id, tags)
	if err == nil {
		_ = s.LogAction("UPDATE_REPOSITORY_TAGS", fmt.Sprintf("repository_id: %d, new_tags: '%s'", id, tags))
	}
	return err
}

func (s *PostgresStore) UpdateRepositoryDirty(id int, dirty bool) error {
	return UpdateRepositoryDirtyBun(s.bun, id, dirty)
}

func (s *PostgresStore) TouchRepositorySynced(id int, at time.Time) error {
	return TouchRepositorySyncedBun(s.bun, id, at)
}

func (s *PostgresStore) CreateManifestRevision(contentHash string) (int, error) {
	serial, err := CreateManifestRevisionBun(s.bun, contentHash)
	if err == nil {
		_ = s.LogAction("CREATE_MANIFEST_REVISION", fmt.Sprintf("serial: %d", serial))
	}
	return serial, err
}

func (s *PostgresStore) GetActiveManifestRevision() (*model.ManifestRevision, error) {
	return GetActiveManifestRevisionBun(s.bun)
}

func (s *PostgresStore) GetManifestRevisionBySerial(serial int) (*model.ManifestRevision, error) {
	return GetManifestRevisionBySerialBun(s.bun, serial)
}

func (s *PostgresStore) HasManifestRevisions() (bool, error) {
	return HasManifestRevisionsBun(s.bun)
}

func (s *PostgresStore) GetKnownHostKey(hostname string) (string, error) {
	return GetKnownHostKeyBun(s.bun, hostname)
}

func (s *PostgresStore) AddKnownHostKey(hostname, key string) error {
	err := AddKnownHostKeyBun(s.bun, hostname, key)
	if err == nil {
		_ = s.LogAction("TRUST_HOST", fmt.Sprintf("hostname: %s", hostname))
	}
	return err
}

func (s *PostgresStore) GetAllAuditLogEntries() ([]model.AuditLogEntry, error) {
	return GetAllAuditLogEntriesBun(s.bun)
}

func (s *PostgresStore) LogAction(action string, details string) error {
	return LogActionBun(s.bun, action, details)
}

func (s *PostgresStore) RecordDriftEvent(repositoryID int, driftType model.DriftClassification, details string) error {
	return RecordDriftEventBun(s.bun, repositoryID, string(driftType), details)
}

func (s *PostgresStore) GetDriftEventsForRepository(repositoryID int) ([]model.DriftEvent, error) {
	return GetDriftEventsForRepositoryBun(s.bun, repositoryID)
}

func (s *PostgresStore) ExportDataForBackup() (*model.BackupData, error) {
	return ExportDataForBackupBun(s.bun)
}

func (s *PostgresStore) ImportDataFromBackup(backup *model.BackupData) error {
	err := ImportDataFromBackupBun(s.bun, backup)
	if err == nil {
		_ = s.LogAction("RESTORE_BACKUP", "mode: full")
	}
	return err
}

func (s *PostgresStore) IntegrateDataFromBackup(backup *model.BackupData) error {
	err := IntegrateDataFromBackupBun(s.bun, backup)
	if err == nil {
		_ = s.LogAction("RESTORE_BACKUP", "mode: integrate")
	}
	return err
}
