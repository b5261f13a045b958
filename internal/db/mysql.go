// Copyright (c) 2026 Repofleet Authors
// Repofleet - shared file propagation for repository fleets
// This source code is licensed under the MIT license found in the LICENSE file.

// Package db provides the data access layer for Repofleet.
// This file contains the MySQL implementation of the database store.
package db // import "github.com/repofleet/repofleet/internal/db"

import (
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/repofleet/repofleet/internal/model"
	"github.com/uptrace/bun"
)

// MySQLStore is the MySQL implementation of the Store interface.
type MySQLStore struct {
	bun *bun.DB
}

// NewMySQLStore returns the active MySQL store. The actual initialization
// happens in InitDB.
func NewMySQLStore(dataSourceName string) (*MySQLStore, error) {
	s, ok := store.(*MySQLStore)
	if !ok {
		return nil, fmt.Errorf("internal error: store is not a *MySQLStore")
	}
	return s, nil
}

func (s *MySQLStore) GetAllRepositories() ([]model.Repository, error) {
	return GetAllRepositoriesBun(s.bun)
}

func (s *MySQLStore) GetAllActiveRepositories() ([]model.Repository, error) {
	return GetAllActiveRepositoriesBun(s.bun)
}

func (s *MySQLStore) GetRepositoryByName(name string) (*model.Repository, error) {
	return GetRepositoryByNameBun(s.bun, name)
}

func (s *MySQLStore) AddRepository(name, remoteURL, branch, label, tags string) (int, error) {
	id, err := AddRepositoryBun(s.bun, name, remoteURL, branch, label, tags)
	if err == nil {
		_ = s.LogAction("ADD_REPOSITORY", fmt.Sprintf("repository: %s (%s)", name, remoteURL))
	}
	return id, err
}

func (s *MySQLStore) DeleteRepository(id int) error {
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

func (s *MySQLStore) UpdateRepositorySerial(id, serial int) error {
	return UpdateRepositorySerialBun(s.bun, id, serial)
}

func (s *MySQLStore) ToggleRepositoryStatus(id int) error {
	err := ToggleRepositoryStatusBun(s.bun, id)
	if err == nil {
		_ = s.LogAction("TOGGLE_REPOSITORY_STATUS", fmt.Sprintf("repository_id: %d", id))
	}
	return err
}

func (s *MySQLStore) UpdateRepositoryLabel(id int, label string) error {
	err := UpdateRepositoryLabelBun(s.bun, id, label)
	if err == nil {
		_ = s.LogAction("UPDATE_REPOSITORY_LABEL", fmt.Sprintf("repository_id: %d, new_label: '%s'", id, label))
	}
	return err
}

func (s *MySQLStore) UpdateRepositoryTags(id int, tags string) error {
	err := UpdateRepositoryTagsBun(s.bun, id, tags)
	if err == nil {
		_ = s.LogAction("UPDATE_REPOSITORY_TAGS", fmt.Sprintf("repository_id: %d, new_tags: '%s'", id, tags))
	}
	return err
}

func (s *MySQLStore) UpdateRepositoryDirty(id int, dirty bool) error {
	return UpdateRepositoryDirtyBun(s.bun, id, dirty)
}

func (s *MySQLStore) TouchRepositorySynced(id int, at time.Time) error {
	return TouchRepositorySyncedBun(s.bun, id, at)
}

func (s *MySQLStore) CreateManifestRevision(contentHash string) (int, error) {
	serial, err := CreateManifestRevisionBun(s.bun, contentHash)
	if err == nil {
		_ = s.LogAction("CREATE_MANIFEST_REVISION", fmt.Sprintf("serial: %d", serial))
	}
	return serial, err
}

func (s *MySQLStore) GetActiveManifestRevision() (*model.ManifestRevision, error) {
	return GetActiveManifestRevisionBun(s.bun)
}

func (s *MySQLStore) GetManifestRevisionBySerial(serial int) (*model.ManifestRevision, error) {
	return GetManifestRevisionBySerialBun(s.bun, serial)
}

func (s *MySQLStore) HasManifestRevisions() (bool, error) {
	return HasManifestRevisionsBun(s.bun)
}

func (s *MySQLStore) GetKnownHostKey(hostname string) (string, error) {
	return GetKnownHostKeyBun(s.bun, hostname)
}

func (s *MySQLStore) AddKnownHostKey(hostname, key string) error {
	err := AddKnownHostKeyBun(s.bun, hostname, key)
	if err == nil {
		_ = s.LogAction("TRUST_HOST", fmt.Sprintf("hostname: %s", hostname))
	}
	return err
}

func (s *MySQLStore) GetAllAuditLogEntries() ([]model.AuditLogEntry, error) {
	return GetAllAuditLogEntriesBun(s.bun)
}

func (s *MySQLStore) LogAction(action string, details string) error {
	return LogActionBun(s.bun, action, details)
}

func (s *MySQLStore) RecordDriftEvent(repositoryID int, driftType model.DriftClassification, details string) error {
	return RecordDriftEventBun(s.bun, repositoryID, string(driftType), details)
}

func (s *MySQLStore) GetDriftEventsForRepository(repositoryID int) ([]model.DriftEvent, error) {
	return GetDriftEventsForRepositoryBun(s.bun, repositoryID)
}

func (s *MySQLStore) ExportDataForBackup() (*model.BackupData, error) {
	return ExportDataForBackupBun(s.bun)
}

func (s *MySQLStore) ImportDataFromBackup(backup *model.BackupData) error {
	err := ImportDataFromBackupBun(s.bun, backup)
	if err == nil {
		_ = s.LogAction("RESTORE_BACKUP", "mode: full")
	}
	return err
}

func (s *MySQLStore) IntegrateDataFromBackup(backup *model.BackupData) error {
	err := IntegrateDataFromBackupBun(s.bun, backup)
	if err == nil {
		_ = s.LogAction("RESTORE_BACKUP", "mode: integrate")
	}
	return err
}
