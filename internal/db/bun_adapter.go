package db

import (
	"context"
	"database/sql"
	"fmt"
	"os/user"
	"strings"
	"time"

	"github.com/repofleet/repofleet/internal/model"
	"github.com/uptrace/bun"
)

// RepositoryModel maps the `repositories` table for Bun queries.
type RepositoryModel struct {
	bun.BaseModel `bun:"table:repositories"`
	ID            int            `bun:"id,pk,autoincrement"`
	Name          string         `bun:"name"`
	RemoteURL     string         `bun:"remote_url"`
	Branch        sql.NullString `bun:"branch"`
	Label         sql.NullString `bun:"label"`
	Tags          sql.NullString `bun:"tags"`
	Serial        int            `bun:"serial"`
	IsActive      bool           `bun:"is_active"`
	IsDirty       bool           `bun:"is_dirty"`
	LastSyncedAt  sql.NullTime   `bun:"last_synced_at"`
}

// ManifestRevisionModel maps the `manifest_revisions` table.
type ManifestRevisionModel struct {
	bun.BaseModel `bun:"table:manifest_revisions"`
	ID            int       `bun:"id,pk,autoincrement"`
	Serial        int       `bun:"serial"`
	ContentHash   string    `bun:"content_hash"`
	IsActive      bool      `bun:"is_active"`
	CreatedAt     time.Time `bun:"created_at"`
}

// KnownHostModel maps known_hosts.
type KnownHostModel struct {
	bun.BaseModel `bun:"table:known_hosts"`
	Hostname      string `bun:"hostname,pk"`
	Key           string `bun:"key"`
}

// AuditLogModel maps the audit_log table.
type AuditLogModel struct {
	bun.BaseModel `bun:"table:audit_log"`
	ID            int    `bun:"id,pk,autoincrement"`
	Timestamp     string `bun:"timestamp"`
	Username      string `bun:"username"`
	Action        string `bun:"action"`
	Details       string `bun:"details"`
}

// DriftEventModel maps the drift_events table.
type DriftEventModel struct {
	bun.BaseModel `bun:"table:drift_events"`
	ID            int       `bun:"id,pk,autoincrement"`
	RepositoryID  int       `bun:"repository_id"`
	DetectedAt    time.Time `bun:"detected_at"`
	DriftType     string    `bun:"drift_type"`
	Details       string    `bun:"details"`
}

// --- Mapping helpers (centralized conversions) ---

func repositoryModelToModel(r RepositoryModel) model.Repository {
	repo := model.Repository{
		ID:        r.ID,
		Name:      r.Name,
		RemoteURL: r.RemoteURL,
		Serial:    r.Serial,
		IsActive:  r.IsActive,
		IsDirty:   r.IsDirty,
	}
	if r.Branch.Valid {
		repo.Branch = r.Branch.String
	}
	if r.Label.Valid {
		repo.Label = r.Label.String
	}
	if r.Tags.Valid {
		repo.Tags = r.Tags.String
	}
	if r.LastSyncedAt.Valid {
		t := r.LastSyncedAt.Time
		repo.LastSyncedAt = &t
	}
	return repo
}

func manifestRevisionModelToModel(m ManifestRevisionModel) model.ManifestRevision {
	return model.ManifestRevision{ID: m.ID, Serial: m.Serial, ContentHash: m.ContentHash, IsActive: m.IsActive, CreatedAt: m.CreatedAt}
}

// GetAllRepositoriesBun returns all repositories ordered by label and name.
func GetAllRepositoriesBun(bdb *bun.DB) ([]model.Repository, error) {
	ctx := context.Background()
	var rm []RepositoryModel
	err := bdb.NewSelect().Model(&rm).OrderExpr("label, name").Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Repository, 0, len(rm))
	for _, r := range rm {
		out = append(out, repositoryModelToModel(r))
	}
	return out, nil
}

// GetAllActiveRepositoriesBun returns all active repositories.
func GetAllActiveRepositoriesBun(bdb *bun.DB) ([]model.Repository, error) {
	ctx := context.Background()
	var rm []RepositoryModel
	err := bdb.NewSelect().Model(&rm).Where("is_active = ?", true).OrderExpr("label, name").Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Repository, 0, len(rm))
	for _, r := range rm {
		out = append(out, repositoryModelToModel(r))
	}
	return out, nil
}

// GetRepositoryByNameBun returns the repository with the given name, or nil
// when no such repository exists.
func GetRepositoryByNameBun(bdb *bun.DB, name string) (*model.Repository, error) {
	ctx := context.Background()
	var rm RepositoryModel
	err := bdb.NewSelect().Model(&rm).Where("name = ?", name).Limit(1).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	repo := repositoryModelToModel(rm)
	return &repo, nil
}

// AddRepositoryBun inserts a new repository and returns its ID.
func AddRepositoryBun(bdb *bun.DB, name, remoteURL, branch, label, tags string) (int, error) {
	ctx := context.Background()
	rm := &RepositoryModel{
		Name:      name,
		RemoteURL: remoteURL,
		Branch:    sql.NullString{String: branch, Valid: branch != ""},
		Label:     sql.NullString{String: label, Valid: label != ""},
		Tags:      sql.NullString{String: tags, Valid: tags != ""},
	}
	// Insert only the fields we want the DB to default (like is_active, serial).
	if _, err := bdb.NewInsert().Model(rm).Column("name", "remote_url", "branch", "label", "tags").Returning("id").Exec(ctx); err != nil {
		return 0, MapDBError(err)
	}
	return rm.ID, nil
}

// DeleteRepositoryBun removes a repository by id. Associated drift events are
// removed by the ON DELETE CASCADE constraint.
func DeleteRepositoryBun(bdb *bun.DB, id int) error {
	ctx := context.Background()
	_, err := bdb.NewDelete().Model((*RepositoryModel)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

// CreateManifestRevisionBun deactivates existing revisions and inserts a new
// active revision with the next serial, within a single transaction.
func CreateManifestRevisionBun(bdb *bun.DB, contentHash string) (int, error) {
	ctx := context.Background()

	tx, err := bdb.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	// Deactivate existing revisions. Use a raw UPDATE because Bun requires a
	// WHERE clause for Update/Delete queries to prevent accidental full-table
	// updates.
	if _, err := ExecRaw(ctx, tx, "UPDATE manifest_revisions SET is_active = FALSE"); err != nil {
		return 0, fmt.Errorf("failed to deactivate old revisions: %w", err)
	}

	// Get current max serial
	var max sql.NullInt64
	if err := QueryRawInto(ctx, tx, &max, "SELECT MAX(serial) FROM manifest_revisions"); err != nil {
		return 0, err
	}
	newSerial := 1
	if max.Valid {
		newSerial = int(max.Int64) + 1
	}

	// Insert new revision
	if _, err := tx.NewInsert().Model(&ManifestRevisionModel{
		Serial:      newSerial,
		ContentHash: contentHash,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}).Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to insert new revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newSerial, nil
}

// GetActiveManifestRevisionBun returns the active manifest revision, or nil
// when none has been published yet.
func GetActiveManifestRevisionBun(bdb *bun.DB) (*model.ManifestRevision, error) {
	ctx := context.Background()
	var mr ManifestRevisionModel
	err := bdb.NewSelect().Model(&mr).Where("is_active = ?", true).Limit(1).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	m := manifestRevisionModelToModel(mr)
	return &m, nil
}

// GetManifestRevisionBySerialBun returns the revision with the given serial,
// or nil when no such revision exists.
func GetManifestRevisionBySerialBun(bdb *bun.DB, serial int) (*model.ManifestRevision, error) {
	ctx := context.Background()
	var mr ManifestRevisionModel
	err := bdb.NewSelect().Model(&mr).Where("serial = ?", serial).Limit(1).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	m := manifestRevisionModelToModel(mr)
	return &m, nil
}

// GetAllAuditLogEntriesBun retrieves audit log entries ordered by timestamp desc.
func GetAllAuditLogEntriesBun(bdb *bun.DB) ([]model.AuditLogEntry, error) {
	ctx := context.Background()
	var am []AuditLogModel
	if err := bdb.NewSelect().Model(&am).OrderExpr("timestamp DESC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.AuditLogEntry, 0, len(am))
	for _, a := range am {
		out = append(out, model.AuditLogEntry{ID: a.ID, Timestamp: a.Timestamp, Username: a.Username, Action: a.Action, Details: a.Details})
	}
	return out, nil
}

// LogActionBun inserts an audit log entry with the current OS user.
func LogActionBun(bdb *bun.DB, action string, details string) error {
	ctx := context.Background()
	curUser, err := user.Current()
	username := "unknown"
	if err == nil {
		if parts := strings.Split(curUser.Username, `\`); len(parts) > 1 {
			username = parts[1]
		} else {
			username = curUser.Username
		}
	}
	_, err = ExecRaw(ctx, bdb, "INSERT INTO audit_log (username, action, details) VALUES (?, ?, ?)", username, action, details)
	return MapDBError(err)
}

// RecordDriftEventBun inserts a drift event for a repository.
func RecordDriftEventBun(bdb *bun.DB, repositoryID int, driftType, details string) error {
	ctx := context.Background()
	_, err := bdb.NewInsert().Model(&DriftEventModel{
		RepositoryID: repositoryID,
		DetectedAt:   time.Now().UTC(),
		DriftType:    driftType,
		Details:      details,
	}).Exec(ctx)
	return err
}

// GetDriftEventsForRepositoryBun returns drift events for a repository, most recent first.
func GetDriftEventsForRepositoryBun(bdb *bun.DB, repositoryID int) ([]model.DriftEvent, error) {
	ctx := context.Background()
	var dm []DriftEventModel
	if err := bdb.NewSelect().Model(&dm).Where("repository_id = ?", repositoryID).OrderExpr("detected_at DESC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.DriftEvent, 0, len(dm))
	for _, d := range dm {
		out = append(out, model.DriftEvent{
			ID:           d.ID,
			RepositoryID: d.RepositoryID,
			DetectedAt:   d.DetectedAt,
			DriftType:    model.DriftClassification(d.DriftType),
			Details:      d.Details,
		})
	}
	return out, nil
}

// ExportDataForBackupBun exports all tables' data into a model.BackupData
// using a Bun transaction for a consistent snapshot.
func ExportDataForBackupBun(bdb *bun.DB) (*model.BackupData, error) {
	ctx := context.Background()
	var backup *model.BackupData
	err := WithTx(ctx, bdb, func(ctx context.Context, tx bun.Tx) error {
		backup = &model.BackupData{SchemaVersion: 1}

		// Repositories
		var repos []RepositoryModel
		if err := tx.NewSelect().Model(&repos).Scan(ctx); err != nil {
			return err
		}
		for _, r := range repos {
			backup.Repositories = append(backup.Repositories, repositoryModelToModel(r))
		}

		// Manifest revisions
		var revs []ManifestRevisionModel
		if err := tx.NewSelect().Model(&revs).Scan(ctx); err != nil {
			return err
		}
		for _, m := range revs {
			backup.ManifestRevisions = append(backup.ManifestRevisions, manifestRevisionModelToModel(m))
		}

		// Known hosts
		var khs []KnownHostModel
		if err := tx.NewSelect().Model(&khs).Scan(ctx); err != nil {
			return err
		}
		for _, k := range khs {
			backup.KnownHosts = append(backup.KnownHosts, model.KnownHost{Hostname: k.Hostname, Key: k.Key})
		}

		// Audit log
		var als []AuditLogModel
		if err := tx.NewSelect().Model(&als).Scan(ctx); err != nil {
			return err
		}
		for _, a := range als {
			backup.AuditLogEntries = append(backup.AuditLogEntries, model.AuditLogEntry{ID: a.ID, Timestamp: a.Timestamp, Username: a.Username, Action: a.Action, Details: a.Details})
		}

		// Drift events
		var des []DriftEventModel
		if err := tx.NewSelect().Model(&des).Scan(ctx); err != nil {
			return err
		}
		for _, d := range des {
			backup.DriftEvents = append(backup.DriftEvents, model.DriftEvent{
				ID:           d.ID,
				RepositoryID: d.RepositoryID,
				DetectedAt:   d.DetectedAt,
				DriftType:    model.DriftClassification(d.DriftType),
				Details:      d.Details,
			})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return backup, nil
}

func repositoryToModelRow(r model.Repository) *RepositoryModel {
	rm := &RepositoryModel{
		ID:        r.ID,
		Name:      r.Name,
		RemoteURL: r.RemoteURL,
		Branch:    sql.NullString{String: r.Branch, Valid: r.Branch != ""},
		Label:     sql.NullString{String: r.Label, Valid: r.Label != ""},
		Tags:      sql.NullString{String: r.Tags, Valid: r.Tags != ""},
		Serial:    r.Serial,
		IsActive:  r.IsActive,
		IsDirty:   r.IsDirty,
	}
	if r.LastSyncedAt != nil {
		rm.LastSyncedAt = sql.NullTime{Time: *r.LastSyncedAt, Valid: true}
	}
	return rm
}

// ImportDataFromBackupBun performs a full wipe-and-replace restore within a
// single transaction.
func ImportDataFromBackupBun(bdb *bun.DB, backup *model.BackupData) error {
	ctx := context.Background()
	return WithTx(ctx, bdb, func(ctx context.Context, tx bun.Tx) error {
		// Wipe in dependency order.
		for _, stmt := range []string{
			"DELETE FROM drift_events",
			"DELETE FROM audit_log",
			"DELETE FROM known_hosts",
			"DELETE FROM manifest_revisions",
			"DELETE FROM repositories",
		} {
			if _, err := ExecRaw(ctx, tx, stmt); err != nil {
				return fmt.Errorf("failed to wipe table: %w", err)
			}
		}

		for _, r := range backup.Repositories {
			if _, err := tx.NewInsert().Model(repositoryToModelRow(r)).Exec(ctx); err != nil {
				return fmt.Errorf("failed to restore repository %s: %w", r.Name, err)
			}
		}
		for _, m := range backup.ManifestRevisions {
			if _, err := tx.NewInsert().Model(&ManifestRevisionModel{
				ID: m.ID, Serial: m.Serial, ContentHash: m.ContentHash, IsActive: m.IsActive, CreatedAt: m.CreatedAt,
			}).Exec(ctx); err != nil {
				return fmt.Errorf("failed to restore revision %d: %w", m.Serial, err)
			}
		}
		for _, k := range backup.KnownHosts {
			if _, err := tx.NewInsert().Model(&KnownHostModel{Hostname: k.Hostname, Key: k.Key}).Exec(ctx); err != nil {
				return fmt.Errorf("failed to restore known host %s: %w", k.Hostname, err)
			}
		}
		for _, a := range backup.AuditLogEntries {
			if _, err := ExecRaw(ctx, tx, "INSERT INTO audit_log (username, action, details) VALUES (?, ?, ?)", a.Username, a.Action, a.Details); err != nil {
				return fmt.Errorf("failed to restore audit entry: %w", err)
			}
		}
		for _, d := range backup.DriftEvents {
			if _, err := tx.NewInsert().Model(&DriftEventModel{
				RepositoryID: d.RepositoryID, DetectedAt: d.DetectedAt, DriftType: string(d.DriftType), Details: d.Details,
			}).Exec(ctx); err != nil {
				return fmt.Errorf("failed to restore drift event: %w", err)
			}
		}
		return nil
	})
}

// IntegrateDataFromBackupBun restores data from a backup non-destructively,
// skipping repositories, revisions and known hosts that already exist.
func IntegrateDataFromBackupBun(bdb *bun.DB, backup *model.BackupData) error {
	ctx := context.Background()
	return WithTx(ctx, bdb, func(ctx context.Context, tx bun.Tx) error {
		for _, r := range backup.Repositories {
			var exists int
			err := QueryRawInto(ctx, tx, &exists, "SELECT COUNT(1) FROM repositories WHERE name = ?", r.Name)
			if err != nil {
				return err
			}
			if exists > 0 {
				continue
			}
			row := repositoryToModelRow(r)
			row.ID = 0 // let the target assign a fresh id
			if _, err := tx.NewInsert().Model(row).Column("name", "remote_url", "branch", "label", "tags", "serial", "is_active", "is_dirty", "last_synced_at").Exec(ctx); err != nil {
				return fmt.Errorf("failed to integrate repository %s: %w", r.Name, err)
			}
		}
		for _, m := range backup.ManifestRevisions {
			var exists int
			if err := QueryRawInto(ctx, tx, &exists, "SELECT COUNT(1) FROM manifest_revisions WHERE serial = ?", m.Serial); err != nil {
				return err
			}
			if exists > 0 {
				continue
			}
			if _, err := tx.NewInsert().Model(&ManifestRevisionModel{
				Serial: m.Serial, ContentHash: m.ContentHash, IsActive: m.IsActive, CreatedAt: m.CreatedAt,
			}).Exec(ctx); err != nil {
				return fmt.Errorf("failed to integrate revision %d: %w", m.Serial, err)
			}
		}
		for _, k := range backup.KnownHosts {
			var exists int
			if err := QueryRawInto(ctx, tx, &exists, "SELECT COUNT(1) FROM known_hosts WHERE hostname = ?", k.Hostname); err != nil {
				return err
			}
			if exists > 0 {
				continue
			}
			if _, err := tx.NewInsert().Model(&KnownHostModel{Hostname: k.Hostname, Key: k.Key}).Exec(ctx); err != nil {
				return fmt.Errorf("failed to integrate known host %s: %w", k.Hostname, err)
			}
		}
		// Audit history from the backup is appended as-is; duplicates are
		// harmless in an append-only log.
		for _, a := range backup.AuditLogEntries {
			if _, err := ExecRaw(ctx, tx, "INSERT INTO audit_log (username, action, details) VALUES (?, ?, ?)", a.Username, a.Action, a.Details); err != nil {
				return fmt.Errorf("failed to integrate audit entry: %w", err)
			}
		}
		return nil
	})
}
