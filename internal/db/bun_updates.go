package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
)

// UpdateRepositorySerialBun sets the deployed manifest serial for a repository.
func UpdateRepositorySerialBun(bdb *bun.DB, id, serial int) error {
	ctx := context.Background()
	_, err := ExecRaw(ctx, bdb, "UPDATE repositories SET serial = ? WHERE id = ?", serial, id)
	return err
}

// ToggleRepositoryStatusBun flips the active flag for a repository.
func ToggleRepositoryStatusBun(bdb *bun.DB, id int) error {
	ctx := context.Background()
	_, err := ExecRaw(ctx, bdb, "UPDATE repositories SET is_active = NOT is_active WHERE id = ?", id)
	return err
}

// UpdateRepositoryLabelBun updates a repository's label. An empty label clears it.
func UpdateRepositoryLabelBun(bdb *bun.DB, id int, label string) error {
	ctx := context.Background()
	var val interface{}
	if label != "" {
		val = label
	}
	_, err := ExecRaw(ctx, bdb, "UPDATE repositories SET label = ? WHERE id = ?", val, id)
	return err
}

// UpdateRepositoryTagsBun updates a repository's tags. Empty tags clear them.
func UpdateRepositoryTagsBun(bdb *bun.DB, id int, tags string) error {
	ctx := context.Background()
	var val interface{}
	if tags != "" {
		val = tags
	}
	_, err := ExecRaw(ctx, bdb, "UPDATE repositories SET tags = ? WHERE id = ?", val, id)
	return err
}

// UpdateRepositoryDirtyBun sets the dirty flag for a repository.
func UpdateRepositoryDirtyBun(bdb *bun.DB, id int, dirty bool) error {
	ctx := context.Background()
	_, err := ExecRaw(ctx, bdb, "UPDATE repositories SET is_dirty = ? WHERE id = ?", dirty, id)
	return err
}

// TouchRepositorySyncedBun records the time of the last successful sync.
func TouchRepositorySyncedBun(bdb *bun.DB, id int, at time.Time) error {
	ctx := context.Background()
	_, err := ExecRaw(ctx, bdb, "UPDATE repositories SET last_synced_at = ? WHERE id = ?", at.UTC(), id)
	return err
}

// HasManifestRevisionsBun reports whether any manifest revision has been published.
func HasManifestRevisionsBun(bdb *bun.DB) (bool, error) {
	ctx := context.Background()
	var count int
	if err := QueryRawInto(ctx, bdb, &count, "SELECT COUNT(1) FROM manifest_revisions"); err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetKnownHostKeyBun returns the trusted host key for hostname, or "" when
// the host has not been trusted yet.
func GetKnownHostKeyBun(bdb *bun.DB, hostname string) (string, error) {
	ctx := context.Background()
	var key string
	err := QueryRawInto(ctx, bdb, &key, "SELECT key FROM known_hosts WHERE hostname = ?", hostname)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return key, nil
}

// AddKnownHostKeyBun stores a trusted host key.
func AddKnownHostKeyBun(bdb *bun.DB, hostname, key string) error {
	ctx := context.Background()
	_, err := bdb.NewInsert().Model(&KnownHostModel{Hostname: hostname, Key: key}).Exec(ctx)
	return MapDBError(err)
}
