package db

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/repofleet/repofleet/internal/model"
	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) string {
	t.Helper()
	dsn := "file:test_" + t.Name() + "?mode=memory&cache=shared"
	if err := InitDB("sqlite", dsn); err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	return dsn
}

func TestInitDB_Migrations_Applied(t *testing.T) {
	dsn := newTestDB(t)

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open sql.DB for inspection: %v", err)
	}
	defer func() { _ = sqlDB.Close() }()

	for _, table := range []string{"repositories", "manifest_revisions", "known_hosts", "audit_log", "drift_events", "schema_migrations"} {
		var name string
		err := sqlDB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Fatalf("expected table %s to exist after migrations: %v", table, err)
		}
	}
}

func TestRepository_AddAndGet(t *testing.T) {
	_ = newTestDB(t)

	id, err := AddRepository("social-core", "git@github.com:python-social-auth/social-core.git", "master", "Core", "base,python")
	if err != nil {
		t.Fatalf("AddRepository failed: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive id, got %d", id)
	}

	repo, err := GetRepositoryByName("social-core")
	if err != nil {
		t.Fatalf("GetRepositoryByName failed: %v", err)
	}
	if repo == nil {
		t.Fatal("expected repository, got nil")
	}
	if repo.RemoteURL != "git@github.com:python-social-auth/social-core.git" {
		t.Errorf("unexpected remote URL: %s", repo.RemoteURL)
	}
	if repo.Branch != "master" || repo.Label != "Core" || repo.Tags != "base,python" {
		t.Errorf("unexpected repo fields: %+v", repo)
	}
	if !repo.IsActive {
		t.Error("new repository should be active by default")
	}
	if repo.Serial != 0 {
		t.Errorf("new repository should start at serial 0, got %d", repo.Serial)
	}

	missing, err := GetRepositoryByName("no-such-repo")
	if err != nil {
		t.Fatalf("lookup of missing repo should not error: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing repo, got %+v", missing)
	}
}

func TestRepository_DuplicateName(t *testing.T) {
	_ = newTestDB(t)

	if _, err := AddRepository("social-app-django", "git@github.com:python-social-auth/social-app-django.git", "", "", ""); err != nil {
		t.Fatalf("first AddRepository failed: %v", err)
	}
	_, err := AddRepository("social-app-django", "git@github.com:python-social-auth/social-app-django.git", "", "", "")
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestRepository_UpdatesAndToggle(t *testing.T) {
	_ = newTestDB(t)

	id, err := AddRepository("social-docs", "git@github.com:python-social-auth/social-docs.git", "", "", "")
	if err != nil {
		t.Fatalf("AddRepository failed: %v", err)
	}

	if err := UpdateRepositorySerial(id, 3); err != nil {
		t.Fatalf("UpdateRepositorySerial failed: %v", err)
	}
	if err := UpdateRepositoryLabel(id, "Docs"); err != nil {
		t.Fatalf("UpdateRepositoryLabel failed: %v", err)
	}
	if err := UpdateRepositoryTags(id, "docs"); err != nil {
		t.Fatalf("UpdateRepositoryTags failed: %v", err)
	}
	if err := UpdateRepositoryDirty(id, true); err != nil {
		t.Fatalf("UpdateRepositoryDirty failed: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	if err := TouchRepositorySynced(id, now); err != nil {
		t.Fatalf("TouchRepositorySynced failed: %v", err)
	}
	if err := ToggleRepositoryStatus(id); err != nil {
		t.Fatalf("ToggleRepositoryStatus failed: %v", err)
	}

	repo, err := GetRepositoryByName("social-docs")
	if err != nil || repo == nil {
		t.Fatalf("GetRepositoryByName failed: %v", err)
	}
	if repo.Serial != 3 {
		t.Errorf("serial = %d, want 3", repo.Serial)
	}
	if repo.Label != "Docs" || repo.Tags != "docs" {
		t.Errorf("label/tags not updated: %+v", repo)
	}
	if !repo.IsDirty {
		t.Error("is_dirty should be set")
	}
	if repo.LastSyncedAt == nil {
		t.Error("last_synced_at should be set")
	}
	if repo.IsActive {
		t.Error("repository should be inactive after toggle")
	}

	active, err := GetAllActiveRepositories()
	if err != nil {
		t.Fatalf("GetAllActiveRepositories failed: %v", err)
	}
	for _, r := range active {
		if r.ID == id {
			t.Error("inactive repository returned by GetAllActiveRepositories")
		}
	}
}

func TestManifestRevision_Rotation(t *testing.T) {
	_ = newTestDB(t)

	has, err := HasManifestRevisions()
	if err != nil {
		t.Fatalf("HasManifestRevisions failed: %v", err)
	}
	if has {
		t.Fatal("fresh database should have no revisions")
	}

	serial1, err := CreateManifestRevision("hash-one")
	if err != nil {
		t.Fatalf("CreateManifestRevision failed: %v", err)
	}
	if serial1 != 1 {
		t.Errorf("first serial = %d, want 1", serial1)
	}

	serial2, err := CreateManifestRevision("hash-two")
	if err != nil {
		t.Fatalf("second CreateManifestRevision failed: %v", err)
	}
	if serial2 != 2 {
		t.Errorf("second serial = %d, want 2", serial2)
	}

	active, err := GetActiveManifestRevision()
	if err != nil {
		t.Fatalf("GetActiveManifestRevision failed: %v", err)
	}
	if active == nil || active.Serial != 2 || active.ContentHash != "hash-two" {
		t.Fatalf("unexpected active revision: %+v", active)
	}

	old, err := GetManifestRevisionBySerial(1)
	if err != nil {
		t.Fatalf("GetManifestRevisionBySerial failed: %v", err)
	}
	if old == nil || old.IsActive {
		t.Fatalf("old revision should exist and be inactive: %+v", old)
	}
}

func TestKnownHosts(t *testing.T) {
	_ = newTestDB(t)

	key, err := GetKnownHostKey("github.com")
	if err != nil {
		t.Fatalf("GetKnownHostKey on empty table failed: %v", err)
	}
	if key != "" {
		t.Errorf("expected empty key for unknown host, got %q", key)
	}

	if err := AddKnownHostKey("github.com", "ssh-ed25519 AAAAtest"); err != nil {
		t.Fatalf("AddKnownHostKey failed: %v", err)
	}
	key, err = GetKnownHostKey("github.com")
	if err != nil {
		t.Fatalf("GetKnownHostKey failed: %v", err)
	}
	if key != "ssh-ed25519 AAAAtest" {
		t.Errorf("unexpected key: %q", key)
	}
}

func TestDriftEvents_RecordAndCascade(t *testing.T) {
	_ = newTestDB(t)

	id, err := AddRepository("social-storage", "git@github.com:python-social-auth/social-storage.git", "", "", "")
	if err != nil {
		t.Fatalf("AddRepository failed: %v", err)
	}
	if err := RecordDriftEvent(id, model.DriftCritical, "modified: SECURITY.md"); err != nil {
		t.Fatalf("RecordDriftEvent failed: %v", err)
	}
	events, err := GetDriftEventsForRepository(id)
	if err != nil {
		t.Fatalf("GetDriftEventsForRepository failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 drift event, got %d", len(events))
	}
	if events[0].DriftType != model.DriftCritical {
		t.Errorf("drift type = %s, want %s", events[0].DriftType, model.DriftCritical)
	}
}

func TestAuditLog_SideEffects(t *testing.T) {
	_ = newTestDB(t)

	if _, err := AddRepository("social-core", "git@github.com:python-social-auth/social-core.git", "", "", ""); err != nil {
		t.Fatalf("AddRepository failed: %v", err)
	}
	entries, err := GetAllAuditLogEntries()
	if err != nil {
		t.Fatalf("GetAllAuditLogEntries failed: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.Action == "ADD_REPOSITORY" {
			found = true
		}
	}
	if !found {
		t.Error("expected an ADD_REPOSITORY audit entry")
	}
}

func TestBackup_ExportImportRoundtrip(t *testing.T) {
	_ = newTestDB(t)

	id, err := AddRepository("social-core", "git@github.com:python-social-auth/social-core.git", "master", "Core", "base")
	if err != nil {
		t.Fatalf("AddRepository failed: %v", err)
	}
	if _, err := CreateManifestRevision("hash-one"); err != nil {
		t.Fatalf("CreateManifestRevision failed: %v", err)
	}
	if err := AddKnownHostKey("github.com", "ssh-ed25519 AAAAtest"); err != nil {
		t.Fatalf("AddKnownHostKey failed: %v", err)
	}
	if err := RecordDriftEvent(id, model.DriftWarning, "missing: .pre-commit-config.yaml"); err != nil {
		t.Fatalf("RecordDriftEvent failed: %v", err)
	}

	backup, err := ExportDataForBackup()
	if err != nil {
		t.Fatalf("ExportDataForBackup failed: %v", err)
	}
	if len(backup.Repositories) != 1 || len(backup.ManifestRevisions) != 1 || len(backup.KnownHosts) != 1 || len(backup.DriftEvents) != 1 {
		t.Fatalf("unexpected backup contents: %+v", backup)
	}

	// Restore into a fresh database.
	if err := InitDB("sqlite", "file:test_restore_"+t.Name()+"?mode=memory&cache=shared"); err != nil {
		t.Fatalf("InitDB for restore failed: %v", err)
	}
	if err := ImportDataFromBackup(backup); err != nil {
		t.Fatalf("ImportDataFromBackup failed: %v", err)
	}
	repo, err := GetRepositoryByName("social-core")
	if err != nil || repo == nil {
		t.Fatalf("restored repository missing: %v", err)
	}
	active, err := GetActiveManifestRevision()
	if err != nil || active == nil || active.ContentHash != "hash-one" {
		t.Fatalf("restored revision wrong: %+v err=%v", active, err)
	}
}

func TestBackup_Integrate_SkipsExisting(t *testing.T) {
	_ = newTestDB(t)

	if _, err := AddRepository("social-core", "git@github.com:python-social-auth/social-core.git", "", "", ""); err != nil {
		t.Fatalf("AddRepository failed: %v", err)
	}
	backup := &model.BackupData{
		SchemaVersion: 1,
		Repositories: []model.Repository{
			{Name: "social-core", RemoteURL: "git@example.com:other.git"},
			{Name: "social-app-flask", RemoteURL: "git@github.com:python-social-auth/social-app-flask.git", IsActive: true},
		},
	}
	if err := IntegrateDataFromBackup(backup); err != nil {
		t.Fatalf("IntegrateDataFromBackup failed: %v", err)
	}

	existing, err := GetRepositoryByName("social-core")
	if err != nil || existing == nil {
		t.Fatalf("existing repository lookup failed: %v", err)
	}
	if existing.RemoteURL != "git@github.com:python-social-auth/social-core.git" {
		t.Errorf("integrate overwrote existing repository: %s", existing.RemoteURL)
	}
	added, err := GetRepositoryByName("social-app-flask")
	if err != nil || added == nil {
		t.Fatalf("integrated repository missing: %v", err)
	}
}

func TestMapDBError(t *testing.T) {
	if MapDBError(nil) != nil {
		t.Error("nil should map to nil")
	}
	if !errors.Is(MapDBError(errors.New("UNIQUE constraint failed: repositories.name")), ErrDuplicate) {
		t.Error("sqlite unique violation should map to ErrDuplicate")
	}
	other := errors.New("connection refused")
	if MapDBError(other) != other {
		t.Error("unrelated errors should pass through")
	}
}
