// Copyright (c) 2026 Repofleet Authors
// Repofleet - shared file propagation for repository fleets
// This source code is licensed under the MIT license found in the LICENSE file.
package model

// BackupData is a container for all data to be exported for a backup.
// It holds slices of all the core models in Repofleet.
type BackupData struct {
	// SchemaVersion helps in handling migrations during restore.
	SchemaVersion int `json:"schema_version"`

	// Data from each table.
	Repositories      []Repository       `json:"repositories"`
	ManifestRevisions []ManifestRevision `json:"manifest_revisions"`
	KnownHosts        []KnownHost        `json:"known_hosts"`
	AuditLogEntries   []AuditLogEntry    `json:"audit_log_entries"`
	DriftEvents       []DriftEvent       `json:"drift_events"`
}
