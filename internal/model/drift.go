// Copyright (c) 2026 Repofleet Authors
// Repofleet - shared file propagation for repository fleets
// This source code is licensed under the MIT license found in the LICENSE file.

// package model defines the core data structures for drift detection.
package model

import (
	"fmt"
	"time"
)

// DriftClassification represents the severity level of detected drift
// between a repository's working copy and the base file set.
type DriftClassification string

const (
	// DriftCritical indicates a shared file whose content diverges from
	// the base copy. This is the state that must never persist: the same
	// policy file telling two different stories in two repositories.
	DriftCritical DriftClassification = "critical"

	// DriftWarning indicates a missing shared file or a repository whose
	// applied revision serial is behind the active revision.
	DriftWarning DriftClassification = "warning"

	// DriftInfo indicates a minor, informational finding, such as a file
	// excluded for this repository that is nevertheless present.
	DriftInfo DriftClassification = "info"
)

// DriftEvent represents a single recorded instance of detected drift.
type DriftEvent struct {
	ID           int
	RepositoryID int
	DetectedAt   time.Time
	DriftType    DriftClassification
	Details      string
}

// DriftAnalysis contains detailed information about a repository's drift
// relative to the base repository's shared file set.
type DriftAnalysis struct {
	// Classification is the severity of the worst finding.
	Classification DriftClassification

	// HasDrift indicates whether any drift was detected at all.
	HasDrift bool

	// SerialStale indicates the repository's applied revision serial is
	// behind the active manifest revision.
	SerialStale bool

	// ExpectedSerial is the active manifest revision serial.
	ExpectedSerial int

	// ActualSerial is the serial last applied to the repository.
	ActualSerial int

	// MissingFiles are manifest paths absent from the working copy.
	MissingFiles []string

	// ModifiedFiles are manifest paths whose content differs from the
	// base repository's copy.
	ModifiedFiles []string

	// ExcludedPresent are paths excluded for this repository that exist
	// in its working copy anyway.
	ExcludedPresent []string
}

// IsCritical returns true if the drift is classified as critical.
func (d *DriftAnalysis) IsCritical() bool {
	return d.Classification == DriftCritical
}

// Classify derives the overall classification from the individual findings
// and sets HasDrift accordingly.
func (d *DriftAnalysis) Classify() {
	d.HasDrift = d.SerialStale || len(d.MissingFiles) > 0 || len(d.ModifiedFiles) > 0 || len(d.ExcludedPresent) > 0
	switch {
	case len(d.ModifiedFiles) > 0:
		d.Classification = DriftCritical
	case len(d.MissingFiles) > 0 || d.SerialStale:
		d.Classification = DriftWarning
	case len(d.ExcludedPresent) > 0:
		d.Classification = DriftInfo
	}
}

// Summary returns a human-readable summary of the drift analysis.
func (d *DriftAnalysis) Summary() string {
	if !d.HasDrift {
		return "no drift detected"
	}

	summary := string(d.Classification) + " drift:"
	if len(d.ModifiedFiles) > 0 {
		summary += fmt.Sprintf(" %d modified", len(d.ModifiedFiles))
	}
	if len(d.MissingFiles) > 0 {
		summary += fmt.Sprintf(" %d missing", len(d.MissingFiles))
	}
	if d.SerialStale {
		summary += fmt.Sprintf(" serial %d behind %d", d.ActualSerial, d.ExpectedSerial)
	}
	if len(d.ExcludedPresent) > 0 {
		summary += fmt.Sprintf(" %d excluded-but-present", len(d.ExcludedPresent))
	}
	return summary
}
