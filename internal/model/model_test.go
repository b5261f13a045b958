// Copyright (c) 2026 Repofleet Authors
// Repofleet - shared file propagation for repository fleets
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import "testing"

func TestRepositoryString(t *testing.T) {
	r := Repository{Name: "social-core", RemoteURL: "git@github.com:example/social-core.git"}
	if got := r.String(); got != "social-core" {
		t.Errorf("unexpected Repository.String(): %q", got)
	}

	r.Label = "core"
	if got := r.String(); got != "core (social-core)" {
		t.Errorf("unexpected Repository.String() with label: %q", got)
	}
}

func TestDriftClassify(t *testing.T) {
	d := &DriftAnalysis{}
	d.Classify()
	if d.HasDrift {
		t.Error("empty analysis should not report drift")
	}

	d = &DriftAnalysis{ModifiedFiles: []string{"SECURITY.md"}, MissingFiles: []string{".pre-commit-config.yaml"}}
	d.Classify()
	if !d.HasDrift || d.Classification != DriftCritical {
		t.Errorf("modified file should classify as critical, got %q", d.Classification)
	}

	d = &DriftAnalysis{SerialStale: true, ActualSerial: 2, ExpectedSerial: 5}
	d.Classify()
	if d.Classification != DriftWarning {
		t.Errorf("stale serial should classify as warning, got %q", d.Classification)
	}

	d = &DriftAnalysis{ExcludedPresent: []string{".github/renovate.json"}}
	d.Classify()
	if d.Classification != DriftInfo {
		t.Errorf("excluded-but-present should classify as info, got %q", d.Classification)
	}
}

func TestDriftSummary(t *testing.T) {
	d := &DriftAnalysis{}
	d.Classify()
	if got := d.Summary(); got != "no drift detected" {
		t.Errorf("unexpected summary for clean analysis: %q", got)
	}

	d = &DriftAnalysis{ModifiedFiles: []string{"SECURITY.md"}, SerialStale: true, ActualSerial: 1, ExpectedSerial: 2}
	d.Classify()
	got := d.Summary()
	if got != "critical drift: 1 modified serial 1 behind 2" {
		t.Errorf("unexpected summary: %q", got)
	}
}
