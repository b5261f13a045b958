// Copyright (c) 2026 Repofleet Authors
// Repofleet - shared file propagation for repository fleets
// This source code is licensed under the MIT license found in the LICENSE file.

package i18n

import (
	"strings"
	"testing"
)

func TestTranslateKnownKey(t *testing.T) {
	Init("en")
	got := T("sync.cloning", "social-core")
	if got != "Cloning social-core..." {
		t.Errorf("unexpected translation: %q", got)
	}
}

func TestTranslateUnknownKeyFallsBack(t *testing.T) {
	Init("en")
	if got := T("no.such.key"); got != "no.such.key" {
		t.Errorf("expected message ID fallback, got %q", got)
	}
}

func TestSetLang(t *testing.T) {
	SetLang("de")
	defer SetLang("en")
	got := T("sync.cloning", "social-core")
	if !strings.HasPrefix(got, "Klone") {
		t.Errorf("expected German translation, got %q", got)
	}
}

func TestUninitializedDefaultsToEnglish(t *testing.T) {
	localizer = nil
	if got := T("audit.cli_start"); got != "Auditing fleet for drift..." {
		t.Errorf("unexpected default-language translation: %q", got)
	}
}
