package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/repofleet/repofleet/internal/model"
	"github.com/repofleet/repofleet/internal/sync"
)

func testModel() dashboardModel {
	return newDashboard(sync.Fleet{Root: "./fleet", BaseName: "social-core"}, "repofleet.manifest.yaml")
}

func TestDashboard_QuitKeys(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c"} {
		m := testModel()
		var msg tea.KeyMsg
		if key == "ctrl+c" {
			msg = tea.KeyMsg{Type: tea.KeyCtrlC}
		} else {
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
		}
		_, cmd := m.Update(msg)
		if cmd == nil {
			t.Fatalf("key %q should produce a quit command", key)
		}
		if cmd() != (tea.QuitMsg{}) {
			t.Errorf("key %q should quit", key)
		}
	}
}

func TestDashboard_FleetLoaded(t *testing.T) {
	m := testModel()
	now := time.Now()
	updated, _ := m.Update(fleetLoadedMsg{
		repos: []model.Repository{
			{Name: "social-core", Serial: 2, IsActive: true, LastSyncedAt: &now},
			{Name: "social-app-django", Serial: 1, IsActive: true},
		},
		rev: &model.ManifestRevision{Serial: 2},
	})
	dm := updated.(dashboardModel)
	if dm.loading {
		t.Error("loading should be cleared after fleet data arrives")
	}
	view := dm.View()
	if !strings.Contains(view, "social-core") || !strings.Contains(view, "social-app-django") {
		t.Errorf("view should list repositories:\n%s", view)
	}
	if !strings.Contains(view, "revision 2") {
		t.Errorf("view should show the active revision:\n%s", view)
	}
	if !strings.Contains(view, "stale") {
		t.Errorf("repository behind the revision should render as stale:\n%s", view)
	}
}

func TestDashboard_DriftView(t *testing.T) {
	m := testModel()
	m.loading = false
	m.showDrift = true
	updated, _ := m.Update(driftLoadedMsg{
		repo: "social-app-django",
		events: []model.DriftEvent{
			{DetectedAt: time.Now(), DriftType: model.DriftCritical, Details: "modified: SECURITY.md"},
		},
	})
	dm := updated.(dashboardModel)
	view := dm.View()
	if !strings.Contains(view, "Recent drift") || !strings.Contains(view, "SECURITY.md") {
		t.Errorf("drift panel missing from view:\n%s", view)
	}
}

func TestDashboard_EscClosesDrift(t *testing.T) {
	m := testModel()
	m.loading = false
	m.showDrift = true
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if updated.(dashboardModel).showDrift {
		t.Error("esc should close the drift panel")
	}
}
