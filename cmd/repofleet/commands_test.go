// Copyright (c) 2026 Repofleet Authors
// Repofleet - shared file propagation for repository fleets
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/repofleet/repofleet/internal/db"
	"github.com/repofleet/repofleet/internal/i18n"
)

// setupTestDB initializes an in-memory SQLite database for isolated testing.
func setupTestDB(t *testing.T) {
	t.Helper()

	// "cache=shared" is crucial to allow multiple connections to the same
	// in-memory DB.
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	i18n.Init("en")
	if err := db.InitDB("sqlite", dsn); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
}

func findSubcommand(root *cobra.Command, name string) *cobra.Command {
	for _, c := range root.Commands() {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

func TestRootCmd_RegistersAllCommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{
		"sync", "audit", "status", "revision", "repo",
		"trust-host", "mirror", "backup", "restore", "migrate", "db-maintain",
	} {
		if findSubcommand(root, name) == nil {
			t.Errorf("command %q not registered on root", name)
		}
	}
}

func TestSyncCmd_HelpText(t *testing.T) {
	cmd := findSubcommand(newRootCmd(), "sync")
	if cmd == nil {
		t.Fatalf("sync command not found")
	}
	if cmd.Short == "" || cmd.Long == "" {
		t.Fatalf("sync command missing help text")
	}
	if !strings.Contains(cmd.Long, "base repository") {
		t.Errorf("sync help should mention the base repository, got: %s", cmd.Long)
	}
}

func TestAuditCmd_HelpText(t *testing.T) {
	cmd := findSubcommand(newRootCmd(), "audit")
	if cmd == nil {
		t.Fatalf("audit command not found")
	}
	if !strings.Contains(cmd.Long, "drift") {
		t.Errorf("audit help should mention drift, got: %s", cmd.Long)
	}
	if cmd.Flags().Lookup("record") == nil {
		t.Error("audit command missing --record flag")
	}
}

func TestRevisionCmd_HasRefreshFlag(t *testing.T) {
	cmd := findSubcommand(newRootCmd(), "revision")
	if cmd == nil {
		t.Fatalf("revision command not found")
	}
	if cmd.Flags().Lookup("refresh") == nil {
		t.Error("revision command missing --refresh flag")
	}
}

func TestRepoCmd_Subcommands(t *testing.T) {
	repo := findSubcommand(newRootCmd(), "repo")
	if repo == nil {
		t.Fatalf("repo command not found")
	}
	for _, name := range []string{"add", "list", "remove", "enable", "set-label", "set-tags"} {
		if findSubcommand(repo, name) == nil {
			t.Errorf("repo subcommand %q not registered", name)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	defaults := configDefaults()
	if defaults["database.type"] != "sqlite" {
		t.Errorf("default database.type = %v, want sqlite", defaults["database.type"])
	}
	if defaults["fleet.base"] != "social-core" {
		t.Errorf("default fleet.base = %v, want social-core", defaults["fleet.base"])
	}
	if prefix := defaults["fleet.remote_prefix"]; prefix != "git@github.com:python-social-auth/" {
		t.Errorf("unexpected default remote prefix: %v", prefix)
	}
}

func TestTrimAnswer(t *testing.T) {
	cases := map[string]string{
		"yes\n":    "yes",
		"  YES \n": "yes",
		"No":       "no",
		"\n":       "",
	}
	for in, want := range cases {
		if got := trimAnswer(in); got != want {
			t.Errorf("trimAnswer(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestShortHash(t *testing.T) {
	if got := shortHash("0123456789abcdef"); got != "0123456789ab" {
		t.Errorf("shortHash should truncate to 12 chars, got %q", got)
	}
	if got := shortHash("abc"); got != "abc" {
		t.Errorf("short input should pass through, got %q", got)
	}
}

func TestTargetRepositories(t *testing.T) {
	setupTestDB(t)

	if _, err := db.AddRepository("social-core", "git@github.com:python-social-auth/social-core.git", "", "", ""); err != nil {
		t.Fatalf("AddRepository: %v", err)
	}
	if _, err := db.AddRepository("social-app-django", "git@github.com:python-social-auth/social-app-django.git", "", "", ""); err != nil {
		t.Fatalf("AddRepository: %v", err)
	}

	all, err := targetRepositories(nil)
	if err != nil {
		t.Fatalf("targetRepositories(nil): %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 active repositories, got %d", len(all))
	}

	one, err := targetRepositories([]string{"social-app-django"})
	if err != nil {
		t.Fatalf("targetRepositories(named): %v", err)
	}
	if len(one) != 1 || one[0].Name != "social-app-django" {
		t.Fatalf("expected only social-app-django, got %+v", one)
	}

	if _, err := targetRepositories([]string{"no-such-repo"}); err == nil {
		t.Error("unknown repository name should be an error")
	}
}
