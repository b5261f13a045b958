// Copyright (c) 2026 Repofleet Authors
// Repofleet - shared file propagation for repository fleets
// This source code is licensed under the MIT license found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("database.type", "", "")
	cmd.Flags().String("database.dsn", "", "")
	return cmd
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	defaults := map[string]any{
		"database.type": "sqlite",
		"database.dsn":  "./repofleet.db",
		"language":      "en",
		"fleet.root":    "./repos",
	}
	c, err := LoadConfig[Config](newTestCmd(), defaults, nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Database.Type != "sqlite" {
		t.Errorf("unexpected database type: %q", c.Database.Type)
	}
	if c.Fleet.Root != "./repos" {
		t.Errorf("unexpected fleet root: %q", c.Fleet.Root)
	}
}

func TestLoadConfigExplicitFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "custom.yaml")
	content := "database:\n  type: postgres\n  dsn: host=db\nfleet:\n  base: social-core\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	c, err := LoadConfig[Config](newTestCmd(), map[string]any{"database.type": "sqlite"}, &path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Database.Type != "postgres" || c.Database.Dsn != "host=db" {
		t.Errorf("config file values not applied: %+v", c.Database)
	}
	if c.Fleet.Base != "social-core" {
		t.Errorf("fleet.base not applied: %q", c.Fleet.Base)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("REPOFLEET_LANGUAGE", "de")

	c, err := LoadConfig[Config](newTestCmd(), map[string]any{"language": "en"}, nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Language != "de" {
		t.Errorf("environment override not applied: %q", c.Language)
	}
}

func TestLoadConfigDotfileMerge(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".repofleet.yaml"), []byte("fleet:\n  remote_prefix: git@github.com:example/\n"), 0600); err != nil {
		t.Fatal(err)
	}

	c, err := LoadConfig[Config](newTestCmd(), nil, nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Fleet.RemotePrefix != "git@github.com:example/" {
		t.Errorf("dotfile config not merged: %q", c.Fleet.RemotePrefix)
	}
}

func TestLoadConfigMalformedFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte("database: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig[Config](newTestCmd(), nil, &path); err == nil {
		t.Error("expected error for malformed config file")
	}
}
