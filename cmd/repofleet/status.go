// Copyright (c) 2026 Repofleet Authors
// Repofleet - shared file propagation for repository fleets
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"fmt"
	"log"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/repofleet/repofleet/internal/db"
	"github.com/repofleet/repofleet/internal/i18n"
)

var (
	dirtyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	staleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	cleanStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
)

// statusCmd represents the 'status' command.
// It prints a one-line summary per repository: which revision it carries,
// whether it is dirty, and when it last synced.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sync state of every repository",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		repos, err := db.GetAllRepositories()
		if err != nil {
			log.Fatalf("%v", err)
		}
		if len(repos) == 0 {
			fmt.Println(i18n.T("status.no_repos"))
			return
		}

		rev, err := db.GetActiveManifestRevision()
		if err != nil {
			log.Fatalf("%v", err)
		}
		if rev == nil {
			fmt.Println(i18n.T("revision.none"))
		} else {
			fmt.Println(i18n.T("revision.active", rev.Serial, shortHash(rev.ContentHash), rev.CreatedAt.Format("2006-01-02 15:04")))
		}
		fmt.Println()

		fmt.Println(headerStyle.Render(fmt.Sprintf("%-30s %-8s %-8s %s", "REPOSITORY", "SERIAL", "STATE", "LAST SYNC")))
		for _, r := range repos {
			state := cleanStyle.Render("clean")
			switch {
			case !r.IsActive:
				state = mutedStyle.Render("disabled")
			case r.IsDirty:
				state = dirtyStyle.Render("dirty")
			case rev != nil && r.Serial < rev.Serial:
				state = staleStyle.Render("stale")
			}
			lastSync := "never"
			if r.LastSyncedAt != nil {
				lastSync = r.LastSyncedAt.Local().Format("2006-01-02 15:04")
			}
			fmt.Printf("%-30s %-8d %-8s %s\n", r.String(), r.Serial, state, lastSync)
		}
	},
}
