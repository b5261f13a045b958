// Copyright (c) 2026 Repofleet Authors
// Repofleet - shared file propagation for repository fleets
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/repofleet/repofleet/internal/db"
	"github.com/repofleet/repofleet/internal/i18n"
	"github.com/repofleet/repofleet/internal/model"
)

// repoCmd groups the fleet membership commands.
var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage the repositories in the fleet",
	Long:  `Add, list, remove, enable/disable and label the repositories the shared files are propagated to.`,
}

// lookupRepo resolves a repository name or fails with a consistent message.
func lookupRepo(name string) *model.Repository {
	repo, err := db.GetRepositoryByName(name)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if repo == nil {
		log.Fatalf("%s", i18n.T("repo.not_found", name))
	}
	return repo
}

// repoAddCmd registers a new repository. When no remote URL is given, the
// configured remote prefix is combined with the repository name, matching
// how sibling repositories are laid out in a single GitHub organization.
var repoAddCmd = &cobra.Command{
	Use:   "add <name> [remote-url]",
	Short: "Register a repository in the fleet",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]
		remoteURL := ""
		if len(args) > 1 {
			remoteURL = args[1]
		} else {
			if cfg.Fleet.RemotePrefix == "" {
				log.Fatalf("no remote URL given and fleet.remote_prefix is not configured")
			}
			remoteURL = cfg.Fleet.RemotePrefix + name + ".git"
		}
		branch, _ := cmd.Flags().GetString("branch")
		label, _ := cmd.Flags().GetString("label")
		tags, _ := cmd.Flags().GetString("tags")

		if _, err := db.AddRepository(name, remoteURL, branch, label, tags); err != nil {
			if errors.Is(err, db.ErrDuplicate) {
				fmt.Println(i18n.T("repo.duplicate", name))
				return
			}
			log.Fatalf("%v", err)
		}
		fmt.Println(i18n.T("repo.added", name, remoteURL))
	},
}

// repoListCmd prints the fleet roster.
var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered repositories",
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
		for _, r := range repos {
			state := "active"
			if !r.IsActive {
				state = "disabled"
			}
			extra := ""
			if r.Tags != "" {
				extra = "  [" + r.Tags + "]"
			}
			fmt.Printf("%-30s serial %-3d %-8s %s%s\n", r.String(), r.Serial, state, r.RemoteURL, extra)
		}
	},
}

// repoRemoveCmd deletes a repository from the fleet. Drift events recorded
// for it go with it, so removal asks for confirmation unless forced.
var repoRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a repository from the fleet",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		repo := lookupRepo(args[0])
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			answer := promptForConfirmation(fmt.Sprintf("Remove %s from the fleet? (yes/no): ", repo.String()))
			if answer != "yes" && answer != "y" {
				return
			}
		}
		if err := db.DeleteRepository(repo.ID); err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Println(i18n.T("repo.removed", repo.Name))
	},
}

// repoEnableCmd toggles a repository's active flag. Disabled repositories
// are skipped by sync and audit but stay in the database.
var repoEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Toggle a repository between active and disabled",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		repo := lookupRepo(args[0])
		if err := db.ToggleRepositoryStatus(repo.ID); err != nil {
			log.Fatalf("%v", err)
		}
		state := "active"
		if repo.IsActive {
			state = "disabled"
		}
		fmt.Println(i18n.T("repo.toggled", repo.Name, state))
	},
}

// repoSetLabelCmd sets or clears a repository's display label.
var repoSetLabelCmd = &cobra.Command{
	Use:   "set-label <name> [label]",
	Short: "Set or clear a repository's display label",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		repo := lookupRepo(args[0])
		label := ""
		if len(args) > 1 {
			label = args[1]
		}
		if err := db.UpdateRepositoryLabel(repo.ID, label); err != nil {
			log.Fatalf("%v", err)
		}
	},
}

// repoSetTagsCmd sets or clears a repository's tags.
var repoSetTagsCmd = &cobra.Command{
	Use:   "set-tags <name> [tags]",
	Short: "Set or clear a repository's comma-separated tags",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		repo := lookupRepo(args[0])
		tags := ""
		if len(args) > 1 {
			tags = strings.TrimSpace(args[1])
		}
		if err := db.UpdateRepositoryTags(repo.ID, tags); err != nil {
			log.Fatalf("%v", err)
		}
	},
}

func init() {
	repoAddCmd.Flags().String("branch", "", "Branch to track (default: the remote's default branch)")
	repoAddCmd.Flags().String("label", "", "Optional display label")
	repoAddCmd.Flags().String("tags", "", "Optional comma-separated tags")
	repoRemoveCmd.Flags().Bool("force", false, "Remove without confirmation")

	repoCmd.AddCommand(repoAddCmd)
	repoCmd.AddCommand(repoListCmd)
	repoCmd.AddCommand(repoRemoveCmd)
	repoCmd.AddCommand(repoEnableCmd)
	repoCmd.AddCommand(repoSetLabelCmd)
	repoCmd.AddCommand(repoSetTagsCmd)
}
