// Copyright (c) 2026 Repofleet Authors
// Repofleet - shared file propagation for repository fleets
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the command-line interface (CLI) for the Repofleet
// application using the Cobra library. It defines the root command,
// subcommands (like sync, audit, revision), flags, and the main entry
// point for execution.

package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	stdsync "sync"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"

	"github.com/repofleet/repofleet/internal/config"
	"github.com/repofleet/repofleet/internal/db"
	"github.com/repofleet/repofleet/internal/gitrepo"
	"github.com/repofleet/repofleet/internal/i18n"
	"github.com/repofleet/repofleet/internal/logging"
	"github.com/repofleet/repofleet/internal/manifest"
	"github.com/repofleet/repofleet/internal/mirror"
	"github.com/repofleet/repofleet/internal/model"
	"github.com/repofleet/repofleet/internal/sync"
	"github.com/repofleet/repofleet/internal/tui"
)

// These are set by the linker at build time.
var (
	version   = "dev"
	gitCommit = "none"
	buildDate = ""
)

var (
	cfgFile string
	verbose bool
	cfg     config.Config
)

// main is the entry point of the application.
func main() {
	if err := rootCmd.Execute(); err != nil {
		// The error is already printed by Cobra on failure.
		os.Exit(1)
	}
}

var rootCmd *cobra.Command

func init() {
	rootCmd = newRootCmd()
}

// configDefaults are used when a setting is absent from the config file,
// environment and flags.
func configDefaults() map[string]any {
	return map[string]any{
		"database.type":      "sqlite",
		"database.dsn":       "./repofleet.db",
		"language":           "en",
		"fleet.root":         "./fleet",
		"fleet.base":         "social-core",
		"fleet.remote_prefix": "git@github.com:python-social-auth/",
		"fleet.manifest":     manifest.DefaultPath,
	}
}

// newRootCmd creates and configures a new root cobra command.
// This function is used to create the main application command as well as
// fresh instances for isolated testing.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repofleet",
		Short: "Repofleet keeps shared files identical across a fleet of repositories.",
		Long: `Repofleet propagates shared files (CI config, security policy,
lint setup) from one base repository to every sibling repository in an
organization. A database records which revision of the shared file set
each repository carries, and audits detect copies that drifted from the
base.

Running without a subcommand will launch the interactive TUI.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadConfig[config.Config](cmd, configDefaults(), cfgFileArg())
			if err != nil {
				return err
			}
			if written, err := config.EnsureDefaultConfig(&cfg); err == nil && written != "" {
				fmt.Printf("No config file found. Created a default config at %s.\n", written)
			}
			i18n.Init(cfg.Language)
			logging.SetDebug(verbose)
			db.SetDebug(verbose)
			if err := db.InitDB(cfg.Database.Type, cfg.Database.Dsn); err != nil {
				return fmt.Errorf("%s", i18n.T("config.error_init_db", err))
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			// The database is already initialized by PersistentPreRunE.
			tui.Run(fleetLayout(), cfg.Fleet.Manifest)
		},
	}

	cmd.AddCommand(syncCmd)
	cmd.AddCommand(auditCmd)
	cmd.AddCommand(statusCmd)
	cmd.AddCommand(revisionCmd)
	cmd.AddCommand(repoCmd)
	cmd.AddCommand(trustHostCmd)
	cmd.AddCommand(mirrorCmd)
	cmd.AddCommand(backupCmd)
	cmd.AddCommand(restoreCmd)
	cmd.AddCommand(migrateCmd)
	cmd.AddCommand(dbMaintainCmd)
	cmd.AddCommand(versionCmd)

	cmd.Version = version

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is repofleet.yaml in the user config dir or current directory)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().String("database.type", "sqlite", "Database type (sqlite, postgres, mysql)")
	cmd.PersistentFlags().String("database.dsn", "./repofleet.db", "Database connection string (DSN)")
	cmd.PersistentFlags().String("language", "en", `Output language ("en", "de")`)

	return cmd
}

// cfgFileArg adapts the --config flag to LoadConfig's optional file path.
func cfgFileArg() *string {
	if cfgFile == "" {
		return nil
	}
	return &cfgFile
}

// fleetLayout resolves the configured fleet paths.
func fleetLayout() sync.Fleet {
	return sync.Fleet{Root: cfg.Fleet.Root, BaseName: cfg.Fleet.Base}
}

// prepareBase brings the base repository's working copy up to date and loads
// the manifest from it. Every sync and audit starts here, matching the rule
// that the base is always refreshed before anything is propagated.
func prepareBase(cmd *cobra.Command) (sync.Fleet, *model.Repository, *manifest.Manifest, error) {
	fleet := fleetLayout()
	base, err := db.GetRepositoryByName(fleet.BaseName)
	if err != nil {
		return fleet, nil, nil, err
	}
	if base == nil {
		return fleet, nil, nil, fmt.Errorf("%s", i18n.T("sync.error_no_base", fleet.BaseName))
	}
	if err := gitrepo.Checkout(cmd.Context(), fleet.BaseDir(), base.RemoteURL, base.Branch); err != nil {
		return fleet, nil, nil, err
	}
	manifestPath := cfg.Fleet.Manifest
	if manifestPath == "" {
		manifestPath = manifest.DefaultPath
	}
	m, err := manifest.Load(filepath.Join(fleet.BaseDir(), manifestPath))
	if err != nil {
		return fleet, nil, nil, err
	}
	return fleet, base, m, nil
}

// parallelTask defines a generic task to be executed in parallel across
// multiple repositories. It holds configuration for messaging, logging, and
// the core task function to be executed.
type parallelTask struct {
	name       string
	startMsg   string
	successMsg string
	failMsg    string
	successLog string
	failLog    string
	taskFunc   func(model.Repository) error
}

// runParallelTasks executes a given task concurrently for a list of
// repositories. It uses a wait group to manage goroutines and a channel to
// collect results, printing status messages as tasks complete.
func runParallelTasks(repos []model.Repository, task parallelTask) {
	if len(repos) == 0 {
		fmt.Println(i18n.T("sync.no_repos"))
		return
	}

	var wg stdsync.WaitGroup
	results := make(chan string, len(repos))

	fmt.Println(task.startMsg)

	for _, r := range repos {
		wg.Add(1)
		go func(repo model.Repository) {
			defer wg.Done()
			err := task.taskFunc(repo)
			details := fmt.Sprintf("repository: %s", repo.String())
			if err != nil {
				results <- i18n.T(task.failMsg, repo.String(), err)
				_ = db.LogAction(task.failLog, fmt.Sprintf("%s, error: %v", details, err))
			} else {
				results <- i18n.T(task.successMsg, repo.String())
				_ = db.LogAction(task.successLog, details)
			}
		}(r)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		fmt.Println(res)
	}
	fmt.Println("\n" + i18n.T("sync.complete_message"))
}

// targetRepositories resolves an optional name argument against the active
// fleet members.
func targetRepositories(args []string) ([]model.Repository, error) {
	repos, err := db.GetAllActiveRepositories()
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return repos, nil
	}
	for _, r := range repos {
		if r.Name == args[0] {
			return []model.Repository{r}, nil
		}
	}
	return nil, fmt.Errorf("%s", i18n.T("repo.not_found", args[0]))
}

// syncCmd represents the 'sync' command.
// It propagates the manifest file set from the base repository to one or
// all active fleet members, committing and pushing where anything changed.
var syncCmd = &cobra.Command{
	Use:   "sync [repository]",
	Short: "Propagate shared files from the base repository to the fleet",
	Long: `Updates every working copy, copies the manifest files from the base
repository, and commits and pushes in each repository where the copies
changed. The base repository is always refreshed first and a new manifest
revision is published when its shared files changed.

If a repository name is given, only that repository is synced.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fleet, _, m, err := prepareBase(cmd)
		if err != nil {
			log.Fatalf("%v", err)
		}
		rev, _, err := sync.RefreshRevision(fleet.BaseDir(), m)
		if err != nil {
			log.Fatalf("%v", err)
		}

		repos, err := targetRepositories(args)
		if err != nil {
			log.Fatalf("%v", err)
		}

		// The base is recorded as synced first and excluded from the
		// parallel fan-out; its working copy is already current.
		var targets []model.Repository
		for _, r := range repos {
			if r.Name == fleet.BaseName {
				if _, err := sync.RunSyncForRepository(cmd.Context(), fleet, r, m, rev); err != nil {
					log.Fatalf("%s", i18n.T("sync.fail_message", r.String(), err))
				}
				continue
			}
			targets = append(targets, r)
		}

		runParallelTasks(targets, parallelTask{
			name:       "sync",
			startMsg:   i18n.T("sync.cli_start"),
			successMsg: "sync.success_message",
			failMsg:    "sync.fail_message",
			successLog: "CLI_SYNC_SUCCESS",
			failLog:    "SYNC_FAIL",
			taskFunc: func(repo model.Repository) error {
				_, err := sync.RunSyncForRepository(cmd.Context(), fleet, repo, m, rev)
				return err
			},
		})
	},
}

// auditCmd represents the 'audit' command.
// It compares every fleet member's working copy against the base repository
// and reports divergence without changing anything.
var auditCmd = &cobra.Command{
	Use:   "audit [repository]",
	Short: "Audit the fleet for shared-file drift",
	Long: `Refreshes every working copy and compares the manifest files against
the base repository's copies. Modified files are critical findings; missing
files and stale revision serials are warnings.

With --record, findings are written to the drift event log and each
repository's dirty flag is updated.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		record, _ := cmd.Flags().GetBool("record")

		fleet, _, m, err := prepareBase(cmd)
		if err != nil {
			log.Fatalf("%v", err)
		}
		rev, err := db.GetActiveManifestRevision()
		if err != nil {
			log.Fatalf("%v", err)
		}

		repos, err := targetRepositories(args)
		if err != nil {
			log.Fatalf("%s", i18n.T("audit.error_get_repos", err))
		}

		fmt.Println(i18n.T("audit.cli_start"))
		for _, repo := range repos {
			analysis, err := sync.AuditRepository(cmd.Context(), fleet, repo, m, rev)
			if err != nil {
				fmt.Println(i18n.T("audit.fail_message", repo.String(), err))
				_ = db.LogAction("CLI_AUDIT_FAIL", fmt.Sprintf("repository: %s, error: %v", repo.String(), err))
				continue
			}
			if analysis.HasDrift {
				fmt.Println(i18n.T("audit.drift_message", repo.String(), analysis.Summary()))
			} else {
				fmt.Println(i18n.T("audit.clean_message", repo.String()))
			}
			if record {
				if err := sync.RecordDrift(repo, analysis); err != nil {
					log.Fatalf("%v", err)
				}
			}
			_ = db.LogAction("CLI_AUDIT_SUCCESS", fmt.Sprintf("repository: %s, result: %s", repo.String(), analysis.Summary()))
		}
	},
}

// revisionCmd represents the 'revision' command.
// It shows the active manifest revision, or republishes it from the base
// repository's current file set with --refresh.
var revisionCmd = &cobra.Command{
	Use:   "revision",
	Short: "Show or refresh the active manifest revision",
	Long: `Without flags, prints the active manifest revision: its serial, content
hash and publication time.

With --refresh, the base repository is updated, its manifest file set is
hashed, and a new revision is published if the content changed.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		refresh, _ := cmd.Flags().GetBool("refresh")
		if refresh {
			fleet, _, m, err := prepareBase(cmd)
			if err != nil {
				log.Fatalf("%v", err)
			}
			rev, created, err := sync.RefreshRevision(fleet.BaseDir(), m)
			if err != nil {
				log.Fatalf("%v", err)
			}
			if created {
				fmt.Println(i18n.T("revision.refreshed", rev.Serial))
			} else {
				fmt.Println(i18n.T("revision.unchanged", rev.Serial))
			}
			return
		}

		rev, err := db.GetActiveManifestRevision()
		if err != nil {
			log.Fatalf("%v", err)
		}
		if rev == nil {
			fmt.Println(i18n.T("revision.none"))
			return
		}
		fmt.Println(i18n.T("revision.active", rev.Serial, shortHash(rev.ContentHash), rev.CreatedAt.Format("2006-01-02 15:04")))
	},
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

// trustHostCmd represents the 'trust-host' command.
// It facilitates the initial trust of a new mirror host by fetching its
// public SSH key, displaying its fingerprint, and prompting the user to save
// it to the database as a known host.
var trustHostCmd = &cobra.Command{
	Use:   "trust-host <host>",
	Short: "Adds a host's public key to the list of known hosts",
	Long: `Connects to a host for the first time, retrieves its public key,
and prompts the user to save it to the database. This is a required step
before Repofleet can mirror backups to a new host.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		hostname := args[0]
		if user, host, _, err := mirror.ParseTarget(args[0]); err == nil && user != "" {
			hostname = host
		}

		fmt.Println(i18n.T("trust_host.retrieving_key", hostname))
		key, err := mirror.GetRemoteHostKey(hostname)
		if err != nil {
			log.Fatalf("%s", i18n.T("trust_host.error_get_key", err))
		}

		fingerprint := ssh.FingerprintSHA256(key)
		fmt.Println("\n" + i18n.T("trust_host.authenticity_warning", hostname))
		fmt.Println(i18n.T("trust_host.fingerprint", key.Type(), fingerprint))

		if promptForConfirmation(i18n.T("trust_host.confirm_prompt")) != "yes" {
			fmt.Println(i18n.T("trust_host.cancelled"))
			os.Exit(1)
		}

		keyStr := string(ssh.MarshalAuthorizedKey(key))
		if err := db.AddKnownHostKey(hostname, keyStr); err != nil {
			log.Fatalf("%s", i18n.T("trust_host.error_save_key", err))
		}
		fmt.Println(i18n.T("trust_host.added", hostname))
	},
}

// versionCmd prints the build version, preferring linker-injected values and
// falling back to the binary's embedded build info.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		resolvedVersion := version
		resolvedCommit := gitCommit
		resolvedDate := buildDate
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.Main.Version != "" && info.Main.Version != "(devel)" {
				resolvedVersion = info.Main.Version
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					if s.Value != "" {
						resolvedCommit = s.Value
					}
				case "vcs.time":
					if s.Value != "" {
						resolvedDate = s.Value
					}
				}
			}
		}
		fmt.Printf("version: %s\n", resolvedVersion)
		fmt.Printf("commit: %s\n", resolvedCommit)
		if resolvedDate != "" {
			fmt.Printf("built: %s\n", resolvedDate)
		}
	},
}

// promptForConfirmation displays a prompt and reads a line from stdin.
func promptForConfirmation(prompt string) string {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	return trimAnswer(answer)
}

func trimAnswer(answer string) string {
	return strings.TrimSpace(strings.ToLower(answer))
}

func init() {
	auditCmd.Flags().Bool("record", false, "Record findings as drift events and update dirty flags")
	revisionCmd.Flags().Bool("refresh", false, "Publish a new revision if the base file set changed")
}
