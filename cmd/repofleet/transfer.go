// Copyright (c) 2026 Repofleet Authors
// Repofleet - shared file propagation for repository fleets
// This source code is licensed under the MIT license found in the LICENSE file.

// transfer.go holds the commands that move fleet state between databases
// and hosts: backup, restore, migrate, mirror and db-maintain.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/repofleet/repofleet/internal/db"
	"github.com/repofleet/repofleet/internal/i18n"
	"github.com/repofleet/repofleet/internal/mirror"
	"github.com/repofleet/repofleet/internal/model"
	"github.com/repofleet/repofleet/internal/state"
)

var fullRestore bool // Flag for the restore command

// readCompressedBackup handles reading and decoding a zstd-compressed JSON backup file.
func readCompressedBackup(filename string) (*model.BackupData, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	zstdReader, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("could not create zstd reader: %w", err)
	}
	defer zstdReader.Close()

	var backupData model.BackupData
	if err := json.NewDecoder(zstdReader).Decode(&backupData); err != nil {
		return nil, fmt.Errorf("could not decode json from zstd reader: %w", err)
	}
	return &backupData, nil
}

// writeCompressedBackup handles the process of writing the backup data to a
// zstd-compressed file. It streams the JSON encoding directly to the zstd
// writer for memory efficiency.
func writeCompressedBackup(filename string, data *model.BackupData) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	defer func() { _ = file.Close() }()

	zstdWriter, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("could not create zstd writer: %w", err)
	}
	defer func() { _ = zstdWriter.Close() }()

	encoder := json.NewEncoder(zstdWriter)
	encoder.SetIndent("", "  ") // Pretty-print the JSON inside the compressed file

	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("could not encode json to zstd writer: %w", err)
	}
	return nil
}

// encodeCompressedBackup produces the archive bytes in memory, for uploads.
func encodeCompressedBackup(data *model.BackupData) ([]byte, error) {
	var buf bytes.Buffer
	zstdWriter, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("could not create zstd writer: %w", err)
	}
	if err := json.NewEncoder(zstdWriter).Encode(data); err != nil {
		_ = zstdWriter.Close()
		return nil, fmt.Errorf("could not encode json to zstd writer: %w", err)
	}
	if err := zstdWriter.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// backupCmd represents the 'backup' command.
// It dumps all data from the database into a single compressed JSON file.
var backupCmd = &cobra.Command{
	Use:   "backup [output-file]",
	Short: "Create a compressed (zstd) JSON backup of the database",
	Long: `Dumps the entire contents of the Repofleet database (repositories,
manifest revisions, drift events, audit logs, trusted hosts) into a single,
Zstandard-compressed JSON file.

If an output file is specified, '.zst' will be appended to the name if it's
not already present. If no output file is specified, a default filename
'repofleet-backup-YYYY-MM-DD.json.zst' is used.

This file can be used for disaster recovery or for migrating to a different
database backend.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var outputFile string
		if len(args) == 0 {
			outputFile = fmt.Sprintf("repofleet-backup-%s.json.zst", time.Now().Format("2006-01-02"))
		} else {
			outputFile = args[0]
			if !strings.HasSuffix(outputFile, ".zst") {
				outputFile += ".zst"
			}
		}
		fmt.Println(i18n.T("backup.cli_starting"))
		data, err := db.ExportDataForBackup()
		if err != nil {
			log.Fatalf("%s", i18n.T("backup.cli_error_export", err))
		}
		if err := writeCompressedBackup(outputFile, data); err != nil {
			log.Fatalf("%s", i18n.T("backup.cli_error_write", err))
		}
		fmt.Println(i18n.T("backup.cli_success", outputFile))
	},
}

// restoreCmd represents the 'restore' command.
// It restores the database from a compressed JSON backup file.
var restoreCmd = &cobra.Command{
	Use:   "restore <backup-file.zst>",
	Short: "Restore the database from a compressed JSON backup",
	Long: `Restores the Repofleet database from a Zstandard-compressed JSON backup
file. By default, this command performs a non-destructive "integration"
restore, only adding records that do not already exist.

To perform a full, destructive restore that WIPES all existing data before
importing, use the --full flag.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		inputFile := args[0]
		fmt.Println(i18n.T("restore.cli_starting", inputFile))
		backup, err := readCompressedBackup(inputFile)
		if err != nil {
			log.Fatalf("%s", i18n.T("restore.cli_error_read", err))
		}
		if fullRestore {
			err = db.ImportDataFromBackup(backup)
		} else {
			err = db.IntegrateDataFromBackup(backup)
		}
		if err != nil {
			log.Fatalf("%s", i18n.T("restore.cli_error_import", err))
		}
		fmt.Println(i18n.T("restore.cli_success"))
	},
}

// migrateCmd represents the 'migrate' command.
var migrateCmd = &cobra.Command{
	Use:   "migrate --target-type <db-type> --target-dsn <dsn>",
	Short: "Migrate data from the current database to a new one",
	Long: `Performs a database migration by exporting all data from the current
database and importing it into a new target database.

This command automates the following steps:
1. Exports data from the source database in-memory.
2. Connects to the target database specified by --target-type and --target-dsn.
3. Applies all necessary database schema migrations to the target.
4. Performs a full, destructive restore into the target database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		targetType, _ := cmd.Flags().GetString("target-type")
		targetDsn, _ := cmd.Flags().GetString("target-dsn")
		if targetType == "" || targetDsn == "" {
			log.Fatalf("%s", i18n.T("migrate.cli_error_flags"))
		}

		fmt.Println(i18n.T("migrate.cli_starting_backup"))
		backup, err := db.ExportDataForBackup()
		if err != nil {
			log.Fatalf("%s", i18n.T("migrate.cli_error_backup", err))
		}

		target, err := db.NewStoreFromDSN(targetType, targetDsn)
		if err != nil {
			log.Fatalf("%s", i18n.T("migrate.cli_error_backup", err))
		}
		if err := target.ImportDataFromBackup(backup); err != nil {
			log.Fatalf("%s", i18n.T("migrate.cli_error_backup", err))
		}

		fmt.Println(i18n.T("migrate.cli_success"))
		fmt.Println(i18n.T("migrate.cli_next_steps"))
		return nil
	},
}

// mirrorCmd represents the 'mirror' command.
// It uploads a compressed backup archive of the database to a remote host
// over SFTP, using the configured mirror key with SSH agent fallback.
var mirrorCmd = &cobra.Command{
	Use:   "mirror <user@host:path>",
	Short: "Upload a backup archive to a remote host over SFTP",
	Long: `Exports the database, compresses it, and uploads it to the given
user@host:path over SFTP. The host must be trusted first with
'repofleet trust-host'.

Authentication uses the key configured as mirror.private_key_path, falling
back to a running SSH agent. Use --ask-passphrase when the mirror key is
encrypted.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		user, host, remotePath, err := mirror.ParseTarget(args[0])
		if err != nil {
			log.Fatalf("%v", err)
		}

		askPassphrase, _ := cmd.Flags().GetBool("ask-passphrase")
		if askPassphrase {
			fmt.Print("Passphrase for mirror key: ")
			pass, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Println()
			if err != nil {
				log.Fatalf("%v", err)
			}
			state.PassphraseCache.Set(pass)
		}

		fmt.Println(i18n.T("mirror.starting", host))
		data, err := db.ExportDataForBackup()
		if err != nil {
			log.Fatalf("%s", i18n.T("backup.cli_error_export", err))
		}
		archive, err := encodeCompressedBackup(data)
		if err != nil {
			log.Fatalf("%s", i18n.T("backup.cli_error_write", err))
		}

		// Wipe the passphrase from memory once the connection attempt is over.
		passphrase := state.PassphraseCache.Get()
		defer func() {
			for i := range passphrase {
				passphrase[i] = 0
			}
			state.PassphraseCache.Clear()
		}()

		deployer, err := mirror.NewDeployer(host, user, cfg.Mirror.PrivateKeyPath, passphrase)
		if err != nil {
			log.Fatalf("%s", i18n.T("mirror.error_connect", err))
		}
		defer deployer.Close()

		if err := deployer.Upload(archive, remotePath); err != nil {
			log.Fatalf("%s", i18n.T("mirror.error_upload", err))
		}
		_ = db.LogAction("MIRROR_STATE", fmt.Sprintf("target: %s@%s:%s", user, host, remotePath))
		fmt.Println(i18n.T("mirror.success", args[0]))
	},
}

// dbMaintainCmd represents the 'db-maintain' command.
var dbMaintainCmd = &cobra.Command{
	Use:   "db-maintain",
	Short: "Run engine-specific database maintenance",
	Long: `Runs maintenance tasks appropriate for the configured database engine:
VACUUM, checkpointing and an integrity check for SQLite, VACUUM ANALYZE for
PostgreSQL, and OPTIMIZE TABLE for MySQL.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		skipIntegrity, _ := cmd.Flags().GetBool("skip-integrity")
		timeoutSecs, _ := cmd.Flags().GetInt("timeout")

		fmt.Println(i18n.T("maintain.starting", cfg.Database.Type))
		err := db.RunDBMaintenance(cfg.Database.Type, cfg.Database.Dsn, skipIntegrity, time.Duration(timeoutSecs)*time.Second)
		if err != nil {
			log.Fatalf("%s", i18n.T("maintain.failed", err))
		}
		_ = db.LogAction("DB_MAINTENANCE", fmt.Sprintf("type: %s", cfg.Database.Type))
		fmt.Println(i18n.T("maintain.success"))
	},
}

func init() {
	restoreCmd.Flags().BoolVar(&fullRestore, "full", false, "Perform a full, destructive restore (wipes all existing data first)")
	migrateCmd.Flags().String("target-type", "", "Target database type (sqlite, postgres, mysql)")
	migrateCmd.Flags().String("target-dsn", "", "Target database connection string (DSN)")
	mirrorCmd.Flags().Bool("ask-passphrase", false, "Prompt for the mirror key passphrase")
	dbMaintainCmd.Flags().Bool("skip-integrity", false, "Skip the SQLite integrity check")
	dbMaintainCmd.Flags().Int("timeout", 120, "Maintenance timeout in seconds")
}
