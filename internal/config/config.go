package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the application configuration, populated from defaults, the
// repofleet.yaml file, environment variables and CLI flags (in that order
// of increasing precedence).
type Config struct {
	Database struct {
		Type string `mapstructure:"type" yaml:"type"`
		Dsn  string `mapstructure:"dsn" yaml:"dsn"`
	} `mapstructure:"database" yaml:"database"`

	Language string `mapstructure:"language" yaml:"language"`

	Fleet struct {
		// Root is the directory working copies are cloned into.
		Root string `mapstructure:"root" yaml:"root"`
		// Base names the repository the shared files are copied from.
		Base string `mapstructure:"base" yaml:"base"`
		// RemotePrefix is prepended to a repository name when `repo add`
		// is called without an explicit remote, e.g.
		// "git@github.com:python-social-auth/".
		RemotePrefix string `mapstructure:"remote_prefix" yaml:"remote_prefix"`
		// Manifest is the path of the sync manifest, relative to the
		// base repository's working copy.
		Manifest string `mapstructure:"manifest" yaml:"manifest"`
	} `mapstructure:"fleet" yaml:"fleet"`

	Mirror struct {
		// PrivateKeyPath points at the key used for SFTP mirroring.
		// When empty, only the SSH agent is tried.
		PrivateKeyPath string `mapstructure:"private_key_path" yaml:"private_key_path"`
	} `mapstructure:"mirror" yaml:"mirror"`
}

// getConfigPath returns the full path for the configuration file.
func getConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		// System-wide configuration paths
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "Repofleet")
		default: // Linux, macOS, etc.
			configDir = "/etc/repofleet"
		}
	} else {
		// User-specific configuration paths
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "repofleet")
	}

	return filepath.Join(configDir, "repofleet.yaml"), nil
}

func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, additionalConfigFilePath *string) (T, error) {
	var c T
	v := viper.New()

	// 1. Set defaults
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// 2. Set up file search paths (repofleet.yaml)
	v.SetConfigName("repofleet")
	v.SetConfigType("yaml")

	// 3. Add explicit config file path if provided via --config flag.
	// This has the highest precedence for file-based configuration.
	if additionalConfigFilePath != nil {
		v.SetConfigFile(*additionalConfigFilePath)
	}

	// 4. Add standard config locations
	if userConfigPath, err := getConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := getConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".") // Look for repofleet.yaml in current dir

	// 5. Read in the primary config file.
	if err := v.ReadInConfig(); err != nil {
		// It's okay if the file is not found, but other errors are fatal.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	// 6. Merge a `.repofleet.yaml` in the current directory when present,
	// for projects that keep the fleet config alongside the base repo.
	mergeDotfileConfig(v)

	// 7. Read from environment variables
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix("repofleet")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return c, err
	}

	// parse config
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	return c, nil
}

// mergeDotfileConfig checks for a `.repofleet.yaml` file in the current
// directory and merges it into the viper configuration if found.
func mergeDotfileConfig(v *viper.Viper) {
	dotfile := ".repofleet.yaml"
	if _, err := os.Stat(dotfile); err == nil {
		v.SetConfigFile(dotfile)
		// MergeInConfig errors on a malformed file, which is the desired
		// behavior; a missing file was already ruled out above. The error
		// is ignored so a broken dotfile doesn't prevent startup.
		_ = v.MergeInConfig()
		// Reset the config file path to avoid side effects.
		v.SetConfigFile("")
	}
}

// EnsureDefaultConfig writes the current configuration to the user config
// path when no config file exists in any of the searched locations. It
// returns the path written, or "" when a config file was already present.
// Write failures are not fatal; the application simply runs with in-memory
// defaults.
func EnsureDefaultConfig(c *Config) (string, error) {
	candidates := []string{"repofleet.yaml", ".repofleet.yaml"}
	if userPath, err := getConfigPath(false); err == nil {
		candidates = append(candidates, userPath)
	}
	if systemPath, err := getConfigPath(true); err == nil {
		candidates = append(candidates, systemPath)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return "", nil
		}
	}

	if err := WriteConfigFile(c, false); err != nil {
		return "", err
	}
	path, err := getConfigPath(false)
	if err != nil {
		return "", err
	}
	return path, nil
}

func WriteConfigFile[T any](c *T, system bool) error {
	path, err := getConfigPath(system)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	err = os.WriteFile(path, data, 0600) // may contain DSN credentials
	if err != nil {
		return err
	}

	return nil
}
