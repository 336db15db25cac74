// Command mlcore is a terminal entrypoint over the mod management core:
// enough of a CLI to exercise get/list/remove/install/update and a
// long-running "serve" daemon form independently of any desktop UI.
// Grounded on cmd/lmm/root.go's cobra wiring.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"mlcore/internal/config"
)

var version = "0.1.0"

var (
	flagInstallDir  string
	flagConfigPath  string
	flagAPIToken    string
	flagServiceRoot string
	flagVerbose     bool
	flagJSON        bool
)

var rootCmd = &cobra.Command{
	Use:   "mlcore",
	Short: "Mod management core — install, update, and track single-player game mods",
	Long: `mlcore manages a local directory of installed mods: installing and
updating them from local files or from a remote catalog service, keeping
an always-current in-memory view, and (via "serve") staying connected to
that service's install-request gateway.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagInstallDir, "install-dir", "", "directory mods are installed into (default: ~/.local/share/mlcore/mods)")
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to an explicit config.yaml (default: ~/.config/mlcore/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagAPIToken, "api-token", "", "auth token for the remote catalog service")
	rootCmd.PersistentFlags().StringVar(&flagServiceRoot, "service-root", "", "remote catalog service root (default: https://spelunky.fyi)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format (get, list)")
}

// Execute runs the root command. Exit codes: 0 = success, 1 = error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if flagJSON {
			fmt.Printf(`{"error":%q}`+"\n", err.Error())
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig resolves the effective configuration: the config.yaml in the
// directory of an explicit --config path if given (a file there under any
// other name is validated but not read), otherwise the default config
// directory, with any persistent flags overriding what was loaded.
func loadConfig() (*config.Config, string, error) {
	configDir, err := defaultConfigDir()
	if err != nil {
		return nil, "", err
	}

	var cfg *config.Config
	if flagConfigPath != "" {
		path, err := config.ParseConfigPath(flagConfigPath)
		if err != nil {
			return nil, "", err
		}
		cfg, err = config.Load(filepath.Dir(path))
		if err != nil {
			return nil, "", err
		}
	} else {
		cfg, err = config.Load(configDir)
		if err != nil {
			return nil, "", err
		}
	}

	if flagInstallDir != "" {
		cfg.InstallDir = flagInstallDir
	}
	if flagAPIToken != "" {
		cfg.APIToken = flagAPIToken
	}
	if flagServiceRoot != "" {
		cfg.ServiceRoot = flagServiceRoot
	}

	if cfg.InstallDir == "" {
		dataDir, err := defaultDataDir()
		if err != nil {
			return nil, "", err
		}
		cfg.InstallDir = filepath.Join(dataDir, "mods")
	}

	return cfg, configDir, nil
}

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "mlcore"), nil
}

func defaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "mlcore"), nil
}

// errNotConfigured is returned by commands that need the remote service
// when no api-token/service-root pair is configured.
var errNotConfigured = errors.New("remote service not configured: set --api-token and --service-root, or save them in config.yaml")
