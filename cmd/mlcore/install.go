package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mlcore/internal/domain"
	"mlcore/internal/modmanager"
)

var (
	installLocalPath string
	installDestID    string
	installCode      string
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install a mod from a local file or the remote catalog",
	Long: `Install a mod either from a local file:

  mlcore install --local /path/to/mod.zip --id my-mod

or from the remote catalog by install code:

  mlcore install --remote some-mod-code`,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().StringVar(&installLocalPath, "local", "", "path to a local mod file (.zip or a single file)")
	installCmd.Flags().StringVar(&installDestID, "id", "", "destination mod id (required with --local)")
	installCmd.Flags().StringVar(&installCode, "remote", "", "remote install code")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	source, err := resolveSource(installLocalPath, installDestID, installCode)
	if err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if source.Kind == modmanager.SourceRemote && (cfg.APIToken == "" || cfg.ServiceRoot == "") {
		return errNotConfigured
	}

	dataDir, err := defaultDataDir()
	if err != nil {
		return err
	}
	log := newLogger()

	a, err := newApp(cfg, dataDir, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var mod domain.Mod
	err = a.withBackground(func(ctx context.Context) error {
		mod, err = a.mgr.Install(ctx, source)
		return err
	})
	if err != nil {
		return fmt.Errorf("installing mod: %w", err)
	}

	fmt.Printf("Installed %s.\n", mod.ID)
	return nil
}

func resolveSource(localPath, destID, code string) (modmanager.ModSource, error) {
	switch {
	case localPath != "" && code != "":
		return modmanager.ModSource{}, fmt.Errorf("specify either --local or --remote, not both")
	case localPath != "":
		if destID == "" {
			return modmanager.ModSource{}, fmt.Errorf("--id is required with --local")
		}
		return modmanager.LocalSource(localPath, destID), nil
	case code != "":
		return modmanager.RemoteSource(code), nil
	default:
		return modmanager.ModSource{}, fmt.Errorf("specify --local <path> --id <mod-id> or --remote <code>")
	}
}
