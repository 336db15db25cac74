package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mlcore/internal/domain"
	"mlcore/internal/modmanager"
)

var (
	updateLocalPath string
	updateDestID    string
	updateCode      string
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update an already-installed mod's payload",
	Long: `Update an installed mod's payload, either from a local file:

  mlcore update --local /path/to/mod.zip --id my-mod

or by re-fetching a remote install code:

  mlcore update --remote some-mod-code`,
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().StringVar(&updateLocalPath, "local", "", "path to a local mod file (.zip or a single file)")
	updateCmd.Flags().StringVar(&updateDestID, "id", "", "destination mod id (required with --local)")
	updateCmd.Flags().StringVar(&updateCode, "remote", "", "remote install code")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	source, err := resolveSource(updateLocalPath, updateDestID, updateCode)
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
		mod, err = a.mgr.Update(ctx, source)
		return err
	})
	if err != nil {
		return fmt.Errorf("updating mod: %w", err)
	}

	fmt.Printf("Updated %s.\n", mod.ID)
	return nil
}
