package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mlcore/internal/domain"
)

var getCmd = &cobra.Command{
	Use:   "get <mod-id>",
	Short: "Show a single installed mod",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
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
		mod, err = a.mgr.Get(ctx, args[0])
		return err
	})
	if err != nil {
		return fmt.Errorf("getting mod %s: %w", args[0], err)
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(mod)
	}

	fmt.Printf("ID: %s\n", mod.ID)
	if mod.Manifest != nil {
		fmt.Printf("Name: %s\n", mod.Manifest.Name)
		fmt.Printf("Slug: %s\n", mod.Manifest.Slug)
	}
	fmt.Printf("Remote: %t\n", mod.IsRemote())
	return nil
}
