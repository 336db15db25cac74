package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <mod-id>",
	Short: "Remove an installed mod",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
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

	err = a.withBackground(func(ctx context.Context) error {
		return a.mgr.Remove(ctx, args[0])
	})
	if err != nil {
		return fmt.Errorf("removing mod %s: %w", args[0], err)
	}

	fmt.Printf("Removed %s.\n", args[0])
	return nil
}
