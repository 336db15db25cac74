package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mlcore/internal/domain"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed mods",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
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

	var mods []domain.Mod
	err = a.withBackground(func(ctx context.Context) error {
		mods, err = a.mgr.List(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("listing mods: %w", err)
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(mods)
	}

	if len(mods) == 0 {
		fmt.Println("No mods installed.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tREMOTE")
	for _, m := range mods {
		name := ""
		if m.Manifest != nil {
			name = m.Manifest.Name
		}
		fmt.Fprintf(w, "%s\t%s\t%t\n", m.ID, name, m.IsRemote())
	}
	return w.Flush()
}
