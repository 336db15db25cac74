package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a long-lived daemon: local scanning, remote polling, and the install-request gateway",
	Long: `serve starts the local directory scanner, the (optional) remote-catalog
poller, and the (optional) WebSocket gateway connection, and blocks until
interrupted, at which point every component is given the configured
shutdown deadline to wind down.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("mlcore serving", "install_dir", cfg.InstallDir, "service_root", cfg.ServiceRoot, "gateway_enabled", a.ws != nil)
	if err := a.serve(ctx); err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}
