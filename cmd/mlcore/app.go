package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"mlcore/internal/config"
	"mlcore/internal/diskstore"
	"mlcore/internal/eventlog"
	"mlcore/internal/modcache"
	"mlcore/internal/modmanager"
	"mlcore/internal/remote/httpapi"
	"mlcore/internal/remote/wsgateway"
	"mlcore/internal/shutdown"
)

// app holds every component wired together for a single invocation,
// whether that invocation is a one-shot command or the "serve" daemon.
type app struct {
	cfg   *config.Config
	log   *slog.Logger
	store *diskstore.Store
	cache *modcache.Cache
	mgr   *modmanager.Manager
	ws    *wsgateway.Client // nil if the remote service isn't configured
	db    *eventlog.DB
	rec   *eventlog.Recorder
}

func newApp(cfg *config.Config, dataDir string, log *slog.Logger) (*app, error) {
	if err := os.MkdirAll(cfg.InstallDir, 0755); err != nil {
		return nil, fmt.Errorf("creating install dir: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	store := diskstore.New(cfg.InstallDir)

	var remoteClient *httpapi.Client
	var err error
	if cfg.APIToken != "" && cfg.ServiceRoot != "" {
		remoteClient, err = httpapi.New(cfg.ServiceRoot, cfg.APIToken, nil)
		if err != nil {
			return nil, fmt.Errorf("configuring remote client: %w", err)
		}
	}

	var remoteManifests modcache.RemoteManifests
	var remoteDownloader modmanager.RemoteDownloader
	if remoteClient != nil {
		remoteManifests = remoteClient
		remoteDownloader = remoteClient
	}

	cache := modcache.New(store, remoteManifests, cfg.LocalScanInterval, cfg.APIPollInterval, cfg.APIStepMaxDelay, modcache.WithLogger(log))
	detected, _ := cache.Subscribe()
	mgr := modmanager.New(cache, remoteDownloader, detected, modmanager.WithReceivingInterval(cfg.ReceivingInterval), modmanager.WithLogger(log))

	var ws *wsgateway.Client
	if remoteClient != nil {
		ws, err = wsgateway.New(cfg.ServiceRoot, cfg.APIToken, mgr,
			wsgateway.WithPingInterval(cfg.PingMinInterval, cfg.PingMaxInterval),
			wsgateway.WithPongTimeout(cfg.PongTimeout),
			wsgateway.WithLogger(log),
		)
		if err != nil {
			return nil, fmt.Errorf("configuring gateway client: %w", err)
		}
	}

	db, err := eventlog.Open(filepath.Join(dataDir, "activity.db"))
	if err != nil {
		return nil, fmt.Errorf("opening activity log: %w", err)
	}
	rec := eventlog.NewRecorder(db, log)

	return &app{cfg: cfg, log: log, store: store, cache: cache, mgr: mgr, ws: ws, db: db, rec: rec}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// runBackground starts the cache/manager/gateway/eventlog loops under a
// Fabric and waits for the cache's initial population before returning,
// so callers (one-shot commands and "serve" alike) can immediately issue
// Get/List/Remove/Install/Update against a populated view.
func (a *app) runBackground(ctx context.Context) (*shutdown.Fabric, func()) {
	f := shutdown.New(ctx, a.log)
	f.Go("cache", a.cache.Run)
	f.Go("manager", a.mgr.Run)
	if a.ws != nil {
		f.Go("gateway", a.ws.Run)
	}

	changes, cancelSub := a.mgr.Subscribe()
	f.Go("eventlog", func(ctx context.Context) error {
		return a.rec.Run(ctx, changes)
	})

	select {
	case <-a.cache.Ready():
	case <-ctx.Done():
	}
	return f, cancelSub
}

// withBackground runs fn once the cache/manager/gateway/eventlog loops are
// up, then tears them down with a bounded grace period. It's the shape
// every one-shot subcommand uses.
func (a *app) withBackground(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f, cancelSub := a.runBackground(ctx)
	defer cancelSub()
	err := fn(ctx)

	shutdownErr := f.Shutdown(a.cfg.ShutdownTimeout)
	if err != nil {
		return err
	}
	return shutdownErr
}

// serve runs the daemon form: background loops run until ctx is
// cancelled (an OS signal), then are given up to the configured deadline
// to wind down.
func (a *app) serve(ctx context.Context) error {
	f, cancelSub := a.runBackground(ctx)
	defer cancelSub()
	<-ctx.Done()
	return f.Shutdown(a.cfg.ShutdownTimeout)
}
