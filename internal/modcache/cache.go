// Package modcache keeps an in-memory, always-current view of installed
// mods, refreshed by a periodic local directory scan and (when a remote
// client is configured) a slow background poll for new remote versions.
// It is the Go translation of ModCache in the original actor graph
// (cache.rs): a single goroutine owns the scan/poll loop, a mutex-guarded
// map is the cache itself, and a changebus.Bus republishes whatever the
// loop discovers.
package modcache

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"mlcore/internal/changebus"
	"mlcore/internal/domain"
)

// LocalMods is the filesystem-backed store a Cache wraps. internal/diskstore
// satisfies this directly.
type LocalMods interface {
	Get(id string) (domain.Mod, error)
	List() ([]domain.Mod, error)
	Remove(id string) error
	InstallLocal(source, destID string) (domain.Mod, error)
	InstallRemote(downloaded *domain.DownloadedMod) (domain.Mod, error)
	UpdateLocal(source, destID string) (domain.Mod, error)
	UpdateRemote(downloaded *domain.DownloadedMod) (domain.Mod, error)
	UpdateLatestJSON(remote domain.RemoteMod) (string, bool, error)
}

// RemoteManifests fetches the current catalog entry for a remote-origin
// mod by slug, used only by the background poll loop to notice new file
// versions. A nil RemoteManifests disables polling entirely.
type RemoteManifests interface {
	GetManifest(ctx context.Context, slug string) (domain.RemoteMod, error)
}

// Cache is a LocalMods implementation backed by an in-memory snapshot, kept
// fresh by Run.
type Cache struct {
	local  LocalMods
	remote RemoteManifests

	localScanInterval time.Duration
	apiPollInterval   time.Duration
	apiStepMaxDelay   time.Duration

	mu    sync.Mutex
	byID  map[string]domain.Mod

	changes *changebus.Bus[domain.DetectedChange]
	log     *slog.Logger

	ready chan struct{}
	once  sync.Once
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithLogger overrides the default slog.Default() logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// New creates a Cache. localScanInterval controls how often the install
// directory is rescanned for out-of-band changes; apiPollInterval and
// apiStepMaxDelay control the background remote poll (ignored if remote is
// nil).
func New(local LocalMods, remote RemoteManifests, localScanInterval, apiPollInterval, apiStepMaxDelay time.Duration, opts ...Option) *Cache {
	c := &Cache{
		local:             local,
		remote:            remote,
		localScanInterval: localScanInterval,
		apiPollInterval:   apiPollInterval,
		apiStepMaxDelay:   apiStepMaxDelay,
		byID:              make(map[string]domain.Mod),
		changes:           changebus.New[domain.DetectedChange](),
		log:               slog.Default(),
		ready:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers for DetectedChange notifications (local-scan diffs
// and new-remote-version notices). Cancel the returned func when done.
func (c *Cache) Subscribe() (<-chan domain.DetectedChange, func()) {
	return c.changes.Subscribe()
}

// Ready returns a channel that's closed once the initial population scan
// attempt has finished (successfully or not, and even if no mods were
// found), so callers can wait for a populated cache before serving
// requests.
func (c *Cache) Ready() <-chan struct{} {
	return c.ready
}

func (c *Cache) markReady() {
	c.once.Do(func() { close(c.ready) })
}

// Run populates the cache and then drives the local-scan/remote-poll loop
// until ctx is cancelled. It's meant to be run under an errgroup alongside
// the rest of the service's background work.
func (c *Cache) Run(ctx context.Context) error {
	c.populate()
	c.markReady()

	localScan := time.NewTicker(c.localScanInterval)
	defer localScan.Stop()

	var apiPoll *time.Ticker
	if c.remote != nil {
		apiPoll = time.NewTicker(c.apiPollInterval)
		defer apiPoll.Stop()
	}

	var pending []string
	var fetchTimer *time.Timer
	var fetchC <-chan time.Time

	for {
		var apiPollC <-chan time.Time
		if apiPoll != nil {
			apiPollC = apiPoll.C
		}

		select {
		case <-ctx.Done():
			if fetchTimer != nil {
				fetchTimer.Stop()
			}
			return nil

		case <-localScan.C:
			c.scanLocal()

		case <-apiPollC:
			if len(pending) == 0 {
				pending = c.listSlugsToFetch()
				if len(pending) > 0 && fetchTimer == nil {
					fetchTimer = time.NewTimer(c.stepDelay())
					fetchC = fetchTimer.C
				}
			}

		case <-fetchC:
			fetchTimer = nil
			fetchC = nil
			if len(pending) > 0 {
				id := pending[len(pending)-1]
				pending = pending[:len(pending)-1]
				c.fetchMod(ctx, id)
			}
			if len(pending) > 0 {
				fetchTimer = time.NewTimer(c.stepDelay())
				fetchC = fetchTimer.C
			}
		}
	}
}

func (c *Cache) stepDelay() time.Duration {
	if c.apiStepMaxDelay <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(c.apiStepMaxDelay)))
}

func (c *Cache) populate() {
	mods, err := c.local.List()
	if err != nil {
		c.log.Warn("initial cache population failed", "error", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.byID) != 0 {
		c.log.Warn("attempted to populate non-empty cache")
		return
	}
	for _, m := range mods {
		c.byID[m.ID] = m
	}
}

// scanLocal reconciles the cache against what's actually on disk, which
// catches changes the cache didn't make itself (a mod dropped in or
// deleted outside this process).
func (c *Cache) scanLocal() {
	mods, err := c.local.List()
	if err != nil {
		c.log.Warn("local scan failed", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]bool, len(mods))
	for _, m := range mods {
		seen[m.ID] = true
	}
	for id := range c.byID {
		if !seen[id] {
			delete(c.byID, id)
			c.changes.Publish(domain.RemovedDetected(id))
		}
	}

	for _, m := range mods {
		old, had := c.byID[m.ID]
		switch {
		case !had:
			c.byID[m.ID] = m
			c.changes.Publish(domain.AddedDetected(m))
		case !old.Equal(m):
			c.byID[m.ID] = m
			c.changes.Publish(domain.UpdatedDetected(m))
		}
	}
}

func (c *Cache) listSlugsToFetch() []string {
	if c.remote == nil {
		return nil
	}
	mods, err := c.list()
	if err != nil {
		c.log.Warn("listing mods to fetch failed", "error", err)
		return nil
	}
	slugs := make([]string, 0, len(mods))
	for _, m := range mods {
		if m.Manifest != nil && m.Manifest.Slug != "" {
			slugs = append(slugs, m.Manifest.Slug)
		}
	}
	return slugs
}

func (c *Cache) fetchMod(ctx context.Context, slug string) {
	remoteMod, err := c.remote.GetManifest(ctx, slug)
	if err != nil {
		c.log.Warn("fetching mod manifest failed", "slug", slug, "error", err)
		return
	}
	id, changed, err := c.local.UpdateLatestJSON(remoteMod)
	if err != nil {
		c.log.Warn("updating latest pointer failed", "slug", slug, "error", err)
		return
	}
	if changed {
		c.changes.Publish(domain.NewVersionDetected(id))
	}
}

func (c *Cache) list() ([]domain.Mod, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mods := make([]domain.Mod, 0, len(c.byID))
	for _, m := range c.byID {
		mods = append(mods, m)
	}
	return mods, nil
}

// Get returns a cached mod by id.
func (c *Cache) Get(id string) (domain.Mod, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.byID[id]
	if !ok {
		return domain.Mod{}, domain.ErrNotFound
	}
	return m, nil
}

// List returns every cached mod.
func (c *Cache) List() ([]domain.Mod, error) {
	return c.list()
}

// Remove deletes a mod from disk and the cache, publishing a removal.
func (c *Cache) Remove(id string) error {
	if err := c.local.Remove(id); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.byID, id)
	c.mu.Unlock()
	c.changes.Publish(domain.RemovedDetected(id))
	return nil
}

// InstallLocal installs a mod from a local path and records it in the cache.
func (c *Cache) InstallLocal(source, destID string) (domain.Mod, error) {
	m, err := c.local.InstallLocal(source, destID)
	if err != nil {
		return domain.Mod{}, err
	}
	c.recordInstalled(m)
	return m, nil
}

// InstallRemote installs an already-downloaded remote mod and records it in
// the cache.
func (c *Cache) InstallRemote(downloaded *domain.DownloadedMod) (domain.Mod, error) {
	m, err := c.local.InstallRemote(downloaded)
	if err != nil {
		return domain.Mod{}, err
	}
	c.recordInstalled(m)
	return m, nil
}

// UpdateLocal replaces a mod's payload from a local path and records the
// change in the cache.
func (c *Cache) UpdateLocal(source, destID string) (domain.Mod, error) {
	m, err := c.local.UpdateLocal(source, destID)
	if err != nil {
		return domain.Mod{}, err
	}
	c.recordUpdated(m)
	return m, nil
}

// UpdateRemote replaces a remote-origin mod's payload and records the
// change in the cache.
func (c *Cache) UpdateRemote(downloaded *domain.DownloadedMod) (domain.Mod, error) {
	m, err := c.local.UpdateRemote(downloaded)
	if err != nil {
		return domain.Mod{}, err
	}
	c.recordUpdated(m)
	return m, nil
}

// UpdateLatestJSON refreshes the latest-file pointer for remote and, if it
// changed, publishes a new-version notice.
func (c *Cache) UpdateLatestJSON(remote domain.RemoteMod) (string, bool, error) {
	id, changed, err := c.local.UpdateLatestJSON(remote)
	if err != nil {
		return "", false, err
	}
	if changed {
		c.changes.Publish(domain.NewVersionDetected(id))
	}
	return id, changed, nil
}

func (c *Cache) recordInstalled(m domain.Mod) {
	c.mu.Lock()
	_, had := c.byID[m.ID]
	c.byID[m.ID] = m
	c.mu.Unlock()
	if had {
		c.log.Warn("installed mod was already in cache", "id", m.ID)
	}
	c.changes.Publish(domain.AddedDetected(m))
}

func (c *Cache) recordUpdated(m domain.Mod) {
	c.mu.Lock()
	old, had := c.byID[m.ID]
	c.byID[m.ID] = m
	c.mu.Unlock()
	if !had {
		c.log.Warn("updated mod was not already in cache", "id", m.ID)
	} else if old.Equal(m) {
		c.log.Warn("updating mod changed nothing", "id", m.ID)
	}
	c.changes.Publish(domain.UpdatedDetected(m))
}
