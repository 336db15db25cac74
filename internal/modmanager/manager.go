// Package modmanager serializes every mutating mod operation (install,
// update, remove) through a single goroutine, so two commands never race
// on the same mod directory, and republishes both their outcomes and
// whatever the cache notices on its own as a single ordered Change stream.
// It is the Go translation of ModManager (manager.rs): an actor loop fed
// by a command channel in place of Rust's mpsc::Receiver<Command>, with
// oneshot replies modeled as small buffered reply channels instead of
// tokio::sync::oneshot.
package modmanager

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mlcore/internal/changebus"
	"mlcore/internal/domain"
)

// DefaultReceivingInterval is how often in-flight download byte counts are
// coalesced into a single progress update.
const DefaultReceivingInterval = 20 * time.Millisecond

// LocalMods is the cache (or store) a Manager drives. internal/modcache.Cache
// satisfies this directly.
type LocalMods interface {
	Get(id string) (domain.Mod, error)
	List() ([]domain.Mod, error)
	Remove(id string) error
	InstallLocal(source, destID string) (domain.Mod, error)
	InstallRemote(downloaded *domain.DownloadedMod) (domain.Mod, error)
	UpdateLocal(source, destID string) (domain.Mod, error)
	UpdateRemote(downloaded *domain.DownloadedMod) (domain.Mod, error)
}

// RemoteDownloader fetches a remote mod's payload (and optional logo),
// reporting progress on mainProgress/logoProgress as it goes. Implementations
// must stop sending on both channels before returning.
type RemoteDownloader interface {
	DownloadMod(ctx context.Context, code string, mainProgress, logoProgress chan<- domain.DownloadProgress) (domain.DownloadedMod, error)
}

// ModSourceKind tags the variant of a ModSource.
type ModSourceKind int

const (
	SourceLocal ModSourceKind = iota
	SourceRemote
)

// ModSource names what to install or update: either a file already on
// disk, or a code identifying a remote catalog entry to fetch.
type ModSource struct {
	Kind ModSourceKind

	SourcePath string // valid for SourceLocal
	DestID     string // valid for SourceLocal

	Code string // valid for SourceRemote
}

// LocalSource builds a ModSource for a file already present on disk.
func LocalSource(sourcePath, destID string) ModSource {
	return ModSource{Kind: SourceLocal, SourcePath: sourcePath, DestID: destID}
}

// RemoteSource builds a ModSource naming a remote catalog entry by code.
func RemoteSource(code string) ModSource {
	return ModSource{Kind: SourceRemote, Code: code}
}

type opKind int

const (
	opInstall opKind = iota
	opUpdate
)

// Manager serializes mod operations through a single background loop.
// Construct with New and start the loop with Run under an errgroup; use
// the Get/List/Remove/Install/Update methods from any goroutine once Run
// is running.
type Manager struct {
	local             LocalMods
	remote            RemoteDownloader
	detected          <-chan domain.DetectedChange
	receivingInterval time.Duration

	commands chan command
	stopped  chan struct{}

	changes *changebus.Bus[domain.Change]
	log     *slog.Logger
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithLogger overrides the default slog.Default() logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithReceivingInterval overrides DefaultReceivingInterval.
func WithReceivingInterval(d time.Duration) Option {
	return func(m *Manager) { m.receivingInterval = d }
}

// New creates a Manager. detected is typically a modcache.Cache's
// Subscribe channel; remote may be nil if no remote service is configured,
// in which case remote installs/updates fail with an error.
func New(local LocalMods, remote RemoteDownloader, detected <-chan domain.DetectedChange, opts ...Option) *Manager {
	m := &Manager{
		local:             local,
		remote:            remote,
		detected:          detected,
		receivingInterval: DefaultReceivingInterval,
		commands:          make(chan command),
		stopped:           make(chan struct{}),
		changes:           changebus.New[domain.Change](),
		log:               slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers for the manager's published Change stream. Cancel
// the returned func when done.
func (m *Manager) Subscribe() (<-chan domain.Change, func()) {
	return m.changes.Subscribe()
}

// Run drives the command loop until ctx is cancelled. It's meant to run
// under an errgroup alongside the cache's own Run.
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.stopped)
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-m.commands:
			cmd.execute(ctx, m)
		case detected, ok := <-m.detected:
			if !ok {
				m.detected = nil
				continue
			}
			m.handleDetected(detected)
		}
	}
}

func (m *Manager) handleDetected(d domain.DetectedChange) {
	switch d.Kind {
	case domain.DetectedAdded:
		m.publish(domain.AddChange(domain.FinishedModProgress(d.Mod)))
	case domain.DetectedRemoved:
		m.publish(domain.RemoveChange(d.ID))
	case domain.DetectedUpdated:
		m.publish(domain.UpdateChange(domain.FinishedModProgress(d.Mod)))
	case domain.DetectedNewVersion:
		m.publish(domain.NewVersionChange(d.ID))
	}
}

func (m *Manager) publish(c domain.Change) {
	m.changes.Publish(c)
}

// submit enqueues cmd and blocks until it runs, or ctx is cancelled, or the
// manager's Run loop has already returned.
func (m *Manager) submit(ctx context.Context, cmd command) error {
	select {
	case m.commands <- cmd:
		return nil
	case <-m.stopped:
		return domain.ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

type command interface {
	execute(ctx context.Context, m *Manager)
}

type getCmd struct {
	id    string
	reply chan<- getReply
}
type getReply struct {
	mod domain.Mod
	err error
}

func (c getCmd) execute(_ context.Context, m *Manager) {
	mod, err := m.local.Get(c.id)
	c.reply <- getReply{mod, err}
}

// Get fetches a single mod by id.
func (m *Manager) Get(ctx context.Context, id string) (domain.Mod, error) {
	reply := make(chan getReply, 1)
	if err := m.submit(ctx, getCmd{id: id, reply: reply}); err != nil {
		return domain.Mod{}, err
	}
	select {
	case r := <-reply:
		return r.mod, r.err
	case <-ctx.Done():
		return domain.Mod{}, ctx.Err()
	}
}

type listCmd struct {
	reply chan<- listReply
}
type listReply struct {
	mods []domain.Mod
	err  error
}

func (c listCmd) execute(_ context.Context, m *Manager) {
	mods, err := m.local.List()
	c.reply <- listReply{mods, err}
}

// List returns every installed mod.
func (m *Manager) List(ctx context.Context) ([]domain.Mod, error) {
	reply := make(chan listReply, 1)
	if err := m.submit(ctx, listCmd{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case r := <-reply:
		return r.mods, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type removeCmd struct {
	id    string
	reply chan<- error
}

func (c removeCmd) execute(_ context.Context, m *Manager) {
	err := m.local.Remove(c.id)
	if err == nil {
		m.publish(domain.RemoveChange(c.id))
	}
	c.reply <- err
}

// Remove deletes a mod.
func (m *Manager) Remove(ctx context.Context, id string) error {
	reply := make(chan error, 1)
	if err := m.submit(ctx, removeCmd{id: id, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type installCmd struct {
	source ModSource
	reply  chan<- modResult
}
type modResult struct {
	mod domain.Mod
	err error
}

func (c installCmd) execute(ctx context.Context, m *Manager) {
	mod, err := m.install(ctx, c.source)
	c.reply <- modResult{mod, err}
}

// Install installs a mod from source, reporting Started/Downloading/Finished
// progress on the Change stream as it goes.
func (m *Manager) Install(ctx context.Context, source ModSource) (domain.Mod, error) {
	reply := make(chan modResult, 1)
	if err := m.submit(ctx, installCmd{source: source, reply: reply}); err != nil {
		return domain.Mod{}, err
	}
	select {
	case r := <-reply:
		return r.mod, r.err
	case <-ctx.Done():
		return domain.Mod{}, ctx.Err()
	}
}

type updateCmd struct {
	source ModSource
	reply  chan<- modResult
}

func (c updateCmd) execute(ctx context.Context, m *Manager) {
	mod, err := m.update(ctx, c.source)
	c.reply <- modResult{mod, err}
}

// Update replaces a mod's payload from source, reporting the same kind of
// progress as Install.
func (m *Manager) Update(ctx context.Context, source ModSource) (domain.Mod, error) {
	reply := make(chan modResult, 1)
	if err := m.submit(ctx, updateCmd{source: source, reply: reply}); err != nil {
		return domain.Mod{}, err
	}
	select {
	case r := <-reply:
		return r.mod, r.err
	case <-ctx.Done():
		return domain.Mod{}, ctx.Err()
	}
}

func (m *Manager) install(ctx context.Context, source ModSource) (domain.Mod, error) {
	switch source.Kind {
	case SourceLocal:
		return m.installLocal(source.SourcePath, source.DestID)
	case SourceRemote:
		return m.installRemote(ctx, source.Code)
	default:
		return domain.Mod{}, fmt.Errorf("unknown mod source kind %v", source.Kind)
	}
}

func (m *Manager) update(ctx context.Context, source ModSource) (domain.Mod, error) {
	switch source.Kind {
	case SourceLocal:
		return m.updateLocal(source.SourcePath, source.DestID)
	case SourceRemote:
		return m.updateRemote(ctx, source.Code)
	default:
		return domain.Mod{}, fmt.Errorf("unknown mod source kind %v", source.Kind)
	}
}

func (m *Manager) installLocal(sourcePath, destID string) (domain.Mod, error) {
	m.publish(domain.AddChange(domain.StartedModProgress(destID)))
	mod, err := m.local.InstallLocal(sourcePath, destID)
	if err != nil {
		return domain.Mod{}, err
	}
	m.publish(domain.AddChange(domain.FinishedModProgress(mod)))
	return mod, nil
}

func (m *Manager) updateLocal(sourcePath, destID string) (domain.Mod, error) {
	m.publish(domain.UpdateChange(domain.StartedModProgress(destID)))
	mod, err := m.local.UpdateLocal(sourcePath, destID)
	if err != nil {
		return domain.Mod{}, err
	}
	m.publish(domain.UpdateChange(domain.FinishedModProgress(mod)))
	return mod, nil
}

func (m *Manager) installRemote(ctx context.Context, code string) (domain.Mod, error) {
	id := domain.RemoteIDPrefix + code
	m.publish(domain.AddChange(domain.StartedModProgress(id)))

	downloaded, err := m.downloadMod(ctx, code, opInstall)
	if err != nil {
		return domain.Mod{}, err
	}
	defer downloaded.Close()

	mod, err := m.local.InstallRemote(downloaded)
	if err != nil {
		return domain.Mod{}, err
	}
	m.publish(domain.AddChange(domain.FinishedModProgress(mod)))
	return mod, nil
}

func (m *Manager) updateRemote(ctx context.Context, code string) (domain.Mod, error) {
	id := domain.RemoteIDPrefix + code
	m.publish(domain.UpdateChange(domain.StartedModProgress(id)))

	downloaded, err := m.downloadMod(ctx, code, opUpdate)
	if err != nil {
		return domain.Mod{}, err
	}
	defer downloaded.Close()

	mod, err := m.local.UpdateRemote(downloaded)
	if err != nil {
		return domain.Mod{}, err
	}
	m.publish(domain.UpdateChange(domain.FinishedModProgress(mod)))
	return mod, nil
}
