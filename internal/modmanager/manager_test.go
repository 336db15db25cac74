package modmanager_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlcore/internal/domain"
	"mlcore/internal/modmanager"
)

type fakeLocal struct {
	mods map[string]domain.Mod
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{mods: make(map[string]domain.Mod)}
}

func (f *fakeLocal) Get(id string) (domain.Mod, error) {
	m, ok := f.mods[id]
	if !ok {
		return domain.Mod{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeLocal) List() ([]domain.Mod, error) {
	out := make([]domain.Mod, 0, len(f.mods))
	for _, m := range f.mods {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeLocal) Remove(id string) error {
	if _, ok := f.mods[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.mods, id)
	return nil
}

func (f *fakeLocal) InstallLocal(source, destID string) (domain.Mod, error) {
	m := domain.Mod{ID: destID}
	f.mods[destID] = m
	return m, nil
}

func (f *fakeLocal) InstallRemote(d *domain.DownloadedMod) (domain.Mod, error) {
	m := domain.Mod{ID: "fyi." + d.Mod.Slug}
	f.mods[m.ID] = m
	return m, nil
}

func (f *fakeLocal) UpdateLocal(source, destID string) (domain.Mod, error) {
	m := domain.Mod{ID: destID, Manifest: &domain.Manifest{Name: "updated"}}
	f.mods[destID] = m
	return m, nil
}

func (f *fakeLocal) UpdateRemote(d *domain.DownloadedMod) (domain.Mod, error) {
	m := domain.Mod{ID: "fyi." + d.Mod.Slug, Manifest: &domain.Manifest{Name: "updated"}}
	f.mods[m.ID] = m
	return m, nil
}

type fakeRemote struct {
	steps []domain.DownloadProgress // sent on main channel in order
	final domain.DownloadedMod
	err   error
}

func (f *fakeRemote) DownloadMod(ctx context.Context, code string, mainProgress, logoProgress chan<- domain.DownloadProgress) (domain.DownloadedMod, error) {
	defer close(mainProgress)
	defer close(logoProgress)
	for _, p := range f.steps {
		select {
		case mainProgress <- p:
		case <-ctx.Done():
			return domain.DownloadedMod{}, ctx.Err()
		}
	}
	return f.final, f.err
}

func runManager(t *testing.T, m *modmanager.Manager) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("manager did not stop")
		}
	}
}

func TestManager_InstallLocal(t *testing.T) {
	local := newFakeLocal()
	m := modmanager.New(local, nil, nil)
	stop := runManager(t, m)
	defer stop()

	sub, cancel := m.Subscribe()
	defer cancel()

	ctx := context.Background()
	mod, err := m.Install(ctx, modmanager.LocalSource("/tmp/a.lua", "mod-a"))
	require.NoError(t, err)
	assert.Equal(t, "mod-a", mod.ID)

	started := <-sub
	assert.Equal(t, domain.ChangeAdd, started.Kind)
	assert.Equal(t, domain.ModStarted, started.Progress.Kind)

	finished := <-sub
	assert.Equal(t, domain.ChangeAdd, finished.Kind)
	assert.Equal(t, domain.ModFinished, finished.Progress.Kind)
	assert.Equal(t, "mod-a", finished.Progress.Mod.ID)
}

func TestManager_Remove(t *testing.T) {
	local := newFakeLocal()
	local.mods["mod-a"] = domain.Mod{ID: "mod-a"}
	m := modmanager.New(local, nil, nil)
	stop := runManager(t, m)
	defer stop()

	sub, cancel := m.Subscribe()
	defer cancel()

	require.NoError(t, m.Remove(context.Background(), "mod-a"))

	change := <-sub
	assert.Equal(t, domain.ChangeRemove, change.Kind)
	assert.Equal(t, "mod-a", change.ID)
}

func TestManager_InstallRemote_ReportsThrottledProgress(t *testing.T) {
	local := newFakeLocal()
	remote := &fakeRemote{
		steps: []domain.DownloadProgress{
			domain.StartedProgress(),
			domain.ReceivingProgress(100, 10),
			domain.ReceivingProgress(100, 50),
			domain.ReceivingProgress(100, 100),
		},
		final: domain.DownloadedMod{Mod: domain.RemoteMod{Slug: "some-mod"}, MainFile: "", TempDir: t.TempDir()},
	}
	m := modmanager.New(local, remote, nil, modmanager.WithReceivingInterval(5*time.Millisecond))
	stop := runManager(t, m)
	defer stop()

	sub, cancel := m.Subscribe()
	defer cancel()

	mod, err := m.Install(context.Background(), modmanager.RemoteSource("some-mod"))
	require.NoError(t, err)
	assert.Equal(t, "fyi.some-mod", mod.ID)

	var sawDownloading, sawFinished bool
	deadline := time.After(2 * time.Second)
	for !sawFinished {
		select {
		case c := <-sub:
			if c.Progress.Kind == domain.ModDownloading {
				sawDownloading = true
			}
			if c.Progress.Kind == domain.ModFinished {
				sawFinished = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for finished change")
		}
	}
	assert.True(t, sawDownloading, "expected at least one Downloading progress update")
}

func TestManager_InstallRemote_WithoutRemoteConfigured(t *testing.T) {
	local := newFakeLocal()
	m := modmanager.New(local, nil, nil)
	stop := runManager(t, m)
	defer stop()

	_, err := m.Install(context.Background(), modmanager.RemoteSource("some-mod"))
	assert.Error(t, err)
}

func TestManager_HandlesDetectedChanges(t *testing.T) {
	local := newFakeLocal()
	detected := make(chan domain.DetectedChange, 1)
	m := modmanager.New(local, nil, detected)
	stop := runManager(t, m)
	defer stop()

	sub, cancel := m.Subscribe()
	defer cancel()

	detected <- domain.AddedDetected(domain.Mod{ID: "scanned-mod"})

	change := <-sub
	assert.Equal(t, domain.ChangeAdd, change.Kind)
	assert.Equal(t, domain.ModFinished, change.Progress.Kind)
	assert.Equal(t, "scanned-mod", change.Progress.Mod.ID)
}
