package modcache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlcore/internal/domain"
	"mlcore/internal/modcache"
)

type fakeLocal struct {
	mu   sync.Mutex
	mods map[string]domain.Mod
}

func newFakeLocal(mods ...domain.Mod) *fakeLocal {
	f := &fakeLocal{mods: make(map[string]domain.Mod)}
	for _, m := range mods {
		f.mods[m.ID] = m
	}
	return f
}

func (f *fakeLocal) Get(id string) (domain.Mod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.mods[id]
	if !ok {
		return domain.Mod{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeLocal) List() ([]domain.Mod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Mod, 0, len(f.mods))
	for _, m := range f.mods {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeLocal) Remove(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.mods[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.mods, id)
	return nil
}

func (f *fakeLocal) set(m domain.Mod) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mods[m.ID] = m
}

func (f *fakeLocal) InstallLocal(source, destID string) (domain.Mod, error) {
	m := domain.Mod{ID: destID}
	f.set(m)
	return m, nil
}

func (f *fakeLocal) InstallRemote(d *domain.DownloadedMod) (domain.Mod, error) {
	m := domain.Mod{ID: "fyi." + d.Mod.Slug}
	f.set(m)
	return m, nil
}

func (f *fakeLocal) UpdateLocal(source, destID string) (domain.Mod, error) {
	m := domain.Mod{ID: destID, Manifest: &domain.Manifest{Name: "updated"}}
	f.set(m)
	return m, nil
}

func (f *fakeLocal) UpdateRemote(d *domain.DownloadedMod) (domain.Mod, error) {
	m := domain.Mod{ID: "fyi." + d.Mod.Slug, Manifest: &domain.Manifest{Name: "updated"}}
	f.set(m)
	return m, nil
}

func (f *fakeLocal) UpdateLatestJSON(remote domain.RemoteMod) (string, bool, error) {
	return "fyi." + remote.Slug, true, nil
}

func recv(t *testing.T, ch <-chan domain.DetectedChange) domain.DetectedChange {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for detected change")
		return domain.DetectedChange{}
	}
}

func TestCache_GetAfterInstallLocal(t *testing.T) {
	local := newFakeLocal()
	c := modcache.New(local, nil, time.Hour, time.Hour, time.Millisecond)

	sub, cancel := c.Subscribe()
	defer cancel()

	_, err := c.InstallLocal("/tmp/a.lua", "mod-a")
	require.NoError(t, err)

	got, err := c.Get("mod-a")
	require.NoError(t, err)
	assert.Equal(t, "mod-a", got.ID)

	change := recv(t, sub)
	assert.Equal(t, domain.DetectedAdded, change.Kind)
	assert.Equal(t, "mod-a", change.Mod.ID)
}

func TestCache_Remove(t *testing.T) {
	local := newFakeLocal(domain.Mod{ID: "mod-a"})
	c := modcache.New(local, nil, time.Hour, time.Hour, time.Millisecond)

	sub, cancel := c.Subscribe()
	defer cancel()

	// Populate happens in Run; for direct Get/List tests that don't run
	// the loop, seed the cache through an install instead.
	_, err := c.InstallLocal("/tmp/a.lua", "mod-a")
	require.NoError(t, err)
	<-sub

	require.NoError(t, c.Remove("mod-a"))
	_, err = c.Get("mod-a")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	change := recv(t, sub)
	assert.Equal(t, domain.DetectedRemoved, change.Kind)
	assert.Equal(t, "mod-a", change.ID)
}

func TestCache_Run_PopulatesFromLocalAndDetectsScanChanges(t *testing.T) {
	local := newFakeLocal(domain.Mod{ID: "mod-a"})
	c := modcache.New(local, nil, 10*time.Millisecond, time.Hour, time.Millisecond)

	sub, cancel := c.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	<-c.Ready()
	got, err := c.Get("mod-a")
	require.NoError(t, err)
	assert.Equal(t, "mod-a", got.ID)

	// Add a mod out from under the cache; the next scan tick should pick it up.
	local.set(domain.Mod{ID: "mod-b"})
	change := recv(t, sub)
	assert.Equal(t, domain.DetectedAdded, change.Kind)
	assert.Equal(t, "mod-b", change.Mod.ID)

	stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type fakeRemote struct {
	mod domain.RemoteMod
}

func (f *fakeRemote) GetManifest(ctx context.Context, slug string) (domain.RemoteMod, error) {
	return f.mod, nil
}

func TestCache_Run_PollsRemoteForNewVersions(t *testing.T) {
	manifest := &domain.Manifest{Slug: "some-mod"}
	local := newFakeLocal(domain.Mod{ID: "fyi.some-mod", Manifest: manifest})
	remote := &fakeRemote{mod: domain.RemoteMod{Slug: "some-mod"}}

	c := modcache.New(local, remote, time.Hour, 10*time.Millisecond, time.Millisecond)
	sub, cancel := c.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	<-c.Ready()
	change := recv(t, sub)
	assert.Equal(t, domain.DetectedNewVersion, change.Kind)
	assert.Equal(t, "fyi.some-mod", change.ID)

	stop()
	<-done
}
