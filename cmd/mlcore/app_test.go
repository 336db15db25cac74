package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlcore/internal/config"
	"mlcore/internal/modmanager"
)

func TestApp_InstallGetListRemove(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	cfg.InstallDir = t.TempDir()

	dataDir := t.TempDir()
	log := newLogger()

	// Each step gets a fresh app, the way each CLI invocation does: a
	// Manager's Run loop can only be run once.
	withApp := func(fn func(a *app, ctx context.Context) error) error {
		a, err := newApp(cfg, dataDir, log)
		require.NoError(t, err)
		defer a.Close()
		return a.withBackground(func(ctx context.Context) error { return fn(a, ctx) })
	}

	modPath := filepath.Join(t.TempDir(), "mymod.lua")
	require.NoError(t, os.WriteFile(modPath, []byte("print('hi')"), 0644))

	var installedID string
	err = withApp(func(a *app, ctx context.Context) error {
		mod, err := a.mgr.Install(ctx, modmanager.LocalSource(modPath, "my-mod"))
		if err != nil {
			return err
		}
		installedID = mod.ID
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "my-mod", installedID)

	err = withApp(func(a *app, ctx context.Context) error {
		mods, err := a.mgr.List(ctx)
		if err != nil {
			return err
		}
		assert.Len(t, mods, 1)
		return nil
	})
	require.NoError(t, err)

	err = withApp(func(a *app, ctx context.Context) error {
		return a.mgr.Remove(ctx, "my-mod")
	})
	require.NoError(t, err)

	err = withApp(func(a *app, ctx context.Context) error {
		_, err := a.mgr.Get(ctx, "my-mod")
		return err
	})
	assert.Error(t, err, "mod should be gone after removal")
}

func TestResolveSource_RejectsBothLocalAndRemote(t *testing.T) {
	_, err := resolveSource("/tmp/a.lua", "a", "some-code")
	assert.Error(t, err)
}

func TestResolveSource_RejectsNeither(t *testing.T) {
	_, err := resolveSource("", "", "")
	assert.Error(t, err)
}

func TestResolveSource_LocalRequiresID(t *testing.T) {
	_, err := resolveSource("/tmp/a.lua", "", "")
	assert.Error(t, err)
}
