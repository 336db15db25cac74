package diskstore_test

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlcore/internal/diskstore"
	"mlcore/internal/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestInstallLocal_LuaFileRenamedToMain(t *testing.T) {
	installDir := t.TempDir()
	srcDir := t.TempDir()
	source := filepath.Join(srcDir, "my_script.lua")
	writeFile(t, source, "print('hi')")

	store := diskstore.New(installDir)
	mod, err := store.InstallLocal(source, "my-mod")
	require.NoError(t, err)
	assert.Equal(t, "my-mod", mod.ID)
	assert.Nil(t, mod.Manifest)

	data, err := os.ReadFile(filepath.Join(installDir, "Mods/Packs/my-mod/main.lua"))
	require.NoError(t, err)
	assert.Equal(t, "print('hi')", string(data))
}

func TestInstallLocal_AlreadyExists(t *testing.T) {
	installDir := t.TempDir()
	srcDir := t.TempDir()
	source := filepath.Join(srcDir, "a.lua")
	writeFile(t, source, "x")

	store := diskstore.New(installDir)
	_, err := store.InstallLocal(source, "dup")
	require.NoError(t, err)

	_, err = store.InstallLocal(source, "dup")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestRemove_RoundTrip(t *testing.T) {
	installDir := t.TempDir()
	srcDir := t.TempDir()
	source := filepath.Join(srcDir, "a.lua")
	writeFile(t, source, "x")

	store := diskstore.New(installDir)
	_, err := store.InstallLocal(source, "mod-a")
	require.NoError(t, err)

	got, err := store.Get("mod-a")
	require.NoError(t, err)
	assert.Equal(t, "mod-a", got.ID)

	require.NoError(t, store.Remove("mod-a"))

	_, err = store.Get("mod-a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRemove_NotFound(t *testing.T) {
	store := diskstore.New(t.TempDir())
	err := store.Remove("nonexistent")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInstallLocal_ZipWithSharedPrefixIsStripped(t *testing.T) {
	installDir := t.TempDir()
	archive := filepath.Join(t.TempDir(), "mod.zip")
	writeZip(t, archive, map[string]string{
		"MyMod/main.lua":     "print(1)",
		"MyMod/data/foo.txt": "foo",
	})

	store := diskstore.New(installDir)
	_, err := store.InstallLocal(archive, "zip-mod")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(installDir, "Mods/Packs/zip-mod/main.lua"))
	assert.NoError(t, err, "shared top-level component should have been stripped")
	_, err = os.Stat(filepath.Join(installDir, "Mods/Packs/zip-mod/MyMod"))
	assert.True(t, os.IsNotExist(err), "prefixed directory should not survive extraction")
}

func TestInstallLocal_ZipDataPrefixIsNotStripped(t *testing.T) {
	installDir := t.TempDir()
	archive := filepath.Join(t.TempDir(), "mod.zip")
	writeZip(t, archive, map[string]string{
		"data/level/foo.lvl": "level data",
		"data/level/bar.lvl": "more level data",
	})

	store := diskstore.New(installDir)
	_, err := store.InstallLocal(archive, "data-mod")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(installDir, "Mods/Packs/data-mod/data/level/foo.lvl"))
	assert.NoError(t, err, "the 'data' top-level directory must be preserved, not stripped")
}

func TestInstallLocal_SingleLuaAmongOthersRenamed(t *testing.T) {
	installDir := t.TempDir()
	archive := filepath.Join(t.TempDir(), "mod.zip")
	writeZip(t, archive, map[string]string{
		"scripts/entry.lua": "print('entry')",
		"readme.txt":        "read me",
	})

	store := diskstore.New(installDir)
	_, err := store.InstallLocal(archive, "lua-mod")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(installDir, "Mods/Packs/lua-mod/scripts/main.lua"))
	assert.NoError(t, err, "sole .lua entry should be renamed to main.lua in place")
	_, err = os.Stat(filepath.Join(installDir, "Mods/Packs/lua-mod/readme.txt"))
	assert.NoError(t, err)
}

func TestUpdateLocal_PreservesSaveFile(t *testing.T) {
	installDir := t.TempDir()
	srcDir := t.TempDir()
	source := filepath.Join(srcDir, "a.lua")
	writeFile(t, source, "version 1")

	store := diskstore.New(installDir)
	_, err := store.InstallLocal(source, "save-mod")
	require.NoError(t, err)

	saveData := []byte("player progress")
	require.NoError(t, os.WriteFile(filepath.Join(installDir, "Mods/Packs/save-mod/save.dat"), saveData, 0o644))

	writeFile(t, source, "version 2")
	_, err = store.UpdateLocal(source, "save-mod")
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(installDir, "Mods/Packs/save-mod/main.lua"))
	require.NoError(t, err)
	assert.Equal(t, "version 2", string(got))

	save, err := os.ReadFile(filepath.Join(installDir, "Mods/Packs/save-mod/save.dat"))
	require.NoError(t, err)
	assert.Equal(t, saveData, save)
}

func TestUpdateLocal_RollsBackOnFailure(t *testing.T) {
	installDir := t.TempDir()
	srcDir := t.TempDir()
	source := filepath.Join(srcDir, "a.lua")
	writeFile(t, source, "version 1")

	store := diskstore.New(installDir)
	_, err := store.InstallLocal(source, "rollback-mod")
	require.NoError(t, err)

	_, err = store.UpdateLocal(filepath.Join(srcDir, "missing.lua"), "rollback-mod")
	assert.Error(t, err)

	got, err := os.ReadFile(filepath.Join(installDir, "Mods/Packs/rollback-mod/main.lua"))
	require.NoError(t, err, "original payload should still be present after a failed update")
	assert.Equal(t, "version 1", string(got))
}

func TestList_SkipsNonDirectoryEntries(t *testing.T) {
	installDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(installDir, "Mods/Packs"), 0o755))
	writeFile(t, filepath.Join(installDir, "Mods/Packs/.db"), "ignored")
	writeFile(t, filepath.Join(installDir, "Mods/Packs/stray-file"), "not a mod dir")

	srcDir := t.TempDir()
	source := filepath.Join(srcDir, "a.lua")
	writeFile(t, source, "x")
	store := diskstore.New(installDir)
	_, err := store.InstallLocal(source, "real-mod")
	require.NoError(t, err)

	mods, err := store.List()
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, "real-mod", mods[0].ID)
}

func TestUpdateLatestJSON_IndependentOfManifest(t *testing.T) {
	installDir := t.TempDir()
	store := diskstore.New(installDir)

	remote := domain.RemoteMod{
		Slug: "a-remote-mod",
		ModFiles: []domain.RemoteModFile{
			{ID: "file-2", CreatedAt: "2026-01-02"},
			{ID: "file-1", CreatedAt: "2026-01-01"},
		},
	}

	id, wrote, err := store.UpdateLatestJSON(remote)
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, "fyi.a-remote-mod", id)

	// manifest.json was never created by this call.
	_, err = os.Stat(filepath.Join(installDir, "Mods/Packs/.ml/fyi.a-remote-mod/manifest.json"))
	assert.True(t, os.IsNotExist(err))

	// Calling again with the same latest file id is a no-op.
	_, wrote, err = store.UpdateLatestJSON(remote)
	require.NoError(t, err)
	assert.False(t, wrote)
}
