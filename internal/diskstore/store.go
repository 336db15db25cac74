// Package diskstore implements transactional install/update/remove of mod
// directories on the local filesystem, grounded on the layout and
// operations described in the mod cache's original Rust implementation
// (local/disk.rs) and adapted to the teacher's style of small, explicit
// filesystem helpers (internal/core/extractor.go, internal/core/installer.go
// in the reference repo).
package diskstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mlcore/internal/domain"
)

const (
	modsSubpath     = "Mods/Packs"
	metadataSubpath = "Mods/Packs/.ml"
	manifestName    = "manifest.json"
	latestName      = "latest.json"
	ignoredEntry    = ".db"
)

// Store performs filesystem operations rooted at a single install
// directory. It holds no other state; all decisions are made from what's
// on disk at call time.
type Store struct {
	installDir string
}

// New creates a Store rooted at installDir (the game's "Mods" parent).
func New(installDir string) *Store {
	return &Store{installDir: installDir}
}

func (s *Store) modDir(id string) string {
	return filepath.Join(s.installDir, modsSubpath, id)
}

func (s *Store) metadataDir(id string) string {
	return filepath.Join(s.installDir, metadataSubpath, id)
}

func (s *Store) manifestPath(id string) string {
	return filepath.Join(s.metadataDir(id), manifestName)
}

func (s *Store) latestPath(id string) string {
	return filepath.Join(s.metadataDir(id), latestName)
}

// Get loads a single mod by id, reading its manifest from disk if present.
func (s *Store) Get(id string) (domain.Mod, error) {
	info, err := os.Stat(s.modDir(id))
	switch {
	case os.IsNotExist(err):
		return domain.Mod{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	case err != nil:
		return domain.Mod{}, fmt.Errorf("stat mod dir %s: %w", id, err)
	case !info.IsDir():
		return domain.Mod{}, fmt.Errorf("%w: %s", domain.ErrNonDirectory, id)
	}

	manifest, err := s.loadManifest(id)
	if err != nil {
		return domain.Mod{}, err
	}
	return domain.Mod{ID: id, Manifest: manifest}, nil
}

// List returns every installed mod. A missing Mods/Packs directory is not
// an error; it just means there are no mods yet.
func (s *Store) List() ([]domain.Mod, error) {
	entries, err := os.ReadDir(filepath.Join(s.installDir, modsSubpath))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", modsSubpath, err)
	}

	mods := make([]domain.Mod, 0, len(entries))
	for _, entry := range entries {
		if entry.Name() == ignoredEntry {
			continue
		}
		m, err := s.Get(entry.Name())
		if err != nil {
			if isNonDirectory(err) {
				continue
			}
			return nil, err
		}
		mods = append(mods, m)
	}
	return mods, nil
}

func isNonDirectory(err error) bool {
	return errors.Is(err, domain.ErrNonDirectory)
}

// Remove deletes a mod's payload directory and metadata directory. A
// missing metadata directory is tolerated; a missing payload directory is
// NotFound.
func (s *Store) Remove(id string) error {
	exists, err := pathExists(s.modDir(id))
	if err != nil {
		return fmt.Errorf("checking mod %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if err := os.RemoveAll(s.modDir(id)); err != nil {
		return fmt.Errorf("removing mod %s: %w", id, err)
	}
	if err := os.RemoveAll(s.metadataDir(id)); err != nil {
		return fmt.Errorf("removing metadata for %s: %w", id, err)
	}
	return nil
}

func (s *Store) loadManifest(id string) (*domain.Manifest, error) {
	data, err := os.ReadFile(s.manifestPath(id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest for %s: %w", id, err)
	}
	var manifest domain.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("%w: manifest for %s: %v", domain.ErrManifestParse, id, err)
	}
	return &manifest, nil
}

func (s *Store) writeManifest(id string, manifest domain.Manifest) error {
	if err := os.MkdirAll(s.metadataDir(id), 0o755); err != nil {
		return fmt.Errorf("%w: creating metadata dir for %s: %v", domain.ErrDestination, id, err)
	}
	data, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encoding manifest for %s: %w", id, err)
	}
	if err := os.WriteFile(s.manifestPath(id), data, 0o644); err != nil {
		return fmt.Errorf("%w: writing manifest for %s: %v", domain.ErrDestination, id, err)
	}
	return nil
}

func (s *Store) loadLatest(id string) (string, bool, error) {
	data, err := os.ReadFile(s.latestPath(id))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading latest pointer for %s: %w", id, err)
	}
	var latest domain.LatestPointer
	if err := json.Unmarshal(data, &latest); err != nil {
		return "", false, fmt.Errorf("%w: latest pointer for %s: %v", domain.ErrManifestParse, id, err)
	}
	return latest.ID, true, nil
}

// UpdateLatestJSON compares api_mod's newest file id against the stored
// latest pointer and overwrites it (creating the metadata dir if needed)
// only when it differs. It returns the mod id when it wrote, and never
// touches manifest.json — the latest pointer and the manifest are
// independent records (see SPEC_FULL.md §4.1).
func (s *Store) UpdateLatestJSON(remote domain.RemoteMod) (string, bool, error) {
	id := RemoteID(remote)
	latestFile, ok := remote.LatestFile()
	if !ok {
		return "", false, nil
	}

	prev, had, err := s.loadLatest(id)
	if err != nil {
		return "", false, err
	}
	if had && prev == latestFile.ID {
		return "", false, nil
	}

	if err := os.MkdirAll(s.metadataDir(id), 0o755); err != nil {
		return "", false, fmt.Errorf("%w: creating metadata dir for %s: %v", domain.ErrDestination, id, err)
	}
	data, err := json.Marshal(domain.LatestPointer{ID: latestFile.ID})
	if err != nil {
		return "", false, fmt.Errorf("encoding latest pointer for %s: %w", id, err)
	}
	if err := os.WriteFile(s.latestPath(id), data, 0o644); err != nil {
		return "", false, fmt.Errorf("%w: writing latest pointer for %s: %v", domain.ErrDestination, id, err)
	}
	return id, true, nil
}

// GetModLogo returns the mime type and bytes of a remote-origin mod's logo.
func (s *Store) GetModLogo(id string) (mimeType string, data []byte, err error) {
	manifest, err := s.loadManifest(id)
	if err != nil {
		return "", nil, err
	}
	if manifest == nil || manifest.Logo == "" {
		return "", nil, fmt.Errorf("%w: no logo for %s", domain.ErrNotFound, id)
	}
	ext := filepath.Ext(manifest.Logo)
	mimeType, ok := logoMimeTypes[ext]
	if !ok {
		return "", nil, fmt.Errorf("%w: unrecognized logo extension %q for %s", domain.ErrManifestParse, ext, id)
	}
	path := filepath.Join(s.metadataDir(id), manifest.Logo)
	data, err = os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("reading logo for %s: %w", id, err)
	}
	return mimeType, data, nil
}

var logoMimeTypes = map[string]string{
	".jpg": "image/jpeg",
	".png": "image/png",
	".gif": "image/gif",
}

// RemoteID is the mod id derived from a remote catalog entry: "fyi." plus
// its slug.
func RemoteID(remote domain.RemoteMod) string {
	return domain.RemoteIDPrefix + remote.Slug
}

// pathExists reports whether path exists, treating anything other than
// os.ErrNotExist as a real error.
func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
