package diskstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mlcore/internal/domain"
)

const saveFileName = "save.dat"

// prepForUpdate stashes the current payload directory for destID inside a
// fresh temp directory, clearing the way for a new install attempt. It
// returns the temp directory's path so finishUpdate can roll back or
// recover a save file from it.
func (s *Store) prepForUpdate(destID string) (string, error) {
	oldDir := s.modDir(destID)
	exists, err := pathExists(oldDir)
	if err != nil {
		return "", fmt.Errorf("checking %s: %w", destID, err)
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", domain.ErrNotFound, destID)
	}

	tempDir, err := os.MkdirTemp("", "mlcore-update-*")
	if err != nil {
		return "", fmt.Errorf("creating update staging dir: %w", err)
	}
	stashed := filepath.Join(tempDir, destID)
	if err := os.Rename(oldDir, stashed); err != nil {
		os.RemoveAll(tempDir)
		return "", fmt.Errorf("stashing old version of %s: %w", destID, err)
	}
	return tempDir, nil
}

// finishUpdate completes or rolls back an update staged by prepForUpdate.
// If the install attempt failed, the stashed directory is put back in
// place and the original error is returned unchanged. If it succeeded, a
// save.dat left behind by the old version is copied forward into the new
// one before the staging directory is discarded.
func (s *Store) finishUpdate(destID, tempDir string, installed domain.Mod, installErr error) (domain.Mod, error) {
	defer os.RemoveAll(tempDir)
	stashed := filepath.Join(tempDir, destID)

	if installErr != nil {
		if err := os.Rename(stashed, s.modDir(destID)); err != nil {
			return domain.Mod{}, fmt.Errorf("rolling back update for %s: %w (original error: %v)", destID, err, installErr)
		}
		return domain.Mod{}, installErr
	}

	oldSave := filepath.Join(stashed, saveFileName)
	exists, err := pathExists(oldSave)
	if err != nil {
		return domain.Mod{}, fmt.Errorf("checking save file for %s: %w", destID, err)
	}
	if exists {
		if err := copyFile(oldSave, filepath.Join(s.modDir(destID), saveFileName)); err != nil {
			return domain.Mod{}, fmt.Errorf("restoring save file for %s: %w", destID, err)
		}
	}
	return installed, nil
}

func copyFile(source, dest string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// UpdateLocal replaces destID's payload with source, preserving save.dat
// and rolling back if the new install fails.
func (s *Store) UpdateLocal(source, destID string) (domain.Mod, error) {
	tempDir, err := s.prepForUpdate(destID)
	if err != nil {
		return domain.Mod{}, err
	}
	installed, installErr := s.InstallLocal(source, destID)
	return s.finishUpdate(destID, tempDir, installed, installErr)
}

// UpdateRemote replaces a remote-origin mod's payload with a freshly
// downloaded one, preserving save.dat and rolling back if the new install
// fails.
func (s *Store) UpdateRemote(downloaded *domain.DownloadedMod) (domain.Mod, error) {
	destID := RemoteID(downloaded.Mod)
	tempDir, err := s.prepForUpdate(destID)
	if err != nil {
		return domain.Mod{}, err
	}
	installed, installErr := s.InstallRemote(downloaded)
	return s.finishUpdate(destID, tempDir, installed, installErr)
}
