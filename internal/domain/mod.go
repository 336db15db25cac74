// Package domain holds the data model shared by the disk store, cache,
// manager, and remote clients. Nothing in here touches the filesystem or
// the network.
package domain

import (
	"os"
	"strings"
)

// RemoteIDPrefix marks a Mod as having originated from the remote service.
const RemoteIDPrefix = "fyi."

// Mod is the identity of a locally installed mod.
//
// Two Mods are equal iff their ID and Manifest are equal (Manifest compared
// by value, nil only equal to nil).
type Mod struct {
	ID       string
	Manifest *Manifest
}

// IsRemote reports whether the mod was installed from the remote service.
func (m Mod) IsRemote() bool {
	return strings.HasPrefix(m.ID, RemoteIDPrefix)
}

// Equal reports whether m and other have the same ID and an equal Manifest.
func (m Mod) Equal(other Mod) bool {
	if m.ID != other.ID {
		return false
	}
	if m.Manifest == nil || other.Manifest == nil {
		return m.Manifest == other.Manifest
	}
	return *m.Manifest == *other.Manifest
}

// ManifestModFile is the mod-file descriptor persisted inside a Manifest.
type ManifestModFile struct {
	ID          string `json:"id"`
	CreatedAt   string `json:"created_at"`
	DownloadURL string `json:"download_url"`
}

// Manifest is the persisted metadata for a remote-origin mod.
type Manifest struct {
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	Logo        string          `json:"logo,omitempty"`
	ModFile     ManifestModFile `json:"mod_file"`
}

// LatestPointer names the most recent known remote file id for a mod.
type LatestPointer struct {
	ID string `json:"id"`
}

// RemoteModFile is one entry in a RemoteMod's file list, newest first.
type RemoteModFile struct {
	ID          string `json:"id"`
	CreatedAt   string `json:"created_at"`
	FileName    string `json:"filename"`
	Downloads   int64  `json:"downloads"`
	DownloadURL string `json:"download_url"`
}

// RemoteModSubmitter identifies the author of (or a collaborator on) a
// RemoteMod.
type RemoteModSubmitter struct {
	Username string `json:"username"`
}

// RemoteMod is a catalog entry as returned by the remote manifest endpoint.
//
// Name/Slug/Description/Logo/ModFiles are the fields the core acts on.
// SelfURL/Submitter/Collaborators/ModType/Game/Details/CommentsAllowed/
// IsListed/AdultContent are recovered from the original implementation's
// wire schema and are carried through for a host UI to render, but the
// core itself never reads them.
type RemoteMod struct {
	Name            string               `json:"name"`
	Slug            string               `json:"slug"`
	SelfURL         string               `json:"self_url"`
	Submitter       RemoteModSubmitter   `json:"submitter"`
	Collaborators   []RemoteModSubmitter `json:"collaborators"`
	Description     string               `json:"description"`
	ModType         int                  `json:"mod_type"`
	Game            int                  `json:"game"`
	Logo            string               `json:"logo"`
	Details         string               `json:"details"`
	CommentsAllowed bool                 `json:"comments_allowed"`
	IsListed        bool                 `json:"is_listed"`
	AdultContent    bool                 `json:"adult_content"`
	ModFiles        []RemoteModFile      `json:"mod_files"`
}

// LatestFile returns the newest mod file, or false if the catalog entry has
// no files at all.
func (r RemoteMod) LatestFile() (RemoteModFile, bool) {
	if len(r.ModFiles) == 0 {
		return RemoteModFile{}, false
	}
	return r.ModFiles[0], true
}

// DownloadedLogo is a downloaded logo image awaiting install.
type DownloadedLogo struct {
	Path        string
	ContentType string
}

// DownloadedMod is the result of a remote fetch: the catalog entry, the
// file that was downloaded, and local paths to the downloaded payloads.
//
// DownloadedMod owns TempDir; Close removes it. MainFile is only readable
// until Close is called (invariant 5 in the spec).
type DownloadedMod struct {
	Mod      RemoteMod
	ModFile  RemoteModFile
	MainFile string
	Logo     *DownloadedLogo
	TempDir  string
}

// Close removes the DownloadedMod's temporary directory.
func (d *DownloadedMod) Close() error {
	if d.TempDir == "" {
		return nil
	}
	return os.RemoveAll(d.TempDir)
}
