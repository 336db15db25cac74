package diskstore

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"mlcore/internal/domain"
)

// extractZipArchive extracts source into destDir, applying two
// quality-of-life renames on top of the teacher's zip-slip-safe extraction
// (internal/core/extractor.go in the reference repo):
//
//   - if the archive contains exactly one .lua file, it's renamed to
//     main.lua so the game's loader finds it regardless of its original
//     name;
//   - if every entry shares a single top-level path component, that
//     component is stripped — unless it's "data" or "soundbank"
//     (case-insensitive), which are meaningful top-level directories the
//     game itself expects, not an archive-local wrapper folder.
func extractZipArchive(source, destDir string) (err error) {
	r, err := zip.OpenReader(source)
	if err != nil {
		return fmt.Errorf("%w: opening zip %s: %v", domain.ErrSource, source, err)
	}
	defer func() {
		if cerr := r.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing zip %s: %w", source, cerr)
		}
	}()

	paths := make([]string, len(r.File))
	for i, f := range r.File {
		clean, err := enclosedName(f.Name)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrSource, err)
		}
		paths[i] = clean
	}

	renameLua := countLuaPaths(paths) == 1
	removeFirst := pathsHaveSamePrefix(paths)
	destPaths := fixZipNames(paths, renameLua, removeFirst)

	for i, f := range r.File {
		destSubpath := destPaths[i]
		if destSubpath == "" {
			// The entry was the stripped top-level directory itself, so it
			// collapsed to the root; nothing to do.
			continue
		}
		destPath, err := sanitizeJoin(destDir, destSubpath)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return fmt.Errorf("%w: creating %s: %v", domain.ErrDestination, destPath, err)
			}
			continue
		}
		if err := extractZipEntry(f, destPath); err != nil {
			return err
		}
	}
	return nil
}

func extractZipEntry(f *zip.File, destPath string) (err error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("%w: creating directory for %s: %v", domain.ErrDestination, f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: opening %s in archive: %v", domain.ErrSource, f.Name, err)
	}
	defer func() {
		if cerr := rc.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing archive entry %s: %w", f.Name, cerr)
		}
	}()

	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return fmt.Errorf("%w: creating %s: %v", domain.ErrDestination, destPath, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing %s: %w", destPath, cerr)
		}
	}()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("writing %s: %w", destPath, err)
	}
	return nil
}

// enclosedName cleans a zip entry name and rejects anything that would
// escape its own archive-relative root (absolute paths, "..").
func enclosedName(name string) (string, error) {
	clean := filepath.Clean(filepath.ToSlash(name))
	if clean == "." {
		return "", nil
	}
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid entry name %q", name)
	}
	return clean, nil
}

// sanitizeJoin joins destDir and subpath, rejecting any result that would
// land outside destDir. This is a second line of defense behind
// enclosedName, guarding against zip-slip the same way the teacher's
// extractor.sanitizePath does.
func sanitizeJoin(destDir, subpath string) (string, error) {
	destPath := filepath.Join(destDir, subpath)
	cleanDest := filepath.Clean(destDir)
	if destPath != cleanDest && !strings.HasPrefix(destPath, cleanDest+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: path traversal in zip entry %q", domain.ErrSource, subpath)
	}
	return destPath, nil
}

// countLuaPaths counts entries whose extension is .lua.
func countLuaPaths(paths []string) int {
	n := 0
	for _, p := range paths {
		if strings.EqualFold(filepath.Ext(p), ".lua") {
			n++
		}
	}
	return n
}

// pathsHaveSamePrefix reports whether every path shares the same top-level
// path component, in which case that component is wrapper cruft to strip
// rather than meaningful game content.
func pathsHaveSamePrefix(paths []string) bool {
	if len(paths) == 1 && !strings.Contains(paths[0], "/") {
		return false
	}

	var prefix string
	seen := false
	for _, p := range paths {
		first := firstComponent(p)
		if first == "" {
			continue
		}
		low := strings.ToLower(first)
		if low == "data" || low == "soundbank" {
			return false
		}
		prefix = first
		seen = true
	}
	if !seen {
		return false
	}
	for _, p := range paths {
		if firstComponent(p) != prefix {
			return false
		}
	}
	return true
}

func firstComponent(p string) string {
	if p == "" {
		return ""
	}
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}

// fixZipNames applies the lua-rename and prefix-strip decided by the
// caller to every path, in that order (renaming first means a stripped
// prefix never hides the file losing its .lua extension).
func fixZipNames(paths []string, renameLua, removeFirst bool) []string {
	if !renameLua && !removeFirst {
		return paths
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		if renameLua && strings.EqualFold(filepath.Ext(p), ".lua") {
			dir := filepath.Dir(p)
			if dir == "." {
				p = "main.lua"
			} else {
				p = dir + "/main.lua"
			}
		}
		if removeFirst {
			if j := strings.IndexByte(p, '/'); j >= 0 {
				p = p[j+1:]
			} else {
				p = ""
			}
		}
		out[i] = p
	}
	return out
}
