package files

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"resumegen-backend/internal/shared/util"
)

// ErrTooLarge indicates a generated file exceeded the caller's size limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// Manager owns the on-disk layout for export artifacts. Final artifacts live
// under BaseDir/<userID>/, work in progress under TempDir. Completed files
// only ever appear in BaseDir via an atomic move, so a crash mid-render never
// leaves a partial artifact at a servable path.
type Manager struct {
	BaseDir string
	TempDir string
}

// NewManager creates both directories and returns a Manager.
func NewManager(baseDir, tempDir string) (*Manager, error) {
	if baseDir == "" || tempDir == "" {
		return nil, errors.New("base and temp directories are required")
	}
	for _, dir := range []string{baseDir, tempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create export dir %s: %w", dir, err)
		}
	}
	return &Manager{BaseDir: baseDir, TempDir: tempDir}, nil
}

// UserDir returns the sanitized per-user artifact directory.
func (m *Manager) UserDir(userID string) string {
	return filepath.Join(m.BaseDir, util.SanitizeComponent(userID))
}

// ExportPath builds a unique final path for a single-resume export. The
// timestamp plus random suffix keeps repeated exports of the same resume from
// colliding.
func (m *Manager) ExportPath(userID, title, format string) string {
	stem := util.SanitizeTitle(title)
	suffix := time.Now().UTC().Format("20060102_150405")
	name := fmt.Sprintf("%s_%s_%s.%s", stem, suffix, shortToken(), format)
	return filepath.Join(m.UserDir(userID), name)
}

// BulkExportPath builds a unique final path for a bulk export zip.
func (m *Manager) BulkExportPath(userID string) string {
	name := fmt.Sprintf("resumes_bulk_export_%s_%s.zip", time.Now().UTC().Format("20060102"), shortToken())
	return filepath.Join(m.UserDir(userID), name)
}

// TempFile is a scratch file that is removed on Cleanup unless Release was
// called first. The usual pattern is defer Cleanup, then Release after the
// file has been moved to its final location.
type TempFile struct {
	Path     string
	released bool
}

// Release marks the file as kept.
func (t *TempFile) Release() {
	t.released = true
}

// Cleanup removes the file unless released.
func (t *TempFile) Cleanup() {
	if t == nil || t.released {
		return
	}
	_ = os.Remove(t.Path)
}

// CreateTemp reserves a scratch file path in the temp directory.
func (m *Manager) CreateTemp(ext string) (*TempFile, error) {
	if err := os.MkdirAll(m.TempDir, 0o755); err != nil {
		return nil, err
	}
	ext = strings.TrimPrefix(ext, ".")
	name := fmt.Sprintf("export_%s.%s", uuid.NewString(), ext)
	return &TempFile{Path: filepath.Join(m.TempDir, name)}, nil
}

// Move relocates src to dst atomically where the filesystem allows, falling
// back to copy-and-remove across devices. Parent directories are created.
func (m *Manager) Move(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// Delete removes a file and reports whether anything was deleted. A missing
// file is not an error.
func (m *Manager) Delete(path string) (bool, error) {
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Exists reports whether a regular file exists at path.
func (m *Manager) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Size returns the file size in bytes.
func (m *Manager) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ValidateSize returns the file size, or ErrTooLarge when it exceeds maxBytes.
func (m *Manager) ValidateSize(path string, maxBytes int64) (int64, error) {
	size, err := m.Size(path)
	if err != nil {
		return 0, err
	}
	if maxBytes > 0 && size > maxBytes {
		return size, ErrTooLarge
	}
	return size, nil
}

// CleanupMany removes a batch of files, skipping ones already gone, and
// returns how many were actually deleted plus the bytes reclaimed.
func (m *Manager) CleanupMany(paths []string) (int, int64) {
	removed := 0
	var freed int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		size, _ := m.Size(p)
		if deleted, err := m.Delete(p); err == nil && deleted {
			removed++
			freed += size
		}
	}
	return removed, freed
}

// ArtifactInfo describes one file found under the artifact root.
type ArtifactInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// ListArtifacts walks BaseDir and returns every regular file. Used by the
// orphan sweep to diff disk contents against the database.
func (m *Manager) ListArtifacts() ([]ArtifactInfo, error) {
	var out []ArtifactInfo
	err := filepath.WalkDir(m.BaseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		out = append(out, ArtifactInfo{Path: path, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	return out, err
}

// ListTempFiles returns every regular file under TempDir.
func (m *Manager) ListTempFiles() ([]ArtifactInfo, error) {
	var out []ArtifactInfo
	err := filepath.WalkDir(m.TempDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		out = append(out, ArtifactInfo{Path: path, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	return out, err
}

// DirectorySize sums the bytes of all artifacts for one user.
func (m *Manager) DirectorySize(userID string) (int64, error) {
	var total int64
	err := filepath.WalkDir(m.UserDir(userID), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// RemoveUserDirectory deletes every artifact a user owns.
func (m *Manager) RemoveUserDirectory(userID string) error {
	dir := m.UserDir(userID)
	// Guard against a sanitized-empty segment wiping the whole base dir.
	if filepath.Clean(dir) == filepath.Clean(m.BaseDir) {
		return errors.New("refusing to remove artifact root")
	}
	return os.RemoveAll(dir)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}

func shortToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
