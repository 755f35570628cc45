package files

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	base := t.TempDir()
	m, err := NewManager(filepath.Join(base, "exports"), filepath.Join(base, "temp"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestExportPathIsScopedAndUnique(t *testing.T) {
	m := newTestManager(t)

	p1 := m.ExportPath("user-1", "My Resume", "pdf")
	p2 := m.ExportPath("user-1", "My Resume", "pdf")

	if p1 == p2 {
		t.Fatalf("expected unique paths, got %s twice", p1)
	}
	if !strings.HasPrefix(p1, m.UserDir("user-1")) {
		t.Fatalf("path %s not under user dir", p1)
	}
	if !strings.HasSuffix(p1, ".pdf") {
		t.Fatalf("path %s missing extension", p1)
	}
}

func TestExportPathSanitizesTraversal(t *testing.T) {
	m := newTestManager(t)

	p := m.ExportPath("../../etc", "../passwd", "pdf")
	rel, err := filepath.Rel(m.BaseDir, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		t.Fatalf("path %s escapes base dir", p)
	}
}

func TestTempFileCleanupAndRelease(t *testing.T) {
	m := newTestManager(t)

	tmp, err := m.CreateTemp("pdf")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if err := os.WriteFile(tmp.Path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}

	tmp.Cleanup()
	if m.Exists(tmp.Path) {
		t.Fatal("temp file survived Cleanup")
	}

	tmp2, _ := m.CreateTemp("pdf")
	os.WriteFile(tmp2.Path, []byte("data"), 0o644)
	tmp2.Release()
	tmp2.Cleanup()
	if !m.Exists(tmp2.Path) {
		t.Fatal("released temp file was removed")
	}
}

func TestMoveCreatesParentAndRelocates(t *testing.T) {
	m := newTestManager(t)

	tmp, _ := m.CreateTemp("pdf")
	os.WriteFile(tmp.Path, []byte("artifact"), 0o644)

	dst := m.ExportPath("user-1", "Resume", "pdf")
	if err := m.Move(tmp.Path, dst); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if m.Exists(tmp.Path) {
		t.Fatal("source still present after move")
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "artifact" {
		t.Fatalf("destination wrong: %v %q", err, data)
	}
}

func TestDeleteReportsMissing(t *testing.T) {
	m := newTestManager(t)

	deleted, err := m.Delete(filepath.Join(m.BaseDir, "nope.pdf"))
	if err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
	if deleted {
		t.Fatal("reported deletion of missing file")
	}

	p := filepath.Join(m.BaseDir, "real.pdf")
	os.WriteFile(p, []byte("x"), 0o644)
	deleted, err = m.Delete(p)
	if err != nil || !deleted {
		t.Fatalf("Delete existing: deleted=%v err=%v", deleted, err)
	}
}

func TestValidateSize(t *testing.T) {
	m := newTestManager(t)

	p := filepath.Join(m.BaseDir, "f.pdf")
	os.WriteFile(p, make([]byte, 100), 0o644)

	size, err := m.ValidateSize(p, 200)
	if err != nil || size != 100 {
		t.Fatalf("ValidateSize under limit: size=%d err=%v", size, err)
	}

	if _, err := m.ValidateSize(p, 50); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestCleanupManySkipsMissing(t *testing.T) {
	m := newTestManager(t)

	p1 := filepath.Join(m.BaseDir, "a.pdf")
	p2 := filepath.Join(m.BaseDir, "b.pdf")
	os.WriteFile(p1, []byte("xxx"), 0o644)
	os.WriteFile(p2, []byte("xxxxx"), 0o644)

	removed, freed := m.CleanupMany([]string{p1, p2, filepath.Join(m.BaseDir, "gone.pdf"), ""})
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if freed != 8 {
		t.Fatalf("expected 8 bytes freed, got %d", freed)
	}
}

func TestListArtifactsWalksUserDirs(t *testing.T) {
	m := newTestManager(t)

	os.MkdirAll(m.UserDir("u1"), 0o755)
	os.MkdirAll(m.UserDir("u2"), 0o755)
	os.WriteFile(filepath.Join(m.UserDir("u1"), "a.pdf"), []byte("aa"), 0o644)
	os.WriteFile(filepath.Join(m.UserDir("u2"), "b.zip"), []byte("bbbb"), 0o644)

	infos, err := m.ListArtifacts()
	if err != nil {
		t.Fatalf("ListArtifacts: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(infos))
	}
}

func TestRemoveUserDirectory(t *testing.T) {
	m := newTestManager(t)

	os.MkdirAll(m.UserDir("u1"), 0o755)
	os.WriteFile(filepath.Join(m.UserDir("u1"), "a.pdf"), []byte("x"), 0o644)

	if err := m.RemoveUserDirectory("u1"); err != nil {
		t.Fatalf("RemoveUserDirectory: %v", err)
	}
	if m.Exists(filepath.Join(m.UserDir("u1"), "a.pdf")) {
		t.Fatal("user artifacts not removed")
	}

	size, err := m.DirectorySize("u1")
	if err != nil || size != 0 {
		t.Fatalf("DirectorySize after purge: size=%d err=%v", size, err)
	}
}
