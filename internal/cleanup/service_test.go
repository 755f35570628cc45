package cleanup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"resumegen-backend/internal/exports"
	"resumegen-backend/internal/exports/files"
	"resumegen-backend/internal/shared/config"
)

type cleanupEnv struct {
	store *exports.MemoryStore
	files *files.Manager
	svc   *Service
	now   time.Time
}

func newCleanupEnv(t *testing.T) *cleanupEnv {
	t.Helper()
	base := t.TempDir()
	mgr, err := files.NewManager(filepath.Join(base, "exports"), filepath.Join(base, "tmp"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	env := &cleanupEnv{
		store: exports.NewMemoryStore(),
		files: mgr,
		now:   time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
	env.svc = &Service{
		Store: env.store,
		Files: mgr,
		Cfg: config.ExportConfig{
			ExportExpiryHours:  24,
			CleanupBatchSize:   2,
			AutoCleanupEnabled: true,
		},
		Now: func() time.Time { return env.now },
	}
	return env
}

func (e *cleanupEnv) writeArtifact(t *testing.T, userID, name string) string {
	t.Helper()
	dir := e.files.UserDir(userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("artifact"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestSweepExpiredRemovesFilesAndRecords(t *testing.T) {
	env := newCleanupEnv(t)
	ctx := context.Background()

	// Three expired singles so the sweep has to page with batch size 2.
	var expiredPaths []string
	for _, id := range []string{"a", "b", "c"} {
		path := env.writeArtifact(t, "u1", id+".pdf")
		expiredPaths = append(expiredPaths, path)
		env.store.CreateExport(ctx, exports.ExportRecord{
			ID: id, UserID: "u1", Status: exports.StatusCompleted, FilePath: path,
			CreatedAt: env.now.Add(-48 * time.Hour), ExpiresAt: env.now.Add(-time.Hour),
		})
	}
	zipPath := env.writeArtifact(t, "u1", "bundle.zip")
	env.store.CreateBulkExport(ctx, exports.BulkExportRecord{
		ID: "bulk", UserID: "u1", Status: exports.StatusCompleted, ZipPath: zipPath,
		CreatedAt: env.now.Add(-72 * time.Hour), ExpiresAt: env.now.Add(-time.Hour),
	})
	livePath := env.writeArtifact(t, "u1", "live.pdf")
	env.store.CreateExport(ctx, exports.ExportRecord{
		ID: "live", UserID: "u1", Status: exports.StatusCompleted, FilePath: livePath,
		CreatedAt: env.now, ExpiresAt: env.now.Add(24 * time.Hour),
	})

	deleted, err := env.svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if deleted != 4 {
		t.Fatalf("deleted = %d", deleted)
	}

	for _, path := range append(expiredPaths, zipPath) {
		if env.files.Exists(path) {
			t.Fatalf("%s still on disk", path)
		}
	}
	var notFound exports.NotFoundError
	if _, err := env.store.GetExport(ctx, "a"); !errors.As(err, &notFound) {
		t.Fatalf("expired record survived: %v", err)
	}
	if _, err := env.store.GetBulkExport(ctx, "bulk"); !errors.As(err, &notFound) {
		t.Fatalf("expired bulk record survived: %v", err)
	}
	if _, err := env.store.GetExport(ctx, "live"); err != nil {
		t.Fatalf("live export removed: %v", err)
	}
	if !env.files.Exists(livePath) {
		t.Fatal("live artifact removed")
	}
}

func TestSweepFailedHonorsCutoff(t *testing.T) {
	env := newCleanupEnv(t)
	ctx := context.Background()

	oldPath := env.writeArtifact(t, "u1", "partial.pdf")
	env.store.CreateExport(ctx, exports.ExportRecord{
		ID: "old-failed", UserID: "u1", Status: exports.StatusFailed, FilePath: oldPath,
		CreatedAt: env.now.Add(-72 * time.Hour), ExpiresAt: env.now.Add(-48 * time.Hour),
	})
	env.store.CreateExport(ctx, exports.ExportRecord{
		ID: "fresh-failed", UserID: "u1", Status: exports.StatusFailed,
		CreatedAt: env.now.Add(-10 * time.Hour), ExpiresAt: env.now.Add(14 * time.Hour),
	})
	env.store.CreateExport(ctx, exports.ExportRecord{
		ID: "old-completed", UserID: "u1", Status: exports.StatusCompleted,
		CreatedAt: env.now.Add(-72 * time.Hour), ExpiresAt: env.now.Add(time.Hour),
	})

	deleted, err := env.svc.SweepFailed(ctx)
	if err != nil {
		t.Fatalf("SweepFailed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d", deleted)
	}
	if env.files.Exists(oldPath) {
		t.Fatal("partial artifact still on disk")
	}

	var notFound exports.NotFoundError
	if _, err := env.store.GetExport(ctx, "old-failed"); !errors.As(err, &notFound) {
		t.Fatalf("old failed record survived: %v", err)
	}
	if _, err := env.store.GetExport(ctx, "fresh-failed"); err != nil {
		t.Fatalf("fresh failed record removed: %v", err)
	}
	if _, err := env.store.GetExport(ctx, "old-completed"); err != nil {
		t.Fatalf("completed record removed by failed sweep: %v", err)
	}
}

func TestSweepOrphans(t *testing.T) {
	env := newCleanupEnv(t)
	ctx := context.Background()
	// Orphan detection compares disk mtimes, so run against the real clock.
	env.now = time.Now().UTC()
	old := env.now.Add(-72 * time.Hour)

	knownPath := env.writeArtifact(t, "u1", "known.pdf")
	if err := os.Chtimes(knownPath, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	env.store.CreateExport(ctx, exports.ExportRecord{
		ID: "known", UserID: "u1", Status: exports.StatusCompleted, FilePath: knownPath,
		CreatedAt: env.now, ExpiresAt: env.now.Add(24 * time.Hour),
	})

	oldOrphan := env.writeArtifact(t, "u1", "orphan.pdf")
	if err := os.Chtimes(oldOrphan, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	freshOrphan := env.writeArtifact(t, "u1", "fresh.pdf")

	staleTmp := filepath.Join(env.files.TempDir, "stale.tmp")
	if err := os.WriteFile(staleTmp, []byte("x"), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}
	if err := os.Chtimes(staleTmp, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	freshTmp := filepath.Join(env.files.TempDir, "fresh.tmp")
	if err := os.WriteFile(freshTmp, []byte("x"), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}

	deleted, err := env.svc.SweepOrphans(ctx)
	if err != nil {
		t.Fatalf("SweepOrphans: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d", deleted)
	}
	if env.files.Exists(oldOrphan) || env.files.Exists(staleTmp) {
		t.Fatal("stale files survived")
	}
	if !env.files.Exists(knownPath) || !env.files.Exists(freshOrphan) || !env.files.Exists(freshTmp) {
		t.Fatal("referenced or recent files were removed")
	}
}

func TestSweepStaleUsage(t *testing.T) {
	env := newCleanupEnv(t)
	ctx := context.Background()

	current := exports.MonthStart(env.now)
	ancient := exports.MonthStart(env.now.AddDate(-2, 0, 0))
	env.store.IncrementUsage(ctx, "u1", current, env.now)
	env.store.IncrementUsage(ctx, "u1", ancient, env.now.AddDate(-2, 0, 0))

	deleted, err := env.svc.SweepStaleUsage(ctx)
	if err != nil {
		t.Fatalf("SweepStaleUsage: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d", deleted)
	}

	kept, _ := env.store.GetUsage(ctx, "u1", current)
	if kept.Count != 1 {
		t.Fatalf("current month counter lost: %+v", kept)
	}
	gone, _ := env.store.GetUsage(ctx, "u1", ancient)
	if gone.Count != 0 {
		t.Fatalf("ancient counter survived: %+v", gone)
	}
}

func TestRunOnceReportsEverySweep(t *testing.T) {
	env := newCleanupEnv(t)
	ctx := context.Background()

	path := env.writeArtifact(t, "u1", "expired.pdf")
	env.store.CreateExport(ctx, exports.ExportRecord{
		ID: "exp", UserID: "u1", Status: exports.StatusCompleted, FilePath: path,
		CreatedAt: env.now.Add(-48 * time.Hour), ExpiresAt: env.now.Add(-time.Hour),
	})

	report, err := env.svc.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	for _, name := range []string{"expired", "failed", "orphans", "stale_usage"} {
		if _, ok := report[name]; !ok {
			t.Fatalf("report missing %s: %v", name, report)
		}
	}
	if report["expired"] != 1 {
		t.Fatalf("expired count = %d", report["expired"])
	}
}

func TestPurgeUser(t *testing.T) {
	env := newCleanupEnv(t)
	ctx := context.Background()

	minePath := env.writeArtifact(t, "u1", "mine.pdf")
	env.store.CreateExport(ctx, exports.ExportRecord{
		ID: "mine", UserID: "u1", Status: exports.StatusCompleted, FilePath: minePath,
		CreatedAt: env.now, ExpiresAt: env.now.Add(24 * time.Hour),
	})
	env.store.CreateBulkExport(ctx, exports.BulkExportRecord{
		ID: "mine-bulk", UserID: "u1", Status: exports.StatusCompleted,
		CreatedAt: env.now, ExpiresAt: env.now.Add(48 * time.Hour),
	})
	env.store.IncrementUsage(ctx, "u1", exports.MonthStart(env.now), env.now)

	otherPath := env.writeArtifact(t, "u2", "other.pdf")
	env.store.CreateExport(ctx, exports.ExportRecord{
		ID: "other", UserID: "u2", Status: exports.StatusCompleted, FilePath: otherPath,
		CreatedAt: env.now, ExpiresAt: env.now.Add(24 * time.Hour),
	})

	if err := env.svc.PurgeUser(ctx, "u1"); err != nil {
		t.Fatalf("PurgeUser: %v", err)
	}

	var notFound exports.NotFoundError
	if _, err := env.store.GetExport(ctx, "mine"); !errors.As(err, &notFound) {
		t.Fatalf("purged export survived: %v", err)
	}
	if _, err := env.store.GetBulkExport(ctx, "mine-bulk"); !errors.As(err, &notFound) {
		t.Fatalf("purged bulk export survived: %v", err)
	}
	usage, _ := env.store.GetUsage(ctx, "u1", exports.MonthStart(env.now))
	if usage.Count != 0 {
		t.Fatalf("usage survived: %+v", usage)
	}
	if _, err := os.Stat(env.files.UserDir("u1")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("user directory survived")
	}

	if _, err := env.store.GetExport(ctx, "other"); err != nil {
		t.Fatalf("unrelated user purged: %v", err)
	}
	if !env.files.Exists(otherPath) {
		t.Fatal("unrelated user's artifact removed")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	env := newCleanupEnv(t)

	env.svc.Start()
	env.svc.Start() // second call is a no-op
	env.svc.Stop()
	env.svc.Stop() // stopping twice is safe

	disabled := newCleanupEnv(t)
	disabled.svc.Cfg.AutoCleanupEnabled = false
	disabled.svc.Start()
	disabled.svc.Stop()
}

// The handler's manual cleanup and purge endpoints run through this service.
var (
	_ exports.CleanupTrigger = (*Service)(nil)
	_ exports.UserPurger     = (*Service)(nil)
)
