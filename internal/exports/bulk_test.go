package exports

import (
	"archive/zip"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCreateBulkRequiresPremium(t *testing.T) {
	env := newExportEnv(t)
	r1 := env.addResume(t, "u1", "One")

	_, err := env.svc.CreateBulkExport(context.Background(), "u1", []string{r1.ID}, FormatPDF)
	var premiumErr PremiumRequiredError
	if !errors.As(err, &premiumErr) {
		t.Fatalf("expected PremiumRequiredError, got %v", err)
	}
}

func TestCreateBulkDropsInvalidResumes(t *testing.T) {
	env := newExportEnv(t)
	env.addUser(t, "u1", PlanPremium, true)
	ctx := context.Background()

	r1 := env.addResume(t, "u1", "One")
	r2 := env.addResume(t, "u1", "Two")
	foreign := env.addResume(t, "u2", "Foreign")
	deleted := env.addResume(t, "u1", "Deleted")
	env.resumes.SoftDelete(ctx, deleted.ID)

	rec, err := env.svc.CreateBulkExport(ctx, "u1", []string{r1.ID, r2.ID, foreign.ID, deleted.ID, "missing", r1.ID}, FormatPDF)
	if err != nil {
		t.Fatalf("CreateBulkExport: %v", err)
	}
	if rec.ValidResumeCount != 2 {
		t.Fatalf("valid count = %d", rec.ValidResumeCount)
	}
	// Duplicate IDs collapse before validation.
	if len(rec.ResumeIDs) != 5 {
		t.Fatalf("deduped ids = %d", len(rec.ResumeIDs))
	}
	if rec.Status != StatusProcessing {
		t.Fatalf("status = %s", rec.Status)
	}

	// The bulk job spends usage at creation, like single exports.
	usage, err := env.store.GetUsage(ctx, "u1", MonthStart(env.now))
	if err != nil || usage.Count != 1 {
		t.Fatalf("usage count = %d err = %v", usage.Count, err)
	}
}

func TestCreateBulkAllInvalidRejected(t *testing.T) {
	env := newExportEnv(t)
	env.addUser(t, "u1", PlanPremium, true)

	_, err := env.svc.CreateBulkExport(context.Background(), "u1", []string{"missing-1", "missing-2"}, FormatPDF)
	var missingErr ResumeNotFoundError
	if !errors.As(err, &missingErr) {
		t.Fatalf("expected ResumeNotFoundError, got %v", err)
	}
}

func readZipNames(t *testing.T, path string) []string {
	t.Helper()
	reader, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open zip %s: %v", path, err)
	}
	defer reader.Close()
	var names []string
	for _, f := range reader.File {
		names = append(names, f.Name)
	}
	return names
}

func TestProcessBulkToleratesMemberFailures(t *testing.T) {
	env := newExportEnv(t)
	env.addUser(t, "u1", PlanPremium, true)
	ctx := context.Background()

	r1 := env.addResume(t, "u1", "First")
	r2 := env.addResume(t, "u1", "Second")
	r3 := env.addResume(t, "u1", "Third")
	// Second member fails to render.
	env.renderer.errs = []error{nil, errors.New("render crash"), nil}

	rec, err := env.svc.CreateBulkExport(ctx, "u1", []string{r1.ID, r2.ID, r3.ID}, FormatPDF)
	if err != nil {
		t.Fatalf("CreateBulkExport: %v", err)
	}
	if err := env.svc.ProcessBulk(ctx, rec.ID); err != nil {
		t.Fatalf("ProcessBulk: %v", err)
	}

	got, _ := env.store.GetBulkExport(ctx, rec.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("status = %s (%s)", got.Status, got.ErrorMessage)
	}
	if got.ValidResumeCount != 2 {
		t.Fatalf("rendered count = %d", got.ValidResumeCount)
	}
	if got.Progress != 100 {
		t.Fatalf("progress = %d", got.Progress)
	}

	names := readZipNames(t, got.ZipPath)
	if len(names) != 2 {
		t.Fatalf("zip members = %v", names)
	}
}

func TestProcessBulkFailsWhenNothingRenders(t *testing.T) {
	env := newExportEnv(t)
	env.addUser(t, "u1", PlanPremium, true)
	ctx := context.Background()

	r1 := env.addResume(t, "u1", "One")
	env.renderer.errs = []error{errors.New("down")}

	rec, _ := env.svc.CreateBulkExport(ctx, "u1", []string{r1.ID}, FormatPDF)
	if err := env.svc.ProcessBulk(ctx, rec.ID); err == nil {
		t.Fatal("expected failure when no member renders")
	}

	got, _ := env.store.GetBulkExport(ctx, rec.ID)
	if got.Status != StatusFailed {
		t.Fatalf("status = %s", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Fatal("error message missing")
	}
}

func TestProcessBulkDeduplicatesMemberNames(t *testing.T) {
	env := newExportEnv(t)
	env.addUser(t, "u1", PlanPremium, true)
	ctx := context.Background()

	r1 := env.addResume(t, "u1", "Same Title")
	r2 := env.addResume(t, "u1", "Same Title")

	rec, _ := env.svc.CreateBulkExport(ctx, "u1", []string{r1.ID, r2.ID}, FormatPDF)
	if err := env.svc.ProcessBulk(ctx, rec.ID); err != nil {
		t.Fatalf("ProcessBulk: %v", err)
	}

	got, _ := env.store.GetBulkExport(ctx, rec.ID)
	names := readZipNames(t, got.ZipPath)
	if len(names) != 2 {
		t.Fatalf("members = %v", names)
	}
	seen := map[string]bool{}
	for _, n := range names {
		if seen[n] {
			t.Fatalf("duplicate member name %s", n)
		}
		seen[n] = true
		if !strings.HasPrefix(n, "Same_Title") || !strings.HasSuffix(n, ".pdf") {
			t.Fatalf("unexpected member name %s", n)
		}
	}
}

func TestBulkDownloadFilenameAndLifecycle(t *testing.T) {
	env := newExportEnv(t)
	env.addUser(t, "u1", PlanPremium, true)
	ctx := context.Background()

	r1 := env.addResume(t, "u1", "One")
	rec, _ := env.svc.CreateBulkExport(ctx, "u1", []string{r1.ID}, FormatPDF)

	var processing StillProcessingError
	if _, err := env.svc.BulkDownload(ctx, "u1", rec.ID); !errors.As(err, &processing) {
		t.Fatalf("expected StillProcessingError, got %v", err)
	}

	if err := env.svc.ProcessBulk(ctx, rec.ID); err != nil {
		t.Fatalf("ProcessBulk: %v", err)
	}

	got, err := env.svc.BulkDownload(ctx, "u1", rec.ID)
	if err != nil {
		t.Fatalf("BulkDownload: %v", err)
	}
	if got.DownloadFilename() != "resumes_bulk_export_20250615.zip" {
		t.Fatalf("filename = %s", got.DownloadFilename())
	}

	stored, _ := env.store.GetBulkExport(ctx, rec.ID)
	if stored.DownloadCount != 1 {
		t.Fatalf("download count = %d", stored.DownloadCount)
	}

	// Bulk zips expire on the longer window.
	if gotWindow := rec.ExpiresAt.Sub(rec.CreatedAt); gotWindow != 48*time.Hour {
		t.Fatalf("expiry window = %v", gotWindow)
	}

	env.now = env.now.Add(49 * time.Hour)
	var expired ExpiredError
	if _, err := env.svc.BulkDownload(ctx, "u1", rec.ID); !errors.As(err, &expired) {
		t.Fatalf("expected ExpiredError, got %v", err)
	}
}

func TestDeleteBulkRemovesZip(t *testing.T) {
	env := newExportEnv(t)
	env.addUser(t, "u1", PlanPremium, true)
	ctx := context.Background()

	r1 := env.addResume(t, "u1", "One")
	rec, _ := env.svc.CreateBulkExport(ctx, "u1", []string{r1.ID}, FormatPDF)
	if err := env.svc.ProcessBulk(ctx, rec.ID); err != nil {
		t.Fatalf("ProcessBulk: %v", err)
	}
	stored, _ := env.store.GetBulkExport(ctx, rec.ID)

	deleted, err := env.svc.DeleteBulk(ctx, "u1", rec.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteBulk: deleted=%v err=%v", deleted, err)
	}
	if env.svc.Files.Exists(stored.ZipPath) {
		t.Fatal("zip still on disk")
	}
}
