package exports

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"resumegen-backend/internal/exports/files"
	"resumegen-backend/internal/exports/render"
	"resumegen-backend/internal/resumes"
	"resumegen-backend/internal/shared/config"
	"resumegen-backend/internal/shared/metrics"
	"resumegen-backend/internal/shared/telemetry"
	"resumegen-backend/internal/shared/util"
)

// ResumeSource provides resume lookup for export validation. GetByID must
// return tombstoned rows so deleted resumes can be reported as gone rather
// than missing.
type ResumeSource interface {
	GetByID(ctx context.Context, resumeID string) (resumes.Resume, error)
	SetExportTier(ctx context.Context, resumeID, tier string) error
}

/// Service orchestrates the export lifecycle: quota-gated creation, background
// rendering with retry, downloads and deletion.
type Service struct {
	Store     Store
	Resumes   ResumeSource
	Subs      *SubscriptionService
	Files     *files.Manager
	Renderers map[string]render.Renderer
	Cfg       config.ExportConfig

	// Injected for tests. Zero values fall back to the real clock.
	Now   func() time.Time
	Sleep func(d time.Duration)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) sleep(d time.Duration) {
	if s.Sleep != nil {
		s.Sleep(d)
		return
	}
	time.Sleep(d)
}

// CreateExport validates the request and records a processing export. The
// quota gate runs before resume validation so a user at their limit always
// sees the limit error. Usage is spent here, at creation, not on completion.
// Rendering happens afterwards via Process.
func (s *Service) CreateExport(ctx context.Context, userID, resumeID, format string) (ExportRecord, error) {
	if !ValidFormat(format) {
		return ExportRecord{}, InvalidFormatError{Format: format}
	}

	plan, limits, err := s.Subs.GetSubscription(ctx, userID)
	if err != nil {
		return ExportRecord{}, err
	}
	if err := s.Subs.CheckExportLimit(ctx, userID); err != nil {
		return ExportRecord{}, err
	}

	resume, err := s.loadOwnedResume(ctx, userID, resumeID)
	if err != nil {
		return ExportRecord{}, err
	}

	now := s.now()
	rec := ExportRecord{
		ID:               uuid.NewString(),
		UserID:           userID,
		ResumeID:         resume.ID,
		ResumeTitle:      resume.Title,
		Format:           format,
		Filename:         util.SanitizeTitle(resume.Title) + "." + format,
		Status:           StatusProcessing,
		SubscriptionPlan: plan,
		CreatedAt:        now,
		ExpiresAt:        now.Add(time.Duration(limits.ExpiryHours) * time.Hour),
	}
	if err := s.Store.CreateExport(ctx, rec); err != nil {
		return ExportRecord{}, err
	}

	if err := s.Subs.IncrementUsage(ctx, userID); err != nil {
		telemetry.Warn("export.usage_increment_failed", map[string]any{"export_id": rec.ID, "error": err.Error()})
	}
	if err := s.Resumes.SetExportTier(ctx, resume.ID, plan); err != nil {
		telemetry.Warn("export.tier_update_failed", map[string]any{"export_id": rec.ID, "error": err.Error()})
	}

	metrics.IncExportStarted()
	telemetry.Info("export.created", map[string]any{
		"export_id": rec.ID,
		"user_id":   userID,
		"resume_id": resume.ID,
		"format":    format,
		"plan":      plan,
	})
	return rec, nil
}

// Process renders the artifact for a processing export, retrying transient
// failures with linear backoff. The artifact reaches its final path only via
// an atomic move, and the record flips to completed or failed exactly once.
func (s *Service) Process(ctx context.Context, exportID string) error {
	rec, err := s.Store.GetExport(ctx, exportID)
	if err != nil {
		return err
	}
	if rec.Status != StatusProcessing {
		return nil
	}

	resume, err := s.loadOwnedResume(ctx, rec.UserID, rec.ResumeID)
	if err != nil {
		return s.failExport(ctx, rec, err)
	}

	content := resume.Content
	if len(resume.AIContent) > 0 {
		content = resume.AIContent
	}
	doc, err := render.ParseDocument(resume.Title, content)
	if err != nil {
		return s.failExport(ctx, rec, fmt.Errorf("parse resume content: %w", err))
	}

	renderer, ok := s.Renderers[rec.Format]
	if !ok {
		return s.failExport(ctx, rec, InvalidFormatError{Format: rec.Format})
	}

	limits := LimitsForPlan(rec.SubscriptionPlan, s.Cfg)
	maxBytes := int64(limits.FileSizeMB) * 1024 * 1024

	maxRetries := s.Cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	started := s.now()
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		lastErr = s.renderOnce(ctx, rec, doc, renderer, maxBytes)
		if lastErr == nil {
			elapsed := s.now().Sub(started)
			metrics.IncExportCompleted()
			metrics.ObserveExportDurationMs(float64(elapsed.Milliseconds()))
			telemetry.Info("export.completed", map[string]any{"export_id": rec.ID, "attempt": attempt, "duration_ms": elapsed.Milliseconds()})
			return nil
		}

		var sizeErr FileSizeError
		if errors.As(lastErr, &sizeErr) {
			// Retrying cannot shrink the artifact.
			break
		}

		telemetry.Warn("export.attempt_failed", map[string]any{
			"export_id": rec.ID,
			"attempt":   attempt,
			"error":     lastErr.Error(),
		})
		if attempt < maxRetries {
			s.sleep(s.Cfg.RetryDelay * time.Duration(attempt))
		}
	}

	return s.failExport(ctx, rec, lastErr)
}

func (s *Service) renderOnce(ctx context.Context, rec ExportRecord, doc render.Document, renderer render.Renderer, maxBytes int64) error {
	out, err := renderer.Render(ctx, doc)
	if err != nil {
		return err
	}

	tmp, err := s.Files.CreateTemp(rec.Format)
	if err != nil {
		return FileSystemError{Op: "create temp", Err: err}
	}
	defer tmp.Cleanup()

	if err := os.WriteFile(tmp.Path, out, 0o644); err != nil {
		return FileSystemError{Op: "write temp", Err: err}
	}

	size, err := s.Files.ValidateSize(tmp.Path, maxBytes)
	if err != nil {
		if errors.Is(err, files.ErrTooLarge) {
			return FileSizeError{SizeBytes: size, MaxBytes: maxBytes}
		}
		return FileSystemError{Op: "stat temp", Err: err}
	}

	finalPath := s.Files.ExportPath(rec.UserID, rec.ResumeTitle, rec.Format)
	if err := s.Files.Move(tmp.Path, finalPath); err != nil {
		return FileSystemError{Op: "move artifact", Err: err}
	}
	tmp.Release()

	if err := s.Store.MarkExportCompleted(ctx, rec.ID, finalPath, size, s.now()); err != nil {
		// The record stays processing; the artifact is orphaned until the
		// orphan sweep picks it up.
		return err
	}
	return nil
}

func (s *Service) failExport(ctx context.Context, rec ExportRecord, cause error) error {
	msg := "export failed"
	if cause != nil {
		msg = cause.Error()
	}
	if err := s.Store.MarkExportFailed(ctx, rec.ID, msg, s.now()); err != nil {
		telemetry.Warn("export.mark_failed_error", map[string]any{"export_id": rec.ID, "error": err.Error()})
	}
	metrics.IncExportFailed()
	telemetry.Info("export.failed", map[string]any{"export_id": rec.ID, "error": msg})
	return cause
}

// Status returns an export the user owns.
func (s *Service) Status(ctx context.Context, userID, exportID string) (ExportRecord, error) {
	rec, err := s.Store.GetExport(ctx, exportID)
	if err != nil {
		return ExportRecord{}, err
	}
	if rec.UserID != userID {
		return ExportRecord{}, UnauthorizedError{ExportID: exportID}
	}
	return rec, nil
}

// Download validates that the artifact is servable, bumps the download
// counter and returns the record with its on-disk path. Expiry wins over
/// every other state: a record past expires_at is gone no matter what its
// status says.
func (s *Service) Download(ctx context.Context, userID, exportID string) (ExportRecord, error) {
	rec, err := s.Status(ctx, userID, exportID)
	if err != nil {
		return ExportRecord{}, err
	}
	if rec.IsExpired(s.now()) {
		return ExportRecord{}, ExpiredError{ExportID: exportID, ExpiredAt: rec.ExpiresAt}
	}
	switch rec.Status {
	case StatusProcessing:
		return ExportRecord{}, StillProcessingError{ExportID: exportID}
	case StatusFailed:
		return ExportRecord{}, FailedError{ExportID: exportID, Message: rec.ErrorMessage}
	}
	if !s.Files.Exists(rec.FilePath) {
		return ExportRecord{}, NotFoundError{ExportID: exportID}
	}

	if err := s.Store.IncrementDownload(ctx, exportID, s.now()); err != nil {
		telemetry.Warn("export.download_count_failed", map[string]any{"export_id": exportID, "error": err.Error()})
	}
	metrics.IncExportDownloaded()
	return rec, nil
}

// Delete removes an export the user owns, artifact first, and reports
// whether a record existed.
func (s *Service) Delete(ctx context.Context, userID, exportID string) (bool, error) {
	rec, err := s.Status(ctx, userID, exportID)
	if err != nil {
		var notFound NotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	if rec.FilePath != "" {
		if _, err := s.Files.Delete(rec.FilePath); err != nil {
			return false, FileSystemError{Op: "delete artifact", Err: err}
		}
	}
	return s.Store.DeleteExport(ctx, exportID)
}

// History lists the user's exports newest-first.
func (s *Service) History(ctx context.Context, userID string, limit, offset int) ([]ExportRecord, error) {
	return s.Store.ListExportsByUser(ctx, userID, limit, offset)
}

// QuotaInfo is the client view of a user's export allowance.
type QuotaInfo struct {
	Plan         string      `json:"plan"`
	Limits       Limits      `json:"limits"`
	UsedInWindow int         `json:"usedInWindow"`
	Remaining    int         `json:"remaining"`
	MonthlyUsage UsageRecord `json:"monthlyUsage"`
}

// Quota reports the user's effective plan, window consumption and monthly
// counter. Remaining is -1 for unlimited plans.
func (s *Service) Quota(ctx context.Context, userID string) (QuotaInfo, error) {
	plan, limits, err := s.Subs.GetSubscription(ctx, userID)
	if err != nil {
		return QuotaInfo{}, err
	}
	used, err := s.Store.CountCompletedSince(ctx, userID, s.now().Add(-limitWindow))
	if err != nil {
		return QuotaInfo{}, err
	}
	usage, err := s.Subs.MonthlyUsage(ctx, userID)
	if err != nil {
		return QuotaInfo{}, err
	}

	remaining := -1
	if !limits.Unlimited() {
		remaining = limits.MonthlyExports - used
		if remaining < 0 {
			remaining = 0
		}
	}
	return QuotaInfo{
		Plan:         plan,
		Limits:       limits,
		UsedInWindow: used,
		Remaining:    remaining,
		MonthlyUsage: usage,
	}, nil
}

// AdminStats summarizes export volume by lifecycle state and the disk the
// artifacts occupy.
type AdminStats struct {
	Processing     int   `json:"processing"`
	Completed      int   `json:"completed"`
	Failed         int   `json:"failed"`
	Total          int   `json:"total"`
	DiskUsageBytes int64 `json:"diskUsageBytes"`
}

// Stats returns aggregate export counts for admin dashboards.
func (s *Service) Stats(ctx context.Context) (AdminStats, error) {
	counts, err := s.Store.CountExportsByStatus(ctx)
	if err != nil {
		return AdminStats{}, err
	}
	stats := AdminStats{
		Processing: counts[StatusProcessing],
		Completed:  counts[StatusCompleted],
		Failed:     counts[StatusFailed],
	}
	for _, c := range counts {
		stats.Total += c
	}
	artifacts, err := s.Files.ListArtifacts()
	if err != nil {
		return AdminStats{}, err
	}
	for _, artifact := range artifacts {
		stats.DiskUsageBytes += artifact.Size
	}
	return stats, nil
}

// CleanupExpired removes the caller's expired exports, file first, and
// reports how many records were deleted. Users call this to reclaim quota
// visibility without waiting for the scheduled sweep.
func (s *Service) CleanupExpired(ctx context.Context, userID string) (int, error) {
	now := s.now()
	const page = 100

	var expired []ExportRecord
	for offset := 0; ; offset += page {
		recs, err := s.Store.ListExportsByUser(ctx, userID, page, offset)
		if err != nil {
			return 0, err
		}
		for _, rec := range recs {
			if rec.IsExpired(now) {
				expired = append(expired, rec)
			}
		}
		if len(recs) < page {
			break
		}
	}

	deleted := 0
	for _, rec := range expired {
		if rec.FilePath != "" {
			if _, err := s.Files.Delete(rec.FilePath); err != nil {
				telemetry.Warn("export.cleanup_file_error", map[string]any{"export_id": rec.ID, "error": err.Error()})
			}
		}
		removed, err := s.Store.DeleteExport(ctx, rec.ID)
		if err != nil {
			return deleted, err
		}
		if removed {
			deleted++
		}
	}
	metrics.AddCleanupDeleted(deleted)
	return deleted, nil
}

func (s *Service) loadOwnedResume(ctx context.Context, userID, resumeID string) (resumes.Resume, error) {
	resume, err := s.Resumes.GetByID(ctx, resumeID)
	if err != nil {
		if errors.Is(err, resumes.ErrNotFound) {
			return resumes.Resume{}, ResumeNotFoundError{ResumeID: resumeID}
		}
		return resumes.Resume{}, err
	}
	if resume.UserID != userID {
		return resumes.Resume{}, UnauthorizedError{ExportID: resumeID}
	}
	if resume.IsDeleted() {
		return resumes.Resume{}, ResumeDeletedError{ResumeID: resumeID}
	}
	return resume, nil
}
