package exports

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"resumegen-backend/internal/exports/files"
	"resumegen-backend/internal/exports/render"
	"resumegen-backend/internal/shared/metrics"
	"resumegen-backend/internal/shared/telemetry"
	"resumegen-backend/internal/shared/util"
)

// CreateBulkExport validates a multi-resume request and records a processing
// bulk job. Resumes that are missing, deleted or owned by someone else are
// dropped up front; the job is only rejected when nothing exportable is left.
func (s *Service) CreateBulkExport(ctx context.Context, userID string, resumeIDs []string, format string) (BulkExportRecord, error) {
	if !ValidFormat(format) {
		return BulkExportRecord{}, InvalidFormatError{Format: format}
	}

	ids := dedupeIDs(resumeIDs)
	if len(ids) == 0 {
		return BulkExportRecord{}, ResumeNotFoundError{ResumeID: ""}
	}

	if _, err := s.Subs.ValidateBulkExport(ctx, userID, len(ids)); err != nil {
		return BulkExportRecord{}, err
	}

	valid := 0
	for _, id := range ids {
		if _, err := s.loadOwnedResume(ctx, userID, id); err == nil {
			valid++
		}
	}
	if valid == 0 {
		return BulkExportRecord{}, ResumeNotFoundError{ResumeID: ids[0]}
	}

	now := s.now()
	rec := BulkExportRecord{
		ID:               uuid.NewString(),
		UserID:           userID,
		ResumeIDs:        ids,
		ValidResumeCount: valid,
		Format:           format,
		Status:           StatusProcessing,
		CreatedAt:        now,
		ExpiresAt:        now.Add(time.Duration(s.Cfg.BulkExpiryHours) * time.Hour),
	}
	if err := s.Store.CreateBulkExport(ctx, rec); err != nil {
		return BulkExportRecord{}, err
	}

	if err := s.Subs.IncrementUsage(ctx, userID); err != nil {
		telemetry.Warn("export.usage_increment_failed", map[string]any{"bulk_id": rec.ID, "error": err.Error()})
	}

	metrics.IncExportStarted()
	telemetry.Info("export.bulk_created", map[string]any{
		"bulk_id": rec.ID,
		"user_id": userID,
		"format":  format,
		"total":   len(ids),
		"valid":   valid,
	})
	return rec, nil
}

// ProcessBulk renders every exportable resume into a zip. Individual resume
// failures are tolerated; the job fails only when no member could be
// rendered. Progress is reported as the percentage of resumes attempted.
func (s *Service) ProcessBulk(ctx context.Context, bulkID string) error {
	rec, err := s.Store.GetBulkExport(ctx, bulkID)
	if err != nil {
		return err
	}
	if rec.Status != StatusProcessing {
		return nil
	}

	renderer, ok := s.Renderers[rec.Format]
	if !ok {
		return s.failBulk(ctx, rec, InvalidFormatError{Format: rec.Format})
	}

	tmp, err := s.Files.CreateTemp("zip")
	if err != nil {
		return s.failBulk(ctx, rec, FileSystemError{Op: "create temp", Err: err})
	}
	defer tmp.Cleanup()

	zipFile, err := os.Create(tmp.Path)
	if err != nil {
		return s.failBulk(ctx, rec, FileSystemError{Op: "create zip", Err: err})
	}
	writer := zip.NewWriter(zipFile)

	memberNames := make(map[string]int)
	rendered := 0
	for i, resumeID := range rec.ResumeIDs {
		if err := s.addBulkMember(ctx, rec, resumeID, renderer, writer, memberNames); err != nil {
			telemetry.Warn("export.bulk_member_failed", map[string]any{
				"bulk_id":   rec.ID,
				"resume_id": resumeID,
				"error":     err.Error(),
			})
		} else {
			rendered++
		}
		progress := (i + 1) * 100 / len(rec.ResumeIDs)
		if progress > 99 {
			progress = 99
		}
		if err := s.Store.UpdateBulkProgress(ctx, rec.ID, progress); err != nil {
			telemetry.Warn("export.bulk_progress_failed", map[string]any{"bulk_id": rec.ID, "error": err.Error()})
		}
	}

	if err := writer.Close(); err != nil {
		zipFile.Close()
		return s.failBulk(ctx, rec, FileSystemError{Op: "finalize zip", Err: err})
	}
	if err := zipFile.Close(); err != nil {
		return s.failBulk(ctx, rec, FileSystemError{Op: "close zip", Err: err})
	}

	if rendered == 0 {
		return s.failBulk(ctx, rec, errors.New("no resumes could be exported"))
	}

	maxBytes := int64(s.Cfg.MaxBulkExportSizeMB) * 1024 * 1024
	size, err := s.Files.ValidateSize(tmp.Path, maxBytes)
	if err != nil {
		if errors.Is(err, files.ErrTooLarge) {
			return s.failBulk(ctx, rec, FileSizeError{SizeBytes: size, MaxBytes: maxBytes})
		}
		return s.failBulk(ctx, rec, FileSystemError{Op: "stat zip", Err: err})
	}

	finalPath := s.Files.BulkExportPath(rec.UserID)
	if err := s.Files.Move(tmp.Path, finalPath); err != nil {
		return s.failBulk(ctx, rec, FileSystemError{Op: "move zip", Err: err})
	}
	tmp.Release()

	if err := s.Store.MarkBulkCompleted(ctx, rec.ID, finalPath, size, rendered, s.now()); err != nil {
		return err
	}
	metrics.IncExportCompleted()
	telemetry.Info("export.bulk_completed", map[string]any{
		"bulk_id":  rec.ID,
		"rendered": rendered,
		"total":    len(rec.ResumeIDs),
		"size":     size,
	})
	return nil
}

func (s *Service) addBulkMember(ctx context.Context, rec BulkExportRecord, resumeID string, renderer render.Renderer, writer *zip.Writer, memberNames map[string]int) error {
	resume, err := s.loadOwnedResume(ctx, rec.UserID, resumeID)
	if err != nil {
		return err
	}

	content := resume.Content
	if len(resume.AIContent) > 0 {
		content = resume.AIContent
	}
	doc, err := render.ParseDocument(resume.Title, content)
	if err != nil {
		return err
	}

	out, err := renderer.Render(ctx, doc)
	if err != nil {
		return err
	}

	name := uniqueMemberName(memberNames, util.SanitizeTitle(resume.Title), rec.Format)
	member, err := writer.Create(name)
	if err != nil {
		return err
	}
	_, err = member.Write(out)
	return err
}

// uniqueMemberName deduplicates zip entries for resumes sharing a title.
func uniqueMemberName(seen map[string]int, stem, format string) string {
	seen[stem]++
	if seen[stem] == 1 {
		return stem + "." + format
	}
	return fmt.Sprintf("%s_%d.%s", stem, seen[stem], format)
}

func (s *Service) failBulk(ctx context.Context, rec BulkExportRecord, cause error) error {
	msg := "bulk export failed"
	if cause != nil {
		msg = cause.Error()
	}
	if err := s.Store.MarkBulkFailed(ctx, rec.ID, msg, s.now()); err != nil {
		telemetry.Warn("export.bulk_mark_failed_error", map[string]any{"bulk_id": rec.ID, "error": err.Error()})
	}
	metrics.IncExportFailed()
	telemetry.Info("export.bulk_failed", map[string]any{"bulk_id": rec.ID, "error": msg})
	return cause
}

// BulkStatus returns a bulk export the user owns.
func (s *Service) BulkStatus(ctx context.Context, userID, bulkID string) (BulkExportRecord, error) {
	rec, err := s.Store.GetBulkExport(ctx, bulkID)
	if err != nil {
		return BulkExportRecord{}, err
	}
	if rec.UserID != userID {
		return BulkExportRecord{}, UnauthorizedError{ExportID: bulkID}
	}
	return rec, nil
}

// BulkDownload validates the zip is servable and bumps the counter. As with
// single downloads, expiry is checked before status.
func (s *Service) BulkDownload(ctx context.Context, userID, bulkID string) (BulkExportRecord, error) {
	rec, err := s.BulkStatus(ctx, userID, bulkID)
	if err != nil {
		return BulkExportRecord{}, err
	}
	if rec.IsExpired(s.now()) {
		return BulkExportRecord{}, ExpiredError{ExportID: bulkID, ExpiredAt: rec.ExpiresAt}
	}
	switch rec.Status {
	case StatusProcessing:
		return BulkExportRecord{}, StillProcessingError{ExportID: bulkID}
	case StatusFailed:
		return BulkExportRecord{}, FailedError{ExportID: bulkID, Message: rec.ErrorMessage}
	}
	if !s.Files.Exists(rec.ZipPath) {
		return BulkExportRecord{}, NotFoundError{ExportID: bulkID}
	}

	if err := s.Store.IncrementBulkDownload(ctx, bulkID, s.now()); err != nil {
		telemetry.Warn("export.download_count_failed", map[string]any{"bulk_id": bulkID, "error": err.Error()})
	}
	metrics.IncExportDownloaded()
	return rec, nil
}

// DeleteBulk removes a bulk export the user owns.
func (s *Service) DeleteBulk(ctx context.Context, userID, bulkID string) (bool, error) {
	rec, err := s.BulkStatus(ctx, userID, bulkID)
	if err != nil {
		var notFound NotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	if rec.ZipPath != "" {
		if _, err := s.Files.Delete(rec.ZipPath); err != nil {
			return false, FileSystemError{Op: "delete zip", Err: err}
		}
	}
	return s.Store.DeleteBulkExport(ctx, bulkID)
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
