package exports

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGStore implements Store using Postgres.
type PGStore struct {
	DB *sql.DB
}

const exportColumns = `id, user_id, resume_id, resume_title, format, filename, file_path, status, subscription_plan, created_at, updated_at, completed_at, expires_at, download_count, last_downloaded_at, file_size, error_message`

// CreateExport inserts a new export record.
func (s *PGStore) CreateExport(ctx context.Context, rec ExportRecord) error {
	const query = `
INSERT INTO exports (
    id,
    user_id,
    resume_id,
    resume_title,
    format,
    filename,
    file_path,
    status,
    subscription_plan,
    created_at,
    expires_at,
    download_count
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0)`

	_, err := s.DB.ExecContext(
		ctx,
		query,
		rec.ID,
		rec.UserID,
		rec.ResumeID,
		rec.ResumeTitle,
		rec.Format,
		rec.Filename,
		rec.FilePath,
		rec.Status,
		rec.SubscriptionPlan,
		rec.CreatedAt,
		rec.ExpiresAt,
	)
	return err
}

// GetExport fetches an export record by ID.
func (s *PGStore) GetExport(ctx context.Context, exportID string) (ExportRecord, error) {
	const query = `
SELECT ` + exportColumns + `
FROM exports
WHERE id = $1
LIMIT 1`
	rec, err := scanExport(s.DB.QueryRowContext(ctx, query, exportID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ExportRecord{}, NotFoundError{ExportID: exportID}
		}
		return ExportRecord{}, err
	}
	return rec, nil
}

// MarkExportCompleted transitions an export to completed with its final
// artifact path and size.
func (s *PGStore) MarkExportCompleted(ctx context.Context, exportID, filePath string, fileSize int64, completedAt time.Time) error {
	const query = `
UPDATE exports
SET status = $1, file_path = $2, file_size = $3, completed_at = $4, updated_at = $4, error_message = NULL
WHERE id = $5`
	_, err := s.DB.ExecContext(ctx, query, StatusCompleted, filePath, fileSize, completedAt, exportID)
	return err
}

// MarkExportFailed transitions an export to failed with the final error.
func (s *PGStore) MarkExportFailed(ctx context.Context, exportID, errorMessage string, failedAt time.Time) error {
	const query = `
UPDATE exports
SET status = $1, error_message = $2, updated_at = $3
WHERE id = $4`
	_, err := s.DB.ExecContext(ctx, query, StatusFailed, errorMessage, failedAt, exportID)
	return err
}

// IncrementDownload bumps the download counter.
func (s *PGStore) IncrementDownload(ctx context.Context, exportID string, at time.Time) error {
	const query = `
UPDATE exports
SET download_count = download_count + 1, last_downloaded_at = $1
WHERE id = $2`
	_, err := s.DB.ExecContext(ctx, query, at, exportID)
	return err
}

// ListExportsByUser lists export records newest-first.
func (s *PGStore) ListExportsByUser(ctx context.Context, userID string, limit, offset int) ([]ExportRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT ` + exportColumns + `
FROM exports
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := s.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExportRecord
	for rows.Next() {
		rec, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountCompletedSince counts completed exports created after since.
func (s *PGStore) CountCompletedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	const query = `
SELECT COUNT(*)
FROM exports
WHERE user_id = $1 AND status = $2 AND created_at >= $3`
	var count int
	err := s.DB.QueryRowContext(ctx, query, userID, StatusCompleted, since).Scan(&count)
	return count, err
}

// CountExportsByStatus returns export counts grouped by lifecycle state.
func (s *PGStore) CountExportsByStatus(ctx context.Context) (map[string]int, error) {
	const query = `
SELECT status, COUNT(*)
FROM exports
GROUP BY status`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		out[status] = count
	}
	return out, rows.Err()
}

// ListExpiredExports returns a batch of expired exports, oldest expiry first.
func (s *PGStore) ListExpiredExports(ctx context.Context, now time.Time, limit int) ([]ExportRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
SELECT ` + exportColumns + `
FROM exports
WHERE expires_at < $1
ORDER BY expires_at ASC
LIMIT $2`

	rows, err := s.DB.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExportRecord
	for rows.Next() {
		rec, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListFailedExportsBefore returns failed exports last touched before cutoff.
func (s *PGStore) ListFailedExportsBefore(ctx context.Context, cutoff time.Time, limit int) ([]ExportRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
SELECT ` + exportColumns + `
FROM exports
WHERE status = $1 AND COALESCE(updated_at, created_at) < $2
ORDER BY created_at ASC
LIMIT $3`

	rows, err := s.DB.QueryContext(ctx, query, StatusFailed, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExportRecord
	for rows.Next() {
		rec, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteExport removes an export record and reports whether a row was
// deleted.
func (s *PGStore) DeleteExport(ctx context.Context, exportID string) (bool, error) {
	const query = `DELETE FROM exports WHERE id = $1`
	res, err := s.DB.ExecContext(ctx, query, exportID)
	if err != nil {
		return false, err
	}
	deleted, _ := res.RowsAffected()
	return deleted > 0, nil
}

// DeleteExportsByUser removes all export records for a user.
func (s *PGStore) DeleteExportsByUser(ctx context.Context, userID string) (int, error) {
	const query = `DELETE FROM exports WHERE user_id = $1`
	res, err := s.DB.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	deleted, _ := res.RowsAffected()
	return int(deleted), nil
}

const bulkColumns = `id, user_id, resume_ids, valid_resume_count, format, zip_path, status, progress, created_at, completed_at, expires_at, download_count, last_downloaded_at, file_size, error_message`

// CreateBulkExport inserts a new bulk export record.
func (s *PGStore) CreateBulkExport(ctx context.Context, rec BulkExportRecord) error {
	const query = `
INSERT INTO bulk_exports (
    id,
    user_id,
    resume_ids,
    valid_resume_count,
    format,
    zip_path,
    status,
    progress,
    created_at,
    expires_at,
    download_count
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0)`

	ids, err := json.Marshal(rec.ResumeIDs)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(
		ctx,
		query,
		rec.ID,
		rec.UserID,
		ids,
		rec.ValidResumeCount,
		rec.Format,
		rec.ZipPath,
		rec.Status,
		rec.Progress,
		rec.CreatedAt,
		rec.ExpiresAt,
	)
	return err
}

// GetBulkExport fetches a bulk export record by ID.
func (s *PGStore) GetBulkExport(ctx context.Context, bulkID string) (BulkExportRecord, error) {
	const query = `
SELECT ` + bulkColumns + `
FROM bulk_exports
WHERE id = $1
LIMIT 1`
	rec, err := scanBulkExport(s.DB.QueryRowContext(ctx, query, bulkID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BulkExportRecord{}, NotFoundError{ExportID: bulkID}
		}
		return BulkExportRecord{}, err
	}
	return rec, nil
}

// UpdateBulkProgress stores the completion percentage of a running bulk job.
func (s *PGStore) UpdateBulkProgress(ctx context.Context, bulkID string, progress int) error {
	const query = `
UPDATE bulk_exports
SET progress = $1
WHERE id = $2`
	_, err := s.DB.ExecContext(ctx, query, progress, bulkID)
	return err
}

// MarkBulkCompleted transitions a bulk export to completed.
func (s *PGStore) MarkBulkCompleted(ctx context.Context, bulkID, zipPath string, fileSize int64, validCount int, completedAt time.Time) error {
	const query = `
UPDATE bulk_exports
SET status = $1, zip_path = $2, file_size = $3, valid_resume_count = $4, progress = 100, completed_at = $5, error_message = NULL
WHERE id = $6`
	_, err := s.DB.ExecContext(ctx, query, StatusCompleted, zipPath, fileSize, validCount, completedAt, bulkID)
	return err
}

// MarkBulkFailed transitions a bulk export to failed.
func (s *PGStore) MarkBulkFailed(ctx context.Context, bulkID, errorMessage string, failedAt time.Time) error {
	const query = `
UPDATE bulk_exports
SET status = $1, error_message = $2, completed_at = $3
WHERE id = $4`
	_, err := s.DB.ExecContext(ctx, query, StatusFailed, errorMessage, failedAt, bulkID)
	return err
}

// IncrementBulkDownload bumps the download counter.
func (s *PGStore) IncrementBulkDownload(ctx context.Context, bulkID string, at time.Time) error {
	const query = `
UPDATE bulk_exports
SET download_count = download_count + 1, last_downloaded_at = $1
WHERE id = $2`
	_, err := s.DB.ExecContext(ctx, query, at, bulkID)
	return err
}

// ListExpiredBulkExports returns a batch of expired bulk exports.
func (s *PGStore) ListExpiredBulkExports(ctx context.Context, now time.Time, limit int) ([]BulkExportRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
SELECT ` + bulkColumns + `
FROM bulk_exports
WHERE expires_at < $1
ORDER BY expires_at ASC
LIMIT $2`

	rows, err := s.DB.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BulkExportRecord
	for rows.Next() {
		rec, err := scanBulkExport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteBulkExport removes a bulk export record.
func (s *PGStore) DeleteBulkExport(ctx context.Context, bulkID string) (bool, error) {
	const query = `DELETE FROM bulk_exports WHERE id = $1`
	res, err := s.DB.ExecContext(ctx, query, bulkID)
	if err != nil {
		return false, err
	}
	deleted, _ := res.RowsAffected()
	return deleted > 0, nil
}

// DeleteBulkExportsByUser removes all bulk export records for a user.
func (s *PGStore) DeleteBulkExportsByUser(ctx context.Context, userID string) (int, error) {
	const query = `DELETE FROM bulk_exports WHERE user_id = $1`
	res, err := s.DB.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	deleted, _ := res.RowsAffected()
	return int(deleted), nil
}

// AllFilePaths returns every artifact path known to the database.
func (s *PGStore) AllFilePaths(ctx context.Context) (map[string]struct{}, error) {
	const query = `
SELECT file_path FROM exports WHERE file_path <> ''
UNION
SELECT zip_path FROM bulk_exports WHERE zip_path <> ''`

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		out[path] = struct{}{}
	}
	return out, rows.Err()
}

// IncrementUsage atomically bumps the calendar-month counter, creating the
// row on first export of the month.
func (s *PGStore) IncrementUsage(ctx context.Context, userID string, month time.Time, at time.Time) error {
	const query = `
INSERT INTO export_usage (user_id, month, count, first_export, last_export)
VALUES ($1, $2, 1, $3, $3)
ON CONFLICT (user_id, month)
DO UPDATE SET count = export_usage.count + 1, last_export = $3`
	_, err := s.DB.ExecContext(ctx, query, userID, month, at)
	return err
}

// GetUsage returns the usage counter for one user-month. Missing rows come
// back as a zero counter rather than an error.
func (s *PGStore) GetUsage(ctx context.Context, userID string, month time.Time) (UsageRecord, error) {
	const query = `
SELECT user_id, month, count, first_export, last_export
FROM export_usage
WHERE user_id = $1 AND month = $2
LIMIT 1`
	var rec UsageRecord
	var first, last sql.NullTime
	err := s.DB.QueryRowContext(ctx, query, userID, month).Scan(&rec.UserID, &rec.Month, &rec.Count, &first, &last)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UsageRecord{UserID: userID, Month: month}, nil
		}
		return UsageRecord{}, err
	}
	if first.Valid {
		rec.FirstExport = &first.Time
	}
	if last.Valid {
		rec.LastExport = &last.Time
	}
	return rec, nil
}

// DeleteUsageBefore removes usage rows for months older than cutoff.
func (s *PGStore) DeleteUsageBefore(ctx context.Context, cutoff time.Time) (int, error) {
	const query = `DELETE FROM export_usage WHERE month < $1`
	res, err := s.DB.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	deleted, _ := res.RowsAffected()
	return int(deleted), nil
}

// DeleteUsageByUser removes all usage rows for a user.
func (s *PGStore) DeleteUsageByUser(ctx context.Context, userID string) error {
	const query = `DELETE FROM export_usage WHERE user_id = $1`
	_, err := s.DB.ExecContext(ctx, query, userID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExport(row rowScanner) (ExportRecord, error) {
	var rec ExportRecord
	var updatedAt, completedAt, lastDownloaded sql.NullTime
	var fileSize sql.NullInt64
	var errorMessage sql.NullString
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.ResumeID,
		&rec.ResumeTitle,
		&rec.Format,
		&rec.Filename,
		&rec.FilePath,
		&rec.Status,
		&rec.SubscriptionPlan,
		&rec.CreatedAt,
		&updatedAt,
		&completedAt,
		&rec.ExpiresAt,
		&rec.DownloadCount,
		&lastDownloaded,
		&fileSize,
		&errorMessage,
	)
	if err != nil {
		return ExportRecord{}, err
	}
	if updatedAt.Valid {
		rec.UpdatedAt = &updatedAt.Time
	}
	if completedAt.Valid {
		rec.CompletedAt = &completedAt.Time
	}
	if lastDownloaded.Valid {
		rec.LastDownloadedAt = &lastDownloaded.Time
	}
	if fileSize.Valid {
		rec.FileSize = fileSize.Int64
	}
	if errorMessage.Valid {
		rec.ErrorMessage = errorMessage.String
	}
	return rec, nil
}

func scanBulkExport(row rowScanner) (BulkExportRecord, error) {
	var rec BulkExportRecord
	var resumeIDs []byte
	var completedAt, lastDownloaded sql.NullTime
	var fileSize sql.NullInt64
	var errorMessage sql.NullString
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&resumeIDs,
		&rec.ValidResumeCount,
		&rec.Format,
		&rec.ZipPath,
		&rec.Status,
		&rec.Progress,
		&rec.CreatedAt,
		&completedAt,
		&rec.ExpiresAt,
		&rec.DownloadCount,
		&lastDownloaded,
		&fileSize,
		&errorMessage,
	)
	if err != nil {
		return BulkExportRecord{}, err
	}
	if len(resumeIDs) > 0 {
		if err := json.Unmarshal(resumeIDs, &rec.ResumeIDs); err != nil {
			return BulkExportRecord{}, err
		}
	}
	if completedAt.Valid {
		rec.CompletedAt = &completedAt.Time
	}
	if lastDownloaded.Valid {
		rec.LastDownloadedAt = &lastDownloaded.Time
	}
	if fileSize.Valid {
		rec.FileSize = fileSize.Int64
	}
	if errorMessage.Valid {
		rec.ErrorMessage = errorMessage.String
	}
	return rec, nil
}

var _ Store = (*PGStore)(nil)
