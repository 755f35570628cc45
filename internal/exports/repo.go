package exports

import (
	"context"
	"time"
)

// Store persists export records, bulk export records and usage counters.
// GetExport and GetBulkExport do not filter by owner; the service layer is
// responsible for ownership checks so it can distinguish "missing" from
// "not yours".
type Store interface {
	CreateExport(ctx context.Context, rec ExportRecord) error
	GetExport(ctx context.Context, exportID string) (ExportRecord, error)
	MarkExportCompleted(ctx context.Context, exportID, filePath string, fileSize int64, completedAt time.Time) error
	MarkExportFailed(ctx context.Context, exportID, errorMessage string, failedAt time.Time) error
	IncrementDownload(ctx context.Context, exportID string, at time.Time) error
	ListExportsByUser(ctx context.Context, userID string, limit, offset int) ([]ExportRecord, error)
	CountCompletedSince(ctx context.Context, userID string, since time.Time) (int, error)
	CountExportsByStatus(ctx context.Context) (map[string]int, error)
	ListExpiredExports(ctx context.Context, now time.Time, limit int) ([]ExportRecord, error)
	ListFailedExportsBefore(ctx context.Context, cutoff time.Time, limit int) ([]ExportRecord, error)
	DeleteExport(ctx context.Context, exportID string) (bool, error)
	DeleteExportsByUser(ctx context.Context, userID string) (int, error)

	CreateBulkExport(ctx context.Context, rec BulkExportRecord) error
	GetBulkExport(ctx context.Context, bulkID string) (BulkExportRecord, error)
	UpdateBulkProgress(ctx context.Context, bulkID string, progress int) error
	MarkBulkCompleted(ctx context.Context, bulkID, zipPath string, fileSize int64, validCount int, completedAt time.Time) error
	MarkBulkFailed(ctx context.Context, bulkID, errorMessage string, failedAt time.Time) error
	IncrementBulkDownload(ctx context.Context, bulkID string, at time.Time) error
	ListExpiredBulkExports(ctx context.Context, now time.Time, limit int) ([]BulkExportRecord, error)
	DeleteBulkExport(ctx context.Context, bulkID string) (bool, error)
	DeleteBulkExportsByUser(ctx context.Context, userID string) (int, error)

	// AllFilePaths returns every artifact path the database knows about,
	// single and bulk. The orphan sweep diffs disk contents against it.
	AllFilePaths(ctx context.Context) (map[string]struct{}, error)

	IncrementUsage(ctx context.Context, userID string, month time.Time, at time.Time) error
	GetUsage(ctx context.Context, userID string, month time.Time) (UsageRecord, error)
	DeleteUsageBefore(ctx context.Context, cutoff time.Time) (int, error)
	DeleteUsageByUser(ctx context.Context, userID string) error
}
