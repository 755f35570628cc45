package exports

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu      sync.RWMutex
	exports map[string]ExportRecord
	bulk    map[string]BulkExportRecord
	usage   map[string]UsageRecord // userID|month -> record
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		exports: make(map[string]ExportRecord),
		bulk:    make(map[string]BulkExportRecord),
		usage:   make(map[string]UsageRecord),
	}
}

func usageKey(userID string, month time.Time) string {
	return userID + "|" + month.UTC().Format("2006-01")
}

// CreateExport stores an export record.
func (s *MemoryStore) CreateExport(ctx context.Context, rec ExportRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exports[rec.ID] = rec
	return nil
}

// GetExport returns an export record.
func (s *MemoryStore) GetExport(ctx context.Context, exportID string) (ExportRecord, error) {
	if err := ctx.Err(); err != nil {
		return ExportRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.exports[exportID]
	if !ok {
		return ExportRecord{}, NotFoundError{ExportID: exportID}
	}
	return rec, nil
}

// MarkExportCompleted transitions an export to completed.
func (s *MemoryStore) MarkExportCompleted(ctx context.Context, exportID, filePath string, fileSize int64, completedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.exports[exportID]
	if !ok {
		return NotFoundError{ExportID: exportID}
	}
	rec.Status = StatusCompleted
	rec.FilePath = filePath
	rec.FileSize = fileSize
	rec.CompletedAt = &completedAt
	rec.UpdatedAt = &completedAt
	rec.ErrorMessage = ""
	s.exports[exportID] = rec
	return nil
}

// MarkExportFailed transitions an export to failed.
func (s *MemoryStore) MarkExportFailed(ctx context.Context, exportID, errorMessage string, failedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.exports[exportID]
	if !ok {
		return NotFoundError{ExportID: exportID}
	}
	rec.Status = StatusFailed
	rec.ErrorMessage = errorMessage
	rec.UpdatedAt = &failedAt
	s.exports[exportID] = rec
	return nil
}

// IncrementDownload bumps the download counter.
func (s *MemoryStore) IncrementDownload(ctx context.Context, exportID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.exports[exportID]
	if !ok {
		return NotFoundError{ExportID: exportID}
	}
	rec.DownloadCount++
	rec.LastDownloadedAt = &at
	s.exports[exportID] = rec
	return nil
}

// ListExportsByUser returns a user's exports newest-first.
func (s *MemoryStore) ListExportsByUser(ctx context.Context, userID string, limit, offset int) ([]ExportRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	s.mu.RLock()
	var out []ExportRecord
	for _, rec := range s.exports {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if offset >= len(out) {
		return []ExportRecord{}, nil
	}
	end := len(out)
	if offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

// CountCompletedSince counts completed exports created after since.
func (s *MemoryStore) CountCompletedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, rec := range s.exports {
		if rec.UserID == userID && rec.Status == StatusCompleted && !rec.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// CountExportsByStatus returns counts grouped by lifecycle state.
func (s *MemoryStore) CountExportsByStatus(ctx context.Context) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int)
	for _, rec := range s.exports {
		out[rec.Status]++
	}
	return out, nil
}

// ListExpiredExports returns a batch of expired exports.
func (s *MemoryStore) ListExpiredExports(ctx context.Context, now time.Time, limit int) ([]ExportRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	var out []ExportRecord
	for _, rec := range s.exports {
		if rec.IsExpired(now) {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListFailedExportsBefore returns failed exports last touched before cutoff.
func (s *MemoryStore) ListFailedExportsBefore(ctx context.Context, cutoff time.Time, limit int) ([]ExportRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	var out []ExportRecord
	for _, rec := range s.exports {
		if rec.Status != StatusFailed {
			continue
		}
		touched := rec.CreatedAt
		if rec.UpdatedAt != nil {
			touched = *rec.UpdatedAt
		}
		if touched.Before(cutoff) {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteExport removes an export record.
func (s *MemoryStore) DeleteExport(ctx context.Context, exportID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.exports[exportID]; !ok {
		return false, nil
	}
	delete(s.exports, exportID)
	return true, nil
}

// DeleteExportsByUser removes all export records for a user.
func (s *MemoryStore) DeleteExportsByUser(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, rec := range s.exports {
		if rec.UserID == userID {
			delete(s.exports, id)
			deleted++
		}
	}
	return deleted, nil
}

// CreateBulkExport stores a bulk export record.
func (s *MemoryStore) CreateBulkExport(ctx context.Context, rec BulkExportRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bulk[rec.ID] = rec
	return nil
}

// GetBulkExport returns a bulk export record.
func (s *MemoryStore) GetBulkExport(ctx context.Context, bulkID string) (BulkExportRecord, error) {
	if err := ctx.Err(); err != nil {
		return BulkExportRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.bulk[bulkID]
	if !ok {
		return BulkExportRecord{}, NotFoundError{ExportID: bulkID}
	}
	return rec, nil
}

// UpdateBulkProgress stores the completion percentage.
func (s *MemoryStore) UpdateBulkProgress(ctx context.Context, bulkID string, progress int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.bulk[bulkID]
	if !ok {
		return NotFoundError{ExportID: bulkID}
	}
	rec.Progress = progress
	s.bulk[bulkID] = rec
	return nil
}

// MarkBulkCompleted transitions a bulk export to completed.
func (s *MemoryStore) MarkBulkCompleted(ctx context.Context, bulkID, zipPath string, fileSize int64, validCount int, completedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.bulk[bulkID]
	if !ok {
		return NotFoundError{ExportID: bulkID}
	}
	rec.Status = StatusCompleted
	rec.ZipPath = zipPath
	rec.FileSize = fileSize
	rec.ValidResumeCount = validCount
	rec.Progress = 100
	rec.CompletedAt = &completedAt
	rec.ErrorMessage = ""
	s.bulk[bulkID] = rec
	return nil
}

// MarkBulkFailed transitions a bulk export to failed.
func (s *MemoryStore) MarkBulkFailed(ctx context.Context, bulkID, errorMessage string, failedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.bulk[bulkID]
	if !ok {
		return NotFoundError{ExportID: bulkID}
	}
	rec.Status = StatusFailed
	rec.ErrorMessage = errorMessage
	rec.CompletedAt = &failedAt
	s.bulk[bulkID] = rec
	return nil
}

// IncrementBulkDownload bumps the download counter.
func (s *MemoryStore) IncrementBulkDownload(ctx context.Context, bulkID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.bulk[bulkID]
	if !ok {
		return NotFoundError{ExportID: bulkID}
	}
	rec.DownloadCount++
	rec.LastDownloadedAt = &at
	s.bulk[bulkID] = rec
	return nil
}

// ListExpiredBulkExports returns a batch of expired bulk exports.
func (s *MemoryStore) ListExpiredBulkExports(ctx context.Context, now time.Time, limit int) ([]BulkExportRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	var out []BulkExportRecord
	for _, rec := range s.bulk {
		if rec.IsExpired(now) {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteBulkExport removes a bulk export record.
func (s *MemoryStore) DeleteBulkExport(ctx context.Context, bulkID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bulk[bulkID]; !ok {
		return false, nil
	}
	delete(s.bulk, bulkID)
	return true, nil
}

// DeleteBulkExportsByUser removes all bulk export records for a user.
func (s *MemoryStore) DeleteBulkExportsByUser(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, rec := range s.bulk {
		if rec.UserID == userID {
			delete(s.bulk, id)
			deleted++
		}
	}
	return deleted, nil
}

// AllFilePaths returns every artifact path known to the store.
func (s *MemoryStore) AllFilePaths(ctx context.Context) (map[string]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{})
	for _, rec := range s.exports {
		if rec.FilePath != "" {
			out[rec.FilePath] = struct{}{}
		}
	}
	for _, rec := range s.bulk {
		if rec.ZipPath != "" {
			out[rec.ZipPath] = struct{}{}
		}
	}
	return out, nil
}

// IncrementUsage bumps the calendar-month counter.
func (s *MemoryStore) IncrementUsage(ctx context.Context, userID string, month time.Time, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := usageKey(userID, month)
	rec, ok := s.usage[key]
	if !ok {
		rec = UsageRecord{UserID: userID, Month: month, FirstExport: &at}
	}
	rec.Count++
	rec.LastExport = &at
	s.usage[key] = rec
	return nil
}

// GetUsage returns the counter for one user-month, zero when absent.
func (s *MemoryStore) GetUsage(ctx context.Context, userID string, month time.Time) (UsageRecord, error) {
	if err := ctx.Err(); err != nil {
		return UsageRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.usage[usageKey(userID, month)]
	if !ok {
		return UsageRecord{UserID: userID, Month: month}, nil
	}
	return rec, nil
}

// DeleteUsageBefore removes usage rows older than cutoff.
func (s *MemoryStore) DeleteUsageBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key, rec := range s.usage {
		if rec.Month.Before(cutoff) {
			delete(s.usage, key)
			deleted++
		}
	}
	return deleted, nil
}

// DeleteUsageByUser removes all usage rows for a user.
func (s *MemoryStore) DeleteUsageByUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, rec := range s.usage {
		if rec.UserID == userID {
			delete(s.usage, key)
		}
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
