package cleanup

import (
	"context"
	"errors"
	"sync"
	"time"

	"resumegen-backend/internal/exports"
	"resumegen-backend/internal/exports/files"
	"resumegen-backend/internal/shared/config"
	"resumegen-backend/internal/shared/metrics"
	"resumegen-backend/internal/shared/telemetry"
)

// Sweep cadences. Expired artifacts go quickly, failed records linger a bit
// for debugging, orphan and usage sweeps are housekeeping.
const (
	expiredInterval    = time.Hour
	failedInterval     = 6 * time.Hour
	orphanInterval     = 24 * time.Hour
	staleUsageInterval = 7 * 24 * time.Hour

	// Orphaned files younger than this are left alone; they may belong to
	// an export whose completion write has not landed yet.
	orphanGrace = 48 * time.Hour

	// Temp files are scratch space; anything this old is a leak.
	tempFileMaxAge = 24 * time.Hour

	// Usage counters older than a year have no reporting value.
	staleUsageAge = 365 * 24 * time.Hour
)

// Service runs the cleanup sweeps on their cadences and on demand.
type Service struct {
	Store exports.Store
	Files *files.Manager
	Cfg   config.ExportConfig
	Now   func() time.Time

	mu      sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
}

// NewService constructs a cleanup Service.
func NewService(store exports.Store, mgr *files.Manager, cfg config.ExportConfig) *Service {
	return &Service{Store: store, Files: mgr, Cfg: cfg}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) batchSize() int {
	if s.Cfg.CleanupBatchSize > 0 {
		return s.Cfg.CleanupBatchSize
	}
	return 100
}

// Start launches the background scheduler. It is a no-op when auto cleanup
// is disabled or the scheduler is already running.
func (s *Service) Start() {
	if !s.Cfg.AutoCleanupEnabled {
		telemetry.Info("cleanup.disabled", nil)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.run(s.stop, s.stopped)
	telemetry.Info("cleanup.started", nil)
}

// Stop shuts the scheduler down and waits for the current sweep to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	stop, stopped := s.stop, s.stopped
	s.stop, s.stopped = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-stopped
	telemetry.Info("cleanup.stopped", nil)
}

func (s *Service) run(stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	expired := time.NewTicker(expiredInterval)
	failed := time.NewTicker(failedInterval)
	orphans := time.NewTicker(orphanInterval)
	staleUsage := time.NewTicker(staleUsageInterval)
	defer expired.Stop()
	defer failed.Stop()
	defer orphans.Stop()
	defer staleUsage.Stop()

	for {
		select {
		case <-stop:
			return
		case <-expired.C:
			s.logSweep("expired", s.SweepExpired)
		case <-failed.C:
			s.logSweep("failed", s.SweepFailed)
		case <-orphans.C:
			s.logSweep("orphans", s.SweepOrphans)
		case <-staleUsage.C:
			s.logSweep("stale_usage", s.SweepStaleUsage)
		}
	}
}

func (s *Service) logSweep(name string, sweep func(context.Context) (int, error)) {
	deleted, err := sweep(context.Background())
	fields := map[string]any{"sweep": name, "deleted": deleted}
	if err != nil {
		fields["error"] = err.Error()
		telemetry.Warn("cleanup.sweep_error", fields)
		return
	}
	telemetry.Info("cleanup.sweep", fields)
}

// SweepExpired removes expired single and bulk exports in batches, files
// first, until a page comes back short.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	deleted := 0
	var freed int64
	batch := s.batchSize()

	for {
		recs, err := s.Store.ListExpiredExports(ctx, s.now(), batch)
		if err != nil {
			return deleted, err
		}
		paths := make([]string, 0, len(recs))
		for _, rec := range recs {
			paths = append(paths, rec.FilePath)
		}
		removed, bytes := s.Files.CleanupMany(paths)
		deleted += removed
		freed += bytes
		for _, rec := range recs {
			if _, err := s.Store.DeleteExport(ctx, rec.ID); err != nil {
				return deleted, err
			}
		}
		if len(recs) < batch {
			break
		}
	}

	for {
		recs, err := s.Store.ListExpiredBulkExports(ctx, s.now(), batch)
		if err != nil {
			return deleted, err
		}
		paths := make([]string, 0, len(recs))
		for _, rec := range recs {
			paths = append(paths, rec.ZipPath)
		}
		removed, bytes := s.Files.CleanupMany(paths)
		deleted += removed
		freed += bytes
		for _, rec := range recs {
			if _, err := s.Store.DeleteBulkExport(ctx, rec.ID); err != nil {
				return deleted, err
			}
		}
		if len(recs) < batch {
			break
		}
	}

	if deleted > 0 {
		telemetry.Info("cleanup.expired_sweep", map[string]any{"deleted": deleted, "bytes_freed": freed})
	}
	metrics.AddCleanupDeleted(deleted)
	return deleted, nil
}

// SweepFailed removes failed export records older than twice the expiry
// window, along with any partial artifacts they left behind.
func (s *Service) SweepFailed(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-2 * time.Duration(s.Cfg.ExportExpiryHours) * time.Hour)
	deleted := 0
	batch := s.batchSize()

	for {
		recs, err := s.Store.ListFailedExportsBefore(ctx, cutoff, batch)
		if err != nil {
			return deleted, err
		}
		for _, rec := range recs {
			if rec.FilePath != "" {
				if removed, err := s.Files.Delete(rec.FilePath); err == nil && removed {
					deleted++
				}
			}
			if _, err := s.Store.DeleteExport(ctx, rec.ID); err != nil {
				return deleted, err
			}
		}
		if len(recs) < batch {
			break
		}
	}

	metrics.AddCleanupDeleted(deleted)
	return deleted, nil
}

// SweepOrphans diffs the artifact directory against the database and removes
// files nothing references, plus stale temp files. Recent files are skipped;
// they may belong to an in-flight export.
func (s *Service) SweepOrphans(ctx context.Context) (int, error) {
	known, err := s.Store.AllFilePaths(ctx)
	if err != nil {
		return 0, err
	}
	artifacts, err := s.Files.ListArtifacts()
	if err != nil {
		return 0, err
	}

	now := s.now()
	deleted := 0
	for _, artifact := range artifacts {
		if _, ok := known[artifact.Path]; ok {
			continue
		}
		if now.Sub(artifact.ModTime) < orphanGrace {
			continue
		}
		if removed, err := s.Files.Delete(artifact.Path); err == nil && removed {
			deleted++
		}
	}

	tempFiles, err := s.Files.ListTempFiles()
	if err != nil {
		return deleted, err
	}
	for _, tmp := range tempFiles {
		if now.Sub(tmp.ModTime) < tempFileMaxAge {
			continue
		}
		if removed, err := s.Files.Delete(tmp.Path); err == nil && removed {
			deleted++
		}
	}

	metrics.AddCleanupDeleted(deleted)
	return deleted, nil
}

// SweepStaleUsage drops usage counters older than a year.
func (s *Service) SweepStaleUsage(ctx context.Context) (int, error) {
	cutoff := exports.MonthStart(s.now().Add(-staleUsageAge))
	return s.Store.DeleteUsageBefore(ctx, cutoff)
}

// RunOnce runs every sweep once and reports per-sweep deletion counts. All
// sweeps run even when one fails; errors are joined.
func (s *Service) RunOnce(ctx context.Context) (map[string]int, error) {
	report := make(map[string]int, 4)
	var errs []error

	sweeps := []struct {
		name  string
		sweep func(context.Context) (int, error)
	}{
		{"expired", s.SweepExpired},
		{"failed", s.SweepFailed},
		{"orphans", s.SweepOrphans},
		{"stale_usage", s.SweepStaleUsage},
	}
	for _, entry := range sweeps {
		deleted, err := entry.sweep(ctx)
		report[entry.name] = deleted
		if err != nil {
			errs = append(errs, err)
		}
	}
	return report, errors.Join(errs...)
}

// PurgeUser removes every export record, artifact and usage counter a user
// owns. Used when an account is deleted.
func (s *Service) PurgeUser(ctx context.Context, userID string) error {
	if _, err := s.Store.DeleteExportsByUser(ctx, userID); err != nil {
		return err
	}
	if _, err := s.Store.DeleteBulkExportsByUser(ctx, userID); err != nil {
		return err
	}
	if err := s.Store.DeleteUsageByUser(ctx, userID); err != nil {
		return err
	}
	if err := s.Files.RemoveUserDirectory(userID); err != nil {
		return err
	}
	telemetry.Info("cleanup.user_purged", map[string]any{"user_id": userID})
	return nil
}
