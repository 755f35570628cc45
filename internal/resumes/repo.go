package resumes

import "context"

// Repo defines persistence operations for resumes.
//
// GetByID returns soft-deleted rows as well; callers that must reject
// tombstones check IsDeleted themselves (the export path distinguishes
// "deleted" from "missing").
type Repo interface {
	Create(ctx context.Context, resume Resume) error
	GetByID(ctx context.Context, resumeID string) (Resume, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Resume, error)
	Update(ctx context.Context, resume Resume) error
	SoftDelete(ctx context.Context, resumeID string) error
	SetExportTier(ctx context.Context, resumeID, tier string) error
}
