package resumes

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new resume.
func (r *PGRepo) Create(ctx context.Context, resume Resume) error {
	const query = `
INSERT INTO resumes (
    id,
    user_id,
    title,
    content,
    ai_content,
    export_tier,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	tier := resume.ExportTier
	if tier == "" {
		tier = "free"
	}
	var aiContent any
	if len(resume.AIContent) > 0 {
		aiContent = []byte(resume.AIContent)
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		resume.ID,
		resume.UserID,
		resume.Title,
		[]byte(resume.Content),
		aiContent,
		tier,
		resume.CreatedAt,
		resume.UpdatedAt,
	)
	return err
}

// GetByID fetches a resume by ID, including soft-deleted rows.
func (r *PGRepo) GetByID(ctx context.Context, resumeID string) (Resume, error) {
	const query = `
SELECT id, user_id, title, content, ai_content, export_tier, created_at, updated_at, deleted_at
FROM resumes
WHERE id = $1
LIMIT 1`
	var resume Resume
	var aiContent []byte
	var deletedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, resumeID).Scan(
		&resume.ID,
		&resume.UserID,
		&resume.Title,
		&resume.Content,
		&aiContent,
		&resume.ExportTier,
		&resume.CreatedAt,
		&resume.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Resume{}, ErrNotFound
		}
		return Resume{}, err
	}
	if len(aiContent) > 0 {
		resume.AIContent = aiContent
	}
	if deletedAt.Valid {
		resume.DeletedAt = &deletedAt.Time
	}
	return resume, nil
}

// ListByUser lists live resumes ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Resume, error) {
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
SELECT id, user_id, title, content, ai_content, export_tier, created_at, updated_at
FROM resumes
WHERE user_id = $1 AND deleted_at IS NULL
ORDER BY updated_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Resume
	for rows.Next() {
		var resume Resume
		var aiContent []byte
		if err := rows.Scan(
			&resume.ID,
			&resume.UserID,
			&resume.Title,
			&resume.Content,
			&aiContent,
			&resume.ExportTier,
			&resume.CreatedAt,
			&resume.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if len(aiContent) > 0 {
			resume.AIContent = aiContent
		}
		out = append(out, resume)
	}
	return out, rows.Err()
}

// Update rewrites the mutable fields of a live resume.
func (r *PGRepo) Update(ctx context.Context, resume Resume) error {
	const query = `
UPDATE resumes
SET title = $1, content = $2, ai_content = $3, updated_at = $4
WHERE id = $5 AND deleted_at IS NULL`

	var aiContent any
	if len(resume.AIContent) > 0 {
		aiContent = []byte(resume.AIContent)
	}

	res, err := r.DB.ExecContext(ctx, query, resume.Title, []byte(resume.Content), aiContent, resume.UpdatedAt, resume.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete tombstones a resume. Already-deleted rows are left untouched.
func (r *PGRepo) SoftDelete(ctx context.Context, resumeID string) error {
	const query = `
UPDATE resumes
SET deleted_at = NOW()
WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.DB.ExecContext(ctx, query, resumeID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetExportTier records the subscription tier a resume was last exported under.
func (r *PGRepo) SetExportTier(ctx context.Context, resumeID, tier string) error {
	const query = `
UPDATE resumes
SET export_tier = $1
WHERE id = $2`
	_, err := r.DB.ExecContext(ctx, query, tier, resumeID)
	return err
}

var _ Repo = (*PGRepo)(nil)
