package resumes

import (
	"encoding/json"
	"time"
)

// Resume is a stored resume document. Content holds the user-entered
// structured sections; AIContent holds the generated enhancement, if any.
// DeletedAt is a tombstone: soft-deleted resumes stay queryable for export
// validation but are excluded from listings.
type Resume struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	Title      string          `json:"title"`
	Content    json.RawMessage `json:"content"`
	AIContent  json.RawMessage `json:"aiContent,omitempty"`
	ExportTier string          `json:"exportTier"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	DeletedAt  *time.Time      `json:"deletedAt,omitempty"`
}

// IsDeleted reports whether the resume carries a tombstone.
func (r Resume) IsDeleted() bool {
	return r.DeletedAt != nil
}
