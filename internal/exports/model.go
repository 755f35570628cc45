package exports

import "time"

// Export formats.
const (
	FormatPDF  = "pdf"
	FormatDOCX = "docx"
)

// Artifact lifecycle states.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ValidFormat reports whether format names a supported export format.
func ValidFormat(format string) bool {
	return format == FormatPDF || format == FormatDOCX
}

// ExportRecord is one single-resume export artifact.
type ExportRecord struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	ResumeID         string     `json:"resumeId"`
	ResumeTitle      string     `json:"resumeTitle"`
	Format           string     `json:"format"`
	Filename         string     `json:"filename"`
	FilePath         string     `json:"-"`
	Status           string     `json:"status"`
	SubscriptionPlan string     `json:"subscriptionPlan"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        *time.Time `json:"updatedAt,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	ExpiresAt        time.Time  `json:"expiresAt"`
	DownloadCount    int        `json:"downloadCount"`
	LastDownloadedAt *time.Time `json:"lastDownloadedAt,omitempty"`
	FileSize         int64      `json:"fileSize,omitempty"`
	ErrorMessage     string     `json:"errorMessage,omitempty"`
}

// IsExpired reports whether the artifact has passed its expiry.
func (r ExportRecord) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Progress projects lifecycle state onto a coarse percentage for clients
// that poll. Single exports have no intermediate steps worth reporting.
func (r ExportRecord) Progress() int {
	switch r.Status {
	case StatusCompleted:
		return 100
	case StatusProcessing:
		return 50
	default:
		return 0
	}
}

// DownloadURL is the path clients fetch the artifact from.
func (r ExportRecord) DownloadURL() string {
	return "/api/v1/exports/" + r.ID + "/download"
}

// BulkExportRecord is one multi-resume zip export.
type BulkExportRecord struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	ResumeIDs        []string   `json:"resumeIds"`
	ValidResumeCount int        `json:"validResumeCount"`
	Format           string     `json:"format"`
	ZipPath          string     `json:"-"`
	Status           string     `json:"status"`
	Progress         int        `json:"progress"`
	CreatedAt        time.Time  `json:"createdAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	ExpiresAt        time.Time  `json:"expiresAt"`
	DownloadCount    int        `json:"downloadCount"`
	LastDownloadedAt *time.Time `json:"lastDownloadedAt,omitempty"`
	FileSize         int64      `json:"fileSize,omitempty"`
	ErrorMessage     string     `json:"errorMessage,omitempty"`
}

// IsExpired reports whether the zip has passed its expiry.
func (r BulkExportRecord) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// DownloadFilename is the client-facing zip name.
func (r BulkExportRecord) DownloadFilename() string {
	return "resumes_bulk_export_" + r.CreatedAt.UTC().Format("20060102") + ".zip"
}

// DownloadURL is the path clients fetch the zip from.
func (r BulkExportRecord) DownloadURL() string {
	return "/api/v1/bulk-exports/" + r.ID + "/download"
}

// UsageRecord is the calendar-month export counter for one user.
type UsageRecord struct {
	UserID      string     `json:"userId"`
	Month       time.Time  `json:"month"`
	Count       int        `json:"count"`
	FirstExport *time.Time `json:"firstExport,omitempty"`
	LastExport  *time.Time `json:"lastExport,omitempty"`
}

// MonthStart truncates t to the first instant of its calendar month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
