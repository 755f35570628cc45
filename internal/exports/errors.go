package exports

import (
	"fmt"
	"time"
)

// LimitExceededError indicates the user has spent their export quota.
type LimitExceededError struct {
	Plan  string
	Limit int
	Used  int
}

func (e LimitExceededError) Error() string {
	return fmt.Sprintf("export limit reached for %s plan (%d of %d used)", e.Plan, e.Used, e.Limit)
}

// NotFoundError indicates the export does not exist.
type NotFoundError struct {
	ExportID string
}

func (e NotFoundError) Error() string {
	return "export not found: " + e.ExportID
}

// ExpiredError indicates the artifact has passed its expiry and is no longer
// downloadable.
type ExpiredError struct {
	ExportID  string
	ExpiredAt time.Time
}

func (e ExpiredError) Error() string {
	return fmt.Sprintf("export %s expired at %s", e.ExportID, e.ExpiredAt.Format(time.RFC3339))
}

// StillProcessingError indicates the artifact is not ready yet.
type StillProcessingError struct {
	ExportID string
}

func (e StillProcessingError) Error() string {
	return "export still processing: " + e.ExportID
}

// FailedError indicates the export ended in the failed state or its artifact
// is unusable.
type FailedError struct {
	ExportID string
	Message  string
}

func (e FailedError) Error() string {
	if e.Message == "" {
		return "export failed: " + e.ExportID
	}
	return fmt.Sprintf("export %s failed: %s", e.ExportID, e.Message)
}

// UnauthorizedError indicates the export belongs to another user.
type UnauthorizedError struct {
	ExportID string
}

func (e UnauthorizedError) Error() string {
	return "not authorized to access export " + e.ExportID
}

// PremiumRequiredError indicates a feature gated behind a paid plan.
type PremiumRequiredError struct {
	Feature string
}

func (e PremiumRequiredError) Error() string {
	return e.Feature + " requires a premium subscription"
}

// BulkLimitError indicates a bulk request named more resumes than the plan
// allows.
type BulkLimitError struct {
	Requested int
	Max       int
}

func (e BulkLimitError) Error() string {
	return fmt.Sprintf("bulk export of %d resumes exceeds limit of %d", e.Requested, e.Max)
}

// ResumeNotFoundError indicates the source resume does not exist or is not
// visible to the user.
type ResumeNotFoundError struct {
	ResumeID string
}

func (e ResumeNotFoundError) Error() string {
	return "resume not found: " + e.ResumeID
}

// ResumeDeletedError indicates the source resume was deleted.
type ResumeDeletedError struct {
	ResumeID string
}

func (e ResumeDeletedError) Error() string {
	return "resume has been deleted: " + e.ResumeID
}

// FileSizeError indicates a rendered artifact exceeded the plan's size cap.
type FileSizeError struct {
	SizeBytes int64
	MaxBytes  int64
}

func (e FileSizeError) Error() string {
	return fmt.Sprintf("export file size %d exceeds limit %d", e.SizeBytes, e.MaxBytes)
}

// InvalidFormatError indicates an unsupported export format.
type InvalidFormatError struct {
	Format string
}

func (e InvalidFormatError) Error() string {
	return "invalid export format: " + e.Format
}

// FileSystemError wraps a storage failure during artifact handling.
type FileSystemError struct {
	Op  string
	Err error
}

func (e FileSystemError) Error() string {
	return fmt.Sprintf("filesystem %s: %v", e.Op, e.Err)
}

func (e FileSystemError) Unwrap() error {
	return e.Err
}
