package exports

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"resumegen-backend/internal/shared/server/middleware"
	"resumegen-backend/internal/shared/server/respond"
	"resumegen-backend/internal/shared/telemetry"
)

// AdminChecker reports whether a user may hit admin endpoints.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// CleanupTrigger runs all cleanup sweeps once, on demand.
type CleanupTrigger interface {
	RunOnce(ctx context.Context) (map[string]int, error)
}

// UserPurger deletes every export record, artifact and usage counter a user
// owns. Backed by the cleanup service.
type UserPurger interface {
	PurgeUser(ctx context.Context, userID string) error
}

// Handler exposes export endpoints.
type Handler struct {
	Svc     *Service
	Admins  AdminChecker
	Cleaner CleanupTrigger

	// Optional; the purge endpoint answers 503 when unset.
	Purger UserPurger
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, admins AdminChecker, cleaner CleanupTrigger) *Handler {
	return &Handler{Svc: svc, Admins: admins, Cleaner: cleaner}
}

// RegisterRoutes attaches export routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/exports", h.create)
	rg.GET("/exports", h.history)
	rg.GET("/exports/:exportId", h.status)
	rg.GET("/exports/:exportId/download", h.download)
	rg.DELETE("/exports/:exportId", h.remove)

	rg.GET("/export-limits", h.limits)
	rg.POST("/export-cleanup", h.cleanupOwn)
	rg.DELETE("/export-data", h.purgeOwn)

	rg.POST("/bulk-exports", h.createBulk)
	rg.GET("/bulk-exports/:bulkId", h.bulkStatus)
	rg.GET("/bulk-exports/:bulkId/download", h.bulkDownload)
	rg.DELETE("/bulk-exports/:bulkId", h.removeBulk)

	rg.GET("/admin/export-stats", h.adminStats)
	rg.POST("/admin/export-cleanup", h.adminCleanup)
}

type createExportRequest struct {
	ResumeID string `json:"resumeId"`
	Format   string `json:"format"`
}

func (h *Handler) create(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req createExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
		return
	}
	if req.ResumeID == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "resumeId is required", nil)
		return
	}

	rec, err := h.Svc.CreateExport(c.Request.Context(), userID, req.ResumeID, req.Format)
	if err != nil {
		writeExportError(c, err)
		return
	}

	// Rendering continues after the response; clients poll the status
	// endpoint or hit download once completed.
	go func(exportID string) {
		if err := h.Svc.Process(context.Background(), exportID); err != nil {
			telemetry.Warn("export.process_error", map[string]any{"export_id": exportID, "error": err.Error()})
		}
	}(rec.ID)

	respond.JSON(c, http.StatusAccepted, exportResponse(rec))
}

func (h *Handler) history(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	out, err := h.Svc.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list exports", nil)
		return
	}
	items := make([]gin.H, 0, len(out))
	completed := 0
	downloads := 0
	for _, rec := range out {
		items = append(items, exportResponse(rec))
		if rec.Status == StatusCompleted {
			completed++
		}
		downloads += rec.DownloadCount
	}
	respond.OK(c, gin.H{
		"items": items,
		"summary": gin.H{
			"total":          len(items),
			"completed":      completed,
			"totalDownloads": downloads,
		},
	})
}

func (h *Handler) status(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	rec, err := h.Svc.Status(c.Request.Context(), userID, c.Param("exportId"))
	if err != nil {
		writeExportError(c, err)
		return
	}
	respond.OK(c, exportResponse(rec))
}

func (h *Handler) download(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	rec, err := h.Svc.Download(c.Request.Context(), userID, c.Param("exportId"))
	if err != nil {
		writeExportError(c, err)
		return
	}
	c.FileAttachment(rec.FilePath, rec.Filename)
}

func (h *Handler) remove(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	deleted, err := h.Svc.Delete(c.Request.Context(), userID, c.Param("exportId"))
	if err != nil {
		writeExportError(c, err)
		return
	}
	respond.OK(c, gin.H{"deleted": deleted})
}

func (h *Handler) limits(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	info, err := h.Svc.Quota(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch export limits", nil)
		return
	}
	respond.OK(c, info)
}

func (h *Handler) cleanupOwn(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	deleted, err := h.Svc.CleanupExpired(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "cleanup failed", nil)
		return
	}
	respond.OK(c, gin.H{"deleted": deleted})
}

func (h *Handler) purgeOwn(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if h.Purger == nil {
		respond.Error(c, http.StatusServiceUnavailable, "purge_unavailable", "data purge is not configured", nil)
		return
	}
	if err := h.Purger.PurgeUser(c.Request.Context(), userID); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to purge export data", nil)
		return
	}
	respond.OK(c, gin.H{"purged": true})
}

type createBulkRequest struct {
	ResumeIDs []string `json:"resumeIds"`
	Format    string   `json:"format"`
}

func (h *Handler) createBulk(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req createBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
		return
	}
	if len(req.ResumeIDs) == 0 {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "resumeIds is required", nil)
		return
	}

	rec, err := h.Svc.CreateBulkExport(c.Request.Context(), userID, req.ResumeIDs, req.Format)
	if err != nil {
		writeExportError(c, err)
		return
	}

	go func(bulkID string) {
		if err := h.Svc.ProcessBulk(context.Background(), bulkID); err != nil {
			telemetry.Warn("export.bulk_process_error", map[string]any{"bulk_id": bulkID, "error": err.Error()})
		}
	}(rec.ID)

	respond.JSON(c, http.StatusAccepted, bulkResponse(rec))
}

func (h *Handler) bulkStatus(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	rec, err := h.Svc.BulkStatus(c.Request.Context(), userID, c.Param("bulkId"))
	if err != nil {
		writeExportError(c, err)
		return
	}
	respond.OK(c, bulkResponse(rec))
}

func (h *Handler) bulkDownload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	rec, err := h.Svc.BulkDownload(c.Request.Context(), userID, c.Param("bulkId"))
	if err != nil {
		writeExportError(c, err)
		return
	}
	c.FileAttachment(rec.ZipPath, rec.DownloadFilename())
}

func (h *Handler) removeBulk(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	deleted, err := h.Svc.DeleteBulk(c.Request.Context(), userID, c.Param("bulkId"))
	if err != nil {
		writeExportError(c, err)
		return
	}
	respond.OK(c, gin.H{"deleted": deleted})
}

func (h *Handler) adminStats(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}
	stats, err := h.Svc.Stats(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch export stats", nil)
		return
	}
	respond.OK(c, stats)
}

func (h *Handler) adminCleanup(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}
	if h.Cleaner == nil {
		respond.Error(c, http.StatusServiceUnavailable, "cleanup_unavailable", "cleanup is not configured", nil)
		return
	}
	report, err := h.Cleaner.RunOnce(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "cleanup run failed", nil)
		return
	}
	respond.OK(c, gin.H{"deleted": report})
}

func (h *Handler) requireAdmin(c *gin.Context) bool {
	userID := middleware.UserIDFromContext(c)
	if h.Admins == nil {
		respond.Error(c, http.StatusForbidden, "forbidden", "admin access required", nil)
		return false
	}
	isAdmin, err := h.Admins.IsAdmin(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to check permissions", nil)
		return false
	}
	if !isAdmin {
		respond.Error(c, http.StatusForbidden, "forbidden", "admin access required", nil)
		return false
	}
	return true
}

func exportResponse(rec ExportRecord) gin.H {
	out := gin.H{
		"id":            rec.ID,
		"resumeId":      rec.ResumeID,
		"resumeTitle":   rec.ResumeTitle,
		"format":        rec.Format,
		"filename":      rec.Filename,
		"status":        rec.Status,
		"progress":      rec.Progress(),
		"createdAt":     rec.CreatedAt,
		"expiresAt":     rec.ExpiresAt,
		"downloadCount": rec.DownloadCount,
		// The URL is stable from creation; clients can store it right away
		// and poll until the status flips to completed.
		"downloadUrl": rec.DownloadURL(),
	}
	if rec.Status == StatusCompleted {
		out["fileSize"] = rec.FileSize
	}
	if rec.CompletedAt != nil {
		out["completedAt"] = rec.CompletedAt
	}
	if rec.ErrorMessage != "" {
		out["errorMessage"] = rec.ErrorMessage
	}
	return out
}

func bulkResponse(rec BulkExportRecord) gin.H {
	out := gin.H{
		"id":               rec.ID,
		"resumeIds":        rec.ResumeIDs,
		"validResumeCount": rec.ValidResumeCount,
		"format":           rec.Format,
		"status":           rec.Status,
		"progress":         rec.Progress,
		"createdAt":        rec.CreatedAt,
		"expiresAt":        rec.ExpiresAt,
		"downloadCount":    rec.DownloadCount,
		"downloadUrl":      rec.DownloadURL(),
	}
	if rec.Status == StatusCompleted {
		out["filename"] = rec.DownloadFilename()
		out["fileSize"] = rec.FileSize
	}
	if rec.CompletedAt != nil {
		out["completedAt"] = rec.CompletedAt
	}
	if rec.ErrorMessage != "" {
		out["errorMessage"] = rec.ErrorMessage
	}
	return out
}

// writeExportError maps domain errors onto the HTTP error envelope. A
// download attempt on a processing export answers 202 so clients keep
// polling instead of treating it as a failure.
func writeExportError(c *gin.Context, err error) {
	var (
		limitErr      LimitExceededError
		notFoundErr   NotFoundError
		expiredErr    ExpiredError
		processing    StillProcessingError
		failedErr     FailedError
		unauthorized  UnauthorizedError
		premiumErr    PremiumRequiredError
		bulkLimitErr  BulkLimitError
		resumeMissing ResumeNotFoundError
		resumeDeleted ResumeDeletedError
		sizeErr       FileSizeError
		formatErr     InvalidFormatError
		fsErr         FileSystemError
	)
	switch {
	case errors.As(err, &limitErr):
		respond.Error(c, http.StatusForbidden, "export_limit_exceeded", limitErr.Error(), map[string]any{
			"plan":  limitErr.Plan,
			"limit": limitErr.Limit,
			"used":  limitErr.Used,
		})
	case errors.As(err, &processing):
		respond.JSON(c, http.StatusAccepted, gin.H{"status": StatusProcessing, "id": processing.ExportID})
	case errors.As(err, &expiredErr):
		respond.Error(c, http.StatusGone, "export_expired", expiredErr.Error(), nil)
	case errors.As(err, &unauthorized):
		respond.Error(c, http.StatusForbidden, "unauthorized_export_access", unauthorized.Error(), nil)
	case errors.As(err, &premiumErr):
		respond.Error(c, http.StatusForbidden, "premium_feature_required", premiumErr.Error(), nil)
	case errors.As(err, &bulkLimitErr):
		respond.Error(c, http.StatusBadRequest, "bulk_export_limit_exceeded", bulkLimitErr.Error(), map[string]any{
			"requested": bulkLimitErr.Requested,
			"max":       bulkLimitErr.Max,
		})
	case errors.As(err, &resumeDeleted):
		respond.Error(c, http.StatusGone, "resume_deleted", resumeDeleted.Error(), nil)
	case errors.As(err, &resumeMissing):
		respond.Error(c, http.StatusNotFound, "resume_not_found", resumeMissing.Error(), nil)
	case errors.As(err, &sizeErr):
		respond.Error(c, http.StatusRequestEntityTooLarge, "file_size_exceeded", sizeErr.Error(), nil)
	case errors.As(err, &formatErr):
		respond.Error(c, http.StatusBadRequest, "invalid_export_format", formatErr.Error(), nil)
	case errors.As(err, &notFoundErr):
		respond.Error(c, http.StatusNotFound, "export_not_found", notFoundErr.Error(), nil)
	case errors.As(err, &failedErr):
		respond.Error(c, http.StatusInternalServerError, "export_failed", failedErr.Error(), nil)
	case errors.As(err, &fsErr):
		respond.Error(c, http.StatusInternalServerError, "file_system_error", "storage failure during export", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "export operation failed", nil)
	}
}
