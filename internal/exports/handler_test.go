package exports

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"resumegen-backend/internal/users"
)

type staticAdmin struct {
	admins map[string]bool
}

func (s staticAdmin) IsAdmin(ctx context.Context, userID string) (bool, error) {
	return s.admins[userID], nil
}

type fakeCleaner struct {
	report map[string]int
	err    error
	runs   int
}

func (f *fakeCleaner) RunOnce(ctx context.Context) (map[string]int, error) {
	f.runs++
	return f.report, f.err
}

func newTestRouter(env *exportEnv, userID string, admins map[string]bool, cleaner *fakeCleaner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", userID)
		c.Next()
	})
	h := NewHandler(env.svc, staticAdmin{admins: admins}, cleaner)
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, w.Body.String())
	}
	return resp.Error.Code
}

func waitForStatus(t *testing.T, env *exportEnv, exportID, want string) ExportRecord {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := env.store.GetExport(context.Background(), exportID)
		if err == nil && rec.Status == want {
			return rec
		}
		time.Sleep(10 * time.Millisecond)
	}
	rec, _ := env.store.GetExport(context.Background(), exportID)
	t.Fatalf("export %s never reached %s, last state %+v", exportID, want, rec)
	return ExportRecord{}
}

func TestCreateExportEndpoint(t *testing.T) {
	env := newExportEnv(t)
	resume := env.addResume(t, "u1", "Resume")
	r := newTestRouter(env, "u1", nil, nil)

	w := doJSON(t, r, http.MethodPost, "/api/v1/exports", gin.H{"resumeId": resume.ID, "format": "pdf"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		DownloadURL string `json:"downloadUrl"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != StatusProcessing {
		t.Fatalf("initial status = %s", resp.Status)
	}
	// The download URL is part of the create response so clients can hold
	// it while polling.
	if resp.DownloadURL == "" {
		t.Fatal("downloadUrl missing from create response")
	}

	waitForStatus(t, env, resp.ID, StatusCompleted)
}

func TestCreateExportEndpointQuotaExceeded(t *testing.T) {
	env := newExportEnv(t)
	resume := env.addResume(t, "u1", "Resume")
	env.seedCompleted(t, "u1", 3)
	r := newTestRouter(env, "u1", nil, nil)

	w := doJSON(t, r, http.MethodPost, "/api/v1/exports", gin.H{"resumeId": resume.ID, "format": "pdf"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d", w.Code)
	}
	if code := errorCode(t, w); code != "export_limit_exceeded" {
		t.Fatalf("code = %s", code)
	}

	var resp struct {
		Error struct {
			Details struct {
				Plan  string `json:"plan"`
				Limit int    `json:"limit"`
				Used  int    `json:"used"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Details.Plan != PlanFree || resp.Error.Details.Limit != 3 || resp.Error.Details.Used != 3 {
		t.Fatalf("unexpected details %+v", resp.Error.Details)
	}
}

func TestDownloadProcessingAnswers202(t *testing.T) {
	env := newExportEnv(t)
	ctx := context.Background()
	rec := ExportRecord{
		ID: "exp-1", UserID: "u1", Format: FormatPDF, Status: StatusProcessing,
		CreatedAt: env.now, ExpiresAt: env.now.Add(24 * time.Hour),
	}
	if err := env.store.CreateExport(ctx, rec); err != nil {
		t.Fatalf("seed: %v", err)
	}
	r := newTestRouter(env, "u1", nil, nil)

	w := doJSON(t, r, http.MethodGet, "/api/v1/exports/exp-1/download", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestStatusEndpointErrorMapping(t *testing.T) {
	env := newExportEnv(t)
	ctx := context.Background()
	rec := ExportRecord{
		ID: "exp-1", UserID: "owner", Format: FormatPDF, Status: StatusCompleted,
		CreatedAt: env.now, ExpiresAt: env.now.Add(24 * time.Hour),
	}
	env.store.CreateExport(ctx, rec)

	r := newTestRouter(env, "u1", nil, nil)

	w := doJSON(t, r, http.MethodGet, "/api/v1/exports/missing", nil)
	if w.Code != http.StatusNotFound || errorCode(t, w) != "export_not_found" {
		t.Fatalf("missing export: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/exports/exp-1", nil)
	if w.Code != http.StatusForbidden || errorCode(t, w) != "unauthorized_export_access" {
		t.Fatalf("foreign export: %d %s", w.Code, w.Body.String())
	}
}

func TestBulkEndpointPremiumGate(t *testing.T) {
	env := newExportEnv(t)
	resume := env.addResume(t, "u1", "Resume")
	r := newTestRouter(env, "u1", nil, nil)

	w := doJSON(t, r, http.MethodPost, "/api/v1/bulk-exports", gin.H{"resumeIds": []string{resume.ID}, "format": "pdf"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d", w.Code)
	}
	if code := errorCode(t, w); code != "premium_feature_required" {
		t.Fatalf("code = %s", code)
	}
}

func TestLimitsEndpoint(t *testing.T) {
	env := newExportEnv(t)
	env.seedCompleted(t, "u1", 2)
	r := newTestRouter(env, "u1", nil, nil)

	w := doJSON(t, r, http.MethodGet, "/api/v1/export-limits", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var info QuotaInfo
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Plan != PlanFree || info.Remaining != 1 {
		t.Fatalf("unexpected quota %+v", info)
	}
}

func TestAdminEndpointsRequireAdmin(t *testing.T) {
	env := newExportEnv(t)
	cleaner := &fakeCleaner{report: map[string]int{"expired": 2}}

	r := newTestRouter(env, "u1", map[string]bool{"u1": false}, cleaner)
	w := doJSON(t, r, http.MethodGet, "/api/v1/admin/export-stats", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("non-admin stats: %d", w.Code)
	}
	if cleaner.runs != 0 {
		t.Fatal("cleanup ran for non-admin")
	}

	r = newTestRouter(env, "admin", map[string]bool{"admin": true}, cleaner)
	w = doJSON(t, r, http.MethodGet, "/api/v1/admin/export-stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin stats: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/admin/export-cleanup", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin cleanup: %d %s", w.Code, w.Body.String())
	}
	if cleaner.runs != 1 {
		t.Fatalf("cleanup runs = %d", cleaner.runs)
	}
}

func TestCleanupOwnEndpoint(t *testing.T) {
	env := newExportEnv(t)
	ctx := context.Background()

	for i, expiresAt := range []time.Time{env.now.Add(-2 * time.Hour), env.now.Add(-time.Hour), env.now.Add(24 * time.Hour)} {
		rec := ExportRecord{
			ID: string(rune('a' + i)), UserID: "u1", Format: FormatPDF, Status: StatusCompleted,
			CreatedAt: env.now.Add(-48 * time.Hour), ExpiresAt: expiresAt,
		}
		if err := env.store.CreateExport(ctx, rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	r := newTestRouter(env, "u1", nil, nil)
	w := doJSON(t, r, http.MethodPost, "/api/v1/export-cleanup", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Deleted int `json:"deleted"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Deleted != 2 {
		t.Fatalf("deleted = %d", resp.Deleted)
	}
	if _, err := env.store.GetExport(ctx, "c"); err != nil {
		t.Fatalf("live export removed: %v", err)
	}
}

type fakePurger struct {
	purged []string
}

func (f *fakePurger) PurgeUser(ctx context.Context, userID string) error {
	f.purged = append(f.purged, userID)
	return nil
}

func TestPurgeEndpoint(t *testing.T) {
	env := newExportEnv(t)

	r := newTestRouter(env, "u1", nil, nil)
	w := doJSON(t, r, http.MethodDelete, "/api/v1/export-data", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("unconfigured purge: %d", w.Code)
	}

	purger := &fakePurger{}
	gin.SetMode(gin.TestMode)
	r = gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", "u1")
		c.Next()
	})
	h := NewHandler(env.svc, nil, nil)
	h.Purger = purger
	h.RegisterRoutes(r.Group("/api/v1"))

	w = doJSON(t, r, http.MethodDelete, "/api/v1/export-data", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("purge: %d body = %s", w.Code, w.Body.String())
	}
	if len(purger.purged) != 1 || purger.purged[0] != "u1" {
		t.Fatalf("purged = %v", purger.purged)
	}
}

// The real users service must satisfy the handler's admin dependency.
var _ AdminChecker = (*users.Service)(nil)
