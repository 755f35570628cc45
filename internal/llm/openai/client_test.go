package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"resumegen-backend/internal/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := &Client{
		apiKey:     "test-key",
		model:      "gpt-4o-mini",
		apiURL:     srv.URL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	return c, srv
}

func TestGenerateContentReturnsJSON(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Errorf("expected 2 messages, got %d", len(req.Messages))
		}
		if !strings.Contains(req.Messages[1].Content, "engineering manager") {
			t.Errorf("target role missing from user message")
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": `{"summary":"better"}`}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})

	out, err := c.GenerateContent(context.Background(), llm.GenerateInput{
		ResumeJSON: `{"summary":"ok"}`,
		TargetRole: "engineering manager",
	})
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if !json.Valid(out) {
		t.Fatalf("output is not valid JSON: %s", out)
	}
}

func TestGenerateContentRepairsInvalidJSON(t *testing.T) {
	calls := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		content := `{"broken":`
		if calls > 1 {
			content = `{"fixed":true}`
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})

	out, err := c.GenerateContent(context.Background(), llm.GenerateInput{ResumeJSON: `{}`})
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected repair round-trip, got %d calls", calls)
	}
	if string(out) != `{"fixed":true}` {
		t.Fatalf("unexpected output %s", out)
	}
}

func TestGenerateContentSurfacesAPIError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"error": map[string]any{"message": "rate limited", "type": "rate_limit_error"},
		}
		json.NewEncoder(w).Encode(resp)
	})

	_, err := c.GenerateContent(context.Background(), llm.GenerateInput{ResumeJSON: `{}`})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected API error, got %v", err)
	}
}
