package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AnTengye/keydates/config"
	"github.com/AnTengye/keydates/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func TestNewRouterRoutes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.RateLimit = 10

	router, err := newRouter(cfg)
	if err != nil {
		t.Fatalf("Failed to build router: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header")
	}
	if !strings.Contains(w.Header().Get("Cache-Control"), "no-store") {
		t.Error("Expected no-store Cache-Control")
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS header")
	}
}

func TestNewRouterMissingKeyFailsExtraction(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.APIKey = ""

	router, err := newRouter(cfg)
	if err != nil {
		t.Fatalf("Failed to build router: %v", err)
	}

	var body bytes.Buffer
	body.WriteString("--b\r\nContent-Disposition: form-data; name=\"file\"; filename=\"a.txt\"\r\n\r\nSigned 1 May 2024\r\n--b--\r\n")
	req := httptest.NewRequest("POST", "/extract-dates", &body)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLoadInstruction(t *testing.T) {
	if got := loadInstruction(""); got != "" {
		t.Errorf("Expected empty instruction, got %q", got)
	}
	if got := loadInstruction(filepath.Join(t.TempDir(), "missing.md")); got != "" {
		t.Errorf("Expected empty instruction for missing file, got %q", got)
	}

	path := filepath.Join(t.TempDir(), "prompt.md")
	if err := os.WriteFile(path, []byte("List renewal notice dates only."), 0o600); err != nil {
		t.Fatalf("Failed to write prompt: %v", err)
	}
	if got := loadInstruction(path); got != "List renewal notice dates only." {
		t.Errorf("Unexpected instruction %q", got)
	}
}

func TestRenderItems(t *testing.T) {
	iso := "2024-03-01"
	page := 2
	result := model.NewExtractionResult("lease.pdf", []model.DateEvent{
		{DateText: "1 March 2024", DateISO: &iso, Type: model.EventStart, Summary: "Lease start", SourceFile: "lease.pdf", Page: &page},
		{DateText: "on signing", Type: model.EventSign, SourceFile: "lease.pdf"},
	})

	var buf bytes.Buffer
	renderItems(&buf, result)
	// Footers are upper-cased by the default table style.
	out := strings.ToLower(buf.String())

	for _, want := range []string{"lease.pdf", "1 March 2024", "2024-03-01", "Lease start", "on signing", "sign", "2 dates"} {
		if !strings.Contains(out, strings.ToLower(want)) {
			t.Errorf("Expected %q in table output:\n%s", want, out)
		}
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := printJSON(&buf, model.NewExtractionResult("a.txt", nil)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Expected valid JSON: %v", err)
	}
	if items, ok := decoded["items"].([]any); !ok || len(items) != 0 {
		t.Errorf("Expected empty items array, got %v", decoded["items"])
	}
}

func TestDeref(t *testing.T) {
	conf := 0.75
	if deref[float64](nil) != "" {
		t.Error("Expected empty string for nil")
	}
	if deref(&conf) != "0.75" {
		t.Errorf("Expected 0.75, got %s", deref(&conf))
	}
}
