package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("warn", "json", &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info().Msg("hidden")
	log.Warn().Str("zone", "protected-zone").Msg("shown")

	out := strings.TrimSpace(buf.String())
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line leaked at warn level: %s", out)
	}
	var line map[string]any
	if err := json.Unmarshal([]byte(out), &line); err != nil {
		t.Fatalf("expected one json line, got %q: %v", out, err)
	}
	if line["zone"] != "protected-zone" || line["level"] != "warn" || line["time"] == nil {
		t.Fatalf("line = %v", line)
	}

	if _, err := New("loud", "json", &buf); err == nil {
		t.Fatal("expected invalid level error")
	}
	if _, err := New("info", "xml", &buf); err == nil {
		t.Fatal("expected invalid format error")
	}
	if _, err := New("", "console", &buf); err != nil {
		t.Fatalf("blank level should default: %v", err)
	}
}

func TestRequests(t *testing.T) {
	var buf bytes.Buffer
	log, _ := New("debug", "json", &buf)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, Requests(log))
	r.Get("/api/figure", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no data"}`))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/figure?year=1990", nil))

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("log line %q: %v", buf.String(), err)
	}
	if line["level"] != "warn" || line["status"] != float64(404) || line["path"] != "/api/figure" {
		t.Fatalf("line = %v", line)
	}
	if line["bytes"] != float64(len(`{"error":"no data"}`)) {
		t.Fatalf("bytes = %v", line["bytes"])
	}
	if id, _ := line["request_id"].(string); id == "" {
		t.Fatalf("missing request id: %v", line)
	}
}
