package panel

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHandlerEmbedded(t *testing.T) {
	handler, err := Handler("")
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}

	tests := []struct {
		name     string
		path     string
		contains string
	}{
		{name: "root", path: "/", contains: "<!DOCTYPE html>"},
		{name: "script", path: "/app.js", contains: "/api/v1"},
		{name: "stylesheet", path: "/style.css", contains: ".room"},
		{name: "spa fallback", path: "/rooms/2", contains: "<!DOCTYPE html>"},
		{name: "traversal", path: "/../../etc/passwd", contains: "<!DOCTYPE html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, handler, tt.path)
			if w.Code != http.StatusOK {
				t.Fatalf("GET %s: status %d, want 200", tt.path, w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("GET %s: body does not contain %q", tt.path, tt.contains)
			}
			if got := w.Header().Get("Cache-Control"); got != "no-cache, must-revalidate" {
				t.Errorf("Cache-Control = %q", got)
			}
		})
	}
}

func TestHandlerFilesystemMode(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(`<!DOCTYPE html><p>local dashboard</p>`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "extra.js"), []byte("console.log('x')"), 0o644); err != nil {
		t.Fatal(err)
	}

	handler, err := Handler(dir)
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}

	if w := get(t, handler, "/"); !strings.Contains(w.Body.String(), "local dashboard") {
		t.Errorf("GET /: got %q, want filesystem index", w.Body.String())
	}
	if w := get(t, handler, "/extra.js"); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "console.log") {
		t.Errorf("GET /extra.js: status %d body %q", w.Code, w.Body.String())
	}
	if w := get(t, handler, "/deep/route"); !strings.Contains(w.Body.String(), "local dashboard") {
		t.Error("filesystem SPA fallback did not serve index.html")
	}
}

func TestHandlerMissingDirFallsBackToEmbed(t *testing.T) {
	handler, err := Handler("/nonexistent/dashboard")
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	if w := get(t, handler, "/app.js"); w.Code != http.StatusOK {
		t.Errorf("GET /app.js: status %d, want embedded asset", w.Code)
	}
}
