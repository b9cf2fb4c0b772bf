package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/readiness"
)

// stubPipeline is the smallest Pipeline the health check can report on.
type stubPipeline struct {
	ready *readiness.Machine
	ctrl  *gesture.Controller
}

func newStubPipeline() *stubPipeline {
	return &stubPipeline{ready: readiness.New(), ctrl: gesture.NewController(0)}
}

func (p *stubPipeline) Readiness() *readiness.Machine   { return p.ready }
func (p *stubPipeline) Controller() *gesture.Controller { return p.ctrl }
func (p *stubPipeline) Tracking() (bool, bool)          { return true, true }
func (p *stubPipeline) SetFaceTracking(bool)            {}
func (p *stubPipeline) SetHandTracking(bool)            {}
func (p *stubPipeline) Retry() error                    { return nil }

func getHealth(t *testing.T, s *Server) map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return response
}

func TestServer_Health(t *testing.T) {
	t.Run("reports status and uptime without a pipeline", func(t *testing.T) {
		response := getHealth(t, New(Config{}))

		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}
		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
		if _, exists := response["state"]; exists {
			t.Error("expected no 'state' field without a pipeline")
		}
	})

	t.Run("reports the readiness state of the pipeline", func(t *testing.T) {
		p := newStubPipeline()
		s := New(Config{Pipeline: p})

		p.ready.Begin(1, "session-1")
		if got := getHealth(t, s)["state"]; got != string(readiness.Loading) {
			t.Errorf("expected state %q, got %v", readiness.Loading, got)
		}

		p.ready.MarkCamera(1)
		p.ready.MarkFaceModel(1)
		p.ready.MarkHandModel(1)
		if got := getHealth(t, s)["state"]; got != string(readiness.Running) {
			t.Errorf("expected state %q, got %v", readiness.Running, got)
		}

		p.ready.Begin(2, "session-2")
		p.ready.Fail(2, "camera unavailable")
		response := getHealth(t, s)
		if got := response["state"]; got != string(readiness.Failed) {
			t.Errorf("expected state %q, got %v", readiness.Failed, got)
		}
		if response["status"] != "ok" {
			t.Errorf("expected status 'ok' while failed, got %v", response["status"])
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		s := New(Config{})
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(method, "/api/health", nil))

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_Run(t *testing.T) {
	t.Run("returns nil after the context ends", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- New(Config{}).Run(ctx, "127.0.0.1:0") }()

		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
		case <-time.After(shutdownTimeout + time.Second):
			t.Fatal("Run did not return after cancel")
		}
	})

	t.Run("reports a bad address", func(t *testing.T) {
		err := New(Config{}).Run(context.Background(), "127.0.0.1:-1")
		if err == nil || !strings.Contains(err.Error(), "listen on") {
			t.Errorf("Run() error = %v, want listen error", err)
		}
	})
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/nonexistent", nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestServer_StaticFiles(t *testing.T) {
	// Create a temporary directory with a static file
	tmpDir := t.TempDir()

	// Create a test HTML file
	testContent := "<html><body>Hello, World!</body></html>"
	if err := os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(testContent), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	// Create a CSS file for testing direct file access
	cssContent := "body { color: red; }"
	if err := os.WriteFile(filepath.Join(tmpDir, "style.css"), []byte(cssContent), 0644); err != nil {
		t.Fatalf("failed to create test CSS file: %v", err)
	}

	s := New(Config{StaticDir: tmpDir})

	t.Run("serves index.html at root path", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		if rec.Body.String() != testContent {
			t.Errorf("expected body %q, got %q", testContent, rec.Body.String())
		}
	})

	t.Run("serves static files from configured directory", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/style.css", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		if rec.Body.String() != cssContent {
			t.Errorf("expected body %q, got %q", cssContent, rec.Body.String())
		}
	})

	t.Run("returns 404 for non-existent static files", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/nonexistent.html", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestServer_NoStaticDir(t *testing.T) {
	s := New(Config{})

	t.Run("root path returns 404 when no static dir configured", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestServer_PipelineRoutesRequirePipeline(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/api/readiness", "/api/tracking", "/api/transform", "/api/ws", "/api/stream", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusNotFound, rec.Code)
		}
	}
}

func TestServer_Metrics(t *testing.T) {
	m := metrics.NewManager()
	m.FrameProcessed()
	s := New(Config{Metrics: m})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "mudra_frameloop_frames_processed_total 1") {
		t.Errorf("expected processed frame counter in output, got:\n%s", rec.Body.String())
	}
}

func TestServer_StreamMethodNotAllowed(t *testing.T) {
	s := New(Config{Stream: NewStreamHandler(0)})

	req := httptest.NewRequest(http.MethodPost, "/api/stream", nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

func TestNew(t *testing.T) {
	t.Run("keeps config", func(t *testing.T) {
		cfg := Config{StaticDir: "/some/path", WSRateHz: 10}
		s := New(cfg)

		if s.config.StaticDir != cfg.StaticDir || s.config.WSRateHz != cfg.WSRateHz {
			t.Errorf("expected config %+v, got %+v", cfg, s.config)
		}
	})

	t.Run("websocket events only with a pipeline", func(t *testing.T) {
		if New(Config{}).events != nil {
			t.Error("expected no events handler without a pipeline")
		}
		if New(Config{Pipeline: newStubPipeline()}).events == nil {
			t.Error("expected an events handler with a pipeline")
		}
	})
}
