package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap/zaptest"

	"nkelo-gateway/internal/cache"
	"nkelo-gateway/internal/genai"
	"nkelo-gateway/internal/handlers"
	"nkelo-gateway/internal/orchestrator"
)

type stubGenerator struct{}

func (stubGenerator) GenerateContent(_ context.Context, _ genai.Request) (*genai.Result, error) {
	return &genai.Result{Text: "ok"}, nil
}

type stubXPStore struct{}

func (stubXPStore) IncrementXP(_ context.Context, _ string, _ int) error { return nil }

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()

	c := cache.NewMemoryCache(time.Minute)
	t.Cleanup(func() { c.Close() })

	orc := orchestrator.New(c, stubGenerator{}, stubXPStore{}, orchestrator.Config{})
	h := handlers.NewAssistHandler(orc)

	r := chi.NewRouter()
	SetupRouter(r, zaptest.NewLogger(t), h)
	return r
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/v1/ai", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for preflight, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing permissive CORS origin header")
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Headers"), "authorization") {
		t.Fatalf("missing CORS allow-headers")
	}
}

func TestCORSHeadersOnPost(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/ai", strings.NewReader(`{"prompt":"olá"}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("CORS headers must be present on actual responses too")
	}
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
