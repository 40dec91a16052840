package daemon

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/felloworks/wheelwright/internal/errors"
)

func TestMiddlewareChainPassthrough(t *testing.T) {
	chain := middlewareChain(slog.Default(), errors.NewHTTPErrorAdapter(nil))
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}
}

func TestPanicRecovery(t *testing.T) {
	chain := middlewareChain(slog.Default(), errors.NewHTTPErrorAdapter(nil))
	h := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler exploded")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/release", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "internal server error") {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestResponseWriterCapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusTeapot)

	if rw.statusCode != http.StatusTeapot {
		t.Fatalf("expected captured 418 got %d", rw.statusCode)
	}
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected forwarded 418 got %d", rec.Code)
	}
}
