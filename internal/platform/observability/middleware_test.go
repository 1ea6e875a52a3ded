package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teranga-app/api/internal/platform/requestctx"
)

func TestRequestLoggerMiddlewareEmitsStartAndCompletion(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	handler := RequestLoggerMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"ord_1"}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/orders", nil)
	req = req.WithContext(requestctx.WithLogger(req.Context(), logger))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected start and completion entries, got %d", len(entries))
	}
	if entries[0].Message != "request started" {
		t.Fatalf("unexpected first message %q", entries[0].Message)
	}
	if entries[1].Message != "request completed" {
		t.Fatalf("unexpected second message %q", entries[1].Message)
	}

	fields := entries[1].ContextMap()
	if fields["status"] != int64(http.StatusCreated) {
		t.Fatalf("expected status field 201, got %v", fields["status"])
	}
	if fields["bytes"] != int64(len(`{"id":"ord_1"}`)) {
		t.Fatalf("unexpected bytes field %v", fields["bytes"])
	}
}

func TestRequestLoggerMiddlewareWarnsOnClientErrors(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	handler := RequestLoggerMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/orders/ord_missing", nil)
	req = req.WithContext(requestctx.WithLogger(req.Context(), logger))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one completion entry, got %d", len(entries))
	}
	if entries[0].Level != zap.WarnLevel {
		t.Fatalf("expected warn level for a 404, got %s", entries[0].Level)
	}
}

func TestRecoveryMiddlewareWritesErrorEnvelope(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/orders", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "internal_server_error") {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Fatal("expected the panic to be logged")
	}
}

func TestLogSafeStripsControlRunesAndTruncates(t *testing.T) {
	got := logSafe("usr\n_1\t23", 64)
	if got != "usr_123" {
		t.Fatalf("expected control runes stripped, got %q", got)
	}

	long := strings.Repeat("a", 100)
	if got := logSafe(long, 10); len(got) != 10 {
		t.Fatalf("expected truncation to 10 runes, got %d", len(got))
	}

	if got := logSafe("  padded  ", 64); got != "padded" {
		t.Fatalf("expected surrounding whitespace trimmed, got %q", got)
	}
}
