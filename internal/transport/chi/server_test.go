package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/caremind-health/medfaq/internal/domain"
	"github.com/caremind-health/medfaq/internal/fallback"
	"github.com/caremind-health/medfaq/internal/history"
	"github.com/caremind-health/medfaq/internal/logger"
	"github.com/caremind-health/medfaq/internal/ratelimit"
	answeruc "github.com/caremind-health/medfaq/internal/usecase/answer"
	healthuc "github.com/caremind-health/medfaq/internal/usecase/health"
	searchuc "github.com/caremind-health/medfaq/internal/usecase/search"
)

func testCorpus() []domain.Chunk {
	texts := []string{
		"Medication adherence improves outcomes in diabetes; missed doses are a leading cause of poor control.",
		"Taking medications at the same time each day helps build a routine.",
		"Grapefruit juice can interfere with several common medications.",
	}
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{ID: "chunk", Text: text, Ordinal: i}
	}
	return chunks
}

// newTestRouter builds a router in fallback-only mode, optionally
// wrapped in the rate limit middleware.
func newTestRouter(t *testing.T, limiter *ratelimit.Limiter) (*chi.Mux, *history.Log) {
	t.Helper()
	logger := zap.NewNop()

	lexical := fallback.NewIndex(testCorpus())
	search := searchuc.New(nil, nil, lexical, logger)
	answers := answeruc.New(nil, logger)
	health := healthuc.New(nil, nil, search)
	historyLog := history.New(10)

	srv := NewServer(search, answers, health, historyLog, logger)
	r := chi.NewRouter()
	if limiter != nil {
		r.Use(RateLimitMiddleware(limiter))
	}
	srv.Routes(r)
	return r, historyLog
}

func doRequest(t *testing.T, r http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "192.0.2.1:51234"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestFAQ_Success(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	rec := doRequest(t, r, http.MethodGet, "/api/faq?q=medication+adherence+diabetes")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}

	var result domain.FAQResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if result.Answer == "" {
		t.Error("expected non-empty answer")
	}
	if len(result.Matches) == 0 {
		t.Fatal("expected matches for an on-corpus query")
	}
	if result.Matches[0].Score != 1.0 {
		t.Errorf("expected top score 1.0, got %f", result.Matches[0].Score)
	}
}

func TestFAQ_NoMatchesStillValidShape(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	rec := doRequest(t, r, http.MethodGet, "/api/faq?q=zzxxyy+nonexistent")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var result domain.FAQResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if result.Answer != answeruc.NoInfoDisclaimer {
		t.Errorf("expected disclaimer answer, got %q", result.Answer)
	}
	if result.Matches == nil || len(result.Matches) != 0 {
		t.Errorf("expected empty (not null) matches array, got %v", result.Matches)
	}
}

func TestFAQ_MissingQuery(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	for _, target := range []string{"/api/faq", "/api/faq?q=", "/api/faq?q=%20%20"} {
		rec := doRequest(t, r, http.MethodGet, target)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rec.Code)
		}
		var resp errorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: invalid JSON body: %v", target, err)
		}
		if resp.Code != "validation_failed" {
			t.Errorf("%s: expected validation_failed, got %s", target, resp.Code)
		}
	}
}

func TestFAQ_MethodNotAllowed(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	rec := doRequest(t, r, http.MethodPost, "/api/faq?q=test")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("405 body must be JSON: %v", err)
	}
	if resp.Code != "method_not_allowed" {
		t.Errorf("expected method_not_allowed, got %s", resp.Code)
	}
}

func TestNotFoundIsJSON(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	rec := doRequest(t, r, http.MethodGet, "/api/unknown")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("404 body must be JSON: %v", err)
	}
}

func TestInteraction_RecordsHistory(t *testing.T) {
	r, historyLog := newTestRouter(t, nil)

	rec := doRequest(t, r, http.MethodGet, "/api/interactions?a=warfarin&b=aspirin")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp interactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if !resp.IsRisky {
		t.Error("warfarin+aspirin should be risky")
	}
	if resp.Reason == "" {
		t.Error("expected a reason")
	}

	items := historyLog.List()
	if len(items) != 1 {
		t.Fatalf("expected 1 history item, got %d", len(items))
	}
	if items[0].MedA != "warfarin" || items[0].MedB != "aspirin" || !items[0].IsRisky {
		t.Errorf("unexpected history item: %+v", items[0])
	}
	if items[0].ID == "" || items[0].Timestamp.IsZero() {
		t.Errorf("history item missing id or timestamp: %+v", items[0])
	}
}

func TestInteraction_MissingParams(t *testing.T) {
	r, historyLog := newTestRouter(t, nil)

	for _, target := range []string{"/api/interactions", "/api/interactions?a=warfarin", "/api/interactions?b=aspirin"} {
		rec := doRequest(t, r, http.MethodGet, target)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rec.Code)
		}
	}
	if historyLog.Len() != 0 {
		t.Error("rejected requests must not be recorded in history")
	}
}

func TestHistory_ListAndClear(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	doRequest(t, r, http.MethodGet, "/api/interactions?a=warfarin&b=aspirin")
	doRequest(t, r, http.MethodGet, "/api/interactions?a=ssri&b=tramadol")

	rec := doRequest(t, r, http.MethodGet, "/api/history")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Items []domain.HistoryItem `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if len(body.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(body.Items))
	}
	if body.Items[0].MedA != "ssri" {
		t.Errorf("expected most recent item first, got %+v", body.Items[0])
	}

	rec = doRequest(t, r, http.MethodDelete, "/api/history")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = doRequest(t, r, http.MethodGet, "/api/history")
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if len(body.Items) != 0 {
		t.Errorf("expected empty history after clear, got %d items", len(body.Items))
	}
}

func TestHealth_FallbackOnlyIsDegradedBut200(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	rec := doRequest(t, r, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("degraded service must still answer 200, got %d", rec.Code)
	}

	var report healthuc.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if report.Status != healthuc.Degraded {
		t.Errorf("expected degraded status, got %s", report.Status)
	}
	if report.Mode != string(searchuc.FallbackOnly) {
		t.Errorf("expected fallback_only mode, got %s", report.Mode)
	}
}

func TestRateLimit_DeniesWithRetryAfter(t *testing.T) {
	limiter := ratelimit.New(time.Minute, 2, zap.NewNop())
	r, _ := newTestRouter(t, limiter)

	for i := 0; i < 2; i++ {
		rec := doRequest(t, r, http.MethodGet, "/api/faq?q=adherence")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Remaining") == "" {
			t.Error("expected X-RateLimit-Remaining on admitted requests")
		}
	}

	rec := doRequest(t, r, http.MethodGet, "/api/faq?q=adherence")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on 429")
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("429 body must be JSON: %v", err)
	}
	if resp.Code != "rate_limited" {
		t.Errorf("expected rate_limited, got %s", resp.Code)
	}
}

func TestRateLimit_AppliesAcrossEndpoints(t *testing.T) {
	limiter := ratelimit.New(time.Minute, 1, zap.NewNop())
	r, _ := newTestRouter(t, limiter)

	if rec := doRequest(t, r, http.MethodGet, "/api/faq?q=adherence"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	// Same client, different endpoint, same shared window.
	if rec := doRequest(t, r, http.MethodGet, "/api/interactions?a=x&b=y"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected shared limit across endpoints, got %d", rec.Code)
	}
}

func TestRateLimit_ExemptPaths(t *testing.T) {
	limiter := ratelimit.New(time.Minute, 1, zap.NewNop())
	r, _ := newTestRouter(t, limiter)

	doRequest(t, r, http.MethodGet, "/api/faq?q=adherence")

	// Exhausted window must not block health or metrics.
	if rec := doRequest(t, r, http.MethodGet, "/health"); rec.Code != http.StatusOK {
		t.Errorf("health must bypass rate limiting, got %d", rec.Code)
	}
	if rec := doRequest(t, r, http.MethodGet, "/metrics"); rec.Code != http.StatusOK {
		t.Errorf("metrics must bypass rate limiting, got %d", rec.Code)
	}
}

func TestRecoverer_FAQPanicGetsSafeBody(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Recoverer(zap.NewNop()))
	r.Get("/api/faq", func(http.ResponseWriter, *http.Request) {
		panic("index corrupted")
	})

	rec := doRequest(t, r, http.MethodGet, "/api/faq?q=adherence")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}

	var result domain.FAQResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("500 body must be a valid result shape: %v", err)
	}
	if result.Answer == "" {
		t.Error("expected a safe non-empty answer")
	}
	if result.Matches == nil || len(result.Matches) != 0 {
		t.Errorf("expected empty (not null) matches array, got %v", result.Matches)
	}
	if strings.Contains(rec.Body.String(), "index corrupted") {
		t.Error("panic value must not leak into the response body")
	}
}

func TestRecoverer_NonFAQPanicGetsErrorEnvelope(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Recoverer(zap.NewNop()))
	r.Get("/api/history", func(http.ResponseWriter, *http.Request) {
		panic("history backend gone")
	})

	rec := doRequest(t, r, http.MethodGet, "/api/history")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("500 body must be JSON: %v", err)
	}
	if resp.Code != "internal_error" {
		t.Errorf("expected internal_error, got %s", resp.Code)
	}
	if strings.Contains(rec.Body.String(), "history backend gone") {
		t.Error("panic value must not leak into the response body")
	}
}

func TestRecoverer_PassesThroughHealthyRequests(t *testing.T) {
	limiter := ratelimit.New(time.Minute, 10, zap.NewNop())
	r, _ := newTestRouter(t, limiter)

	wrapped := chi.NewRouter()
	wrapped.Use(Recoverer(zap.NewNop()))
	wrapped.Mount("/", r)

	rec := doRequest(t, wrapped, http.MethodGet, "/api/faq?q=adherence")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlers_UseRequestLoggerFromContext(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	reqLogger := zap.New(core)

	r, _ := newTestRouter(t, nil)
	wrapped := chi.NewRouter()
	wrapped.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(logger.ContextWithLogger(req.Context(), reqLogger)))
		})
	})
	wrapped.Mount("/", r)

	doRequest(t, wrapped, http.MethodGet, "/api/faq?q=adherence")
	if observed.FilterMessage("faq answered").Len() != 1 {
		t.Error("faq handler must log through the request-scoped logger")
	}

	doRequest(t, wrapped, http.MethodGet, "/api/interactions?a=warfarin&b=aspirin")
	if observed.FilterMessage("interaction checked").Len() != 1 {
		t.Error("interaction handler must log through the request-scoped logger")
	}
}

func TestRateLimit_KeysByClientAddress(t *testing.T) {
	limiter := ratelimit.New(time.Minute, 1, zap.NewNop())
	r, _ := newTestRouter(t, limiter)

	first := httptest.NewRequest(http.MethodGet, "/api/faq?q=adherence", nil)
	first.RemoteAddr = "192.0.2.1:51234"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// Different client address, different ephemeral port on the first.
	second := httptest.NewRequest(http.MethodGet, "/api/faq?q=adherence", nil)
	second.RemoteAddr = "192.0.2.2:40000"
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, second)
	if rec.Code != http.StatusOK {
		t.Errorf("different client must have its own window, got %d", rec.Code)
	}

	// Same client on a new port shares the original window.
	third := httptest.NewRequest(http.MethodGet, "/api/faq?q=adherence", nil)
	third.RemoteAddr = "192.0.2.1:60000"
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, third)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("same host on a new port must share the window, got %d", rec.Code)
	}
}
