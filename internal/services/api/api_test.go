package api

import (
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"newswire/internal/platform/config"
	"newswire/internal/platform/logger"
	phttp "newswire/internal/platform/net/http"
	"newswire/internal/platform/store"
	"newswire/internal/platform/store/storetest"
)

func newTestAPI(t *testing.T) stdhttp.Handler {
	t.Helper()
	t.Setenv("RECONCILE_TOKEN", "secret")

	mux := chi.NewRouter()
	Mount(phttp.AdaptChi(mux), Options{
		Config: config.New(),
		Store:  &store.Store{Redis: storetest.NewKV()},
		Logger: logger.Get(),
	})
	return mux
}

func TestMount_Healthz(t *testing.T) {
	h := newTestAPI(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/healthz", nil))
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}

func TestMount_ReconcileNeedsToken(t *testing.T) {
	h := newTestAPI(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodPost, "/api/v1/reconcile/view-counts", nil))
	if rec.Code != stdhttp.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestMount_ReconcileRunsWithToken(t *testing.T) {
	h := newTestAPI(t)

	// an empty keyspace makes view-counts a no-op that still reports
	req := httptest.NewRequest(stdhttp.MethodPost, "/api/v1/reconcile/view-counts", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	var env phttp.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data == nil {
		t.Fatal("want a report body")
	}
}

func TestMount_UnknownRouteIs404(t *testing.T) {
	h := newTestAPI(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/api/v1/nope", nil))
	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
