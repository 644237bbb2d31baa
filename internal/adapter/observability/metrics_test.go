package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPMetricsMiddleware_Basic(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	mw := HTTPMetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(204) }))
	mw.ServeHTTP(rec, r)
	if rec.Result().StatusCode != 204 {
		t.Fatalf("want 204")
	}
}

func TestMetricsHelpers(t *testing.T) {
	InitMetrics()
	ObserveWorker("skill", 50*time.Millisecond, nil)
	ObserveWorker("semantic", 120*time.Second, errors.New("timeout"))
	ForkProvisioned("branch_zero_copy")
	ForkReleased()
	ObserveComposite(0.97, 5)
	ObserveComposite(1.5, 4) // out of range, ignored by the histogram
}
