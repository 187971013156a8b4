package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCacheLookup(t *testing.T) {
	before := testutil.ToFloat64(dirCacheLookups.WithLabelValues("hit"))
	RecordCacheLookup("hit")
	RecordCacheLookup("hit")
	if got := testutil.ToFloat64(dirCacheLookups.WithLabelValues("hit")) - before; got != 2 {
		t.Errorf("expected 2 hits recorded, got %v", got)
	}
}

func TestRecordInvalidation(t *testing.T) {
	before := testutil.ToFloat64(dirCacheInvalidations.WithLabelValues("all", "signal"))
	RecordInvalidation("all", "signal")
	if got := testutil.ToFloat64(dirCacheInvalidations.WithLabelValues("all", "signal")) - before; got != 1 {
		t.Errorf("expected 1 invalidation, got %v", got)
	}
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("PROPFIND", "404"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("PROPFIND", "/missing", nil))
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("PROPFIND", "404")) - before; got != 1 {
		t.Errorf("expected 1 request recorded, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordRemoteCall("list", 10*time.Millisecond, true)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "drivedav_remote_calls_total") {
		t.Error("expected drivedav_remote_calls_total in exposition")
	}
}
