// Package metrics provides Prometheus metrics for drivedav.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivedav_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drivedav_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Directory cache metrics
	dirCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivedav_dircache_lookups_total",
			Help: "Directory cache lookups by result (hit, miss, expired)",
		},
		[]string{"result"},
	)

	dirCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drivedav_dircache_evictions_total",
			Help: "Directory listings evicted for capacity",
		},
	)

	dirCacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivedav_dircache_invalidations_total",
			Help: "Directory cache invalidations by scope and trigger",
		},
		[]string{"scope", "source"},
	)

	dirCachePopulations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivedav_dircache_populations_total",
			Help: "Directory listings fetched and inserted, by result",
		},
		[]string{"status"},
	)

	resolveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "drivedav_resolve_duration_seconds",
			Help:    "Time to resolve a path that missed the cache",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Remote drive metrics
	remoteCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drivedav_remote_call_duration_seconds",
			Help:    "Drive API call duration in seconds, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	remoteCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivedav_remote_calls_total",
			Help: "Total drive API calls",
		},
		[]string{"operation", "status"},
	)

	pageEntries = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "drivedav_list_page_entries",
			Help:    "Entries returned per listing page",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200},
		},
	)

	// Download metrics
	bytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drivedav_bytes_downloaded_total",
			Help: "Total bytes read from download URLs",
		},
	)

	urlRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivedav_download_url_refreshes_total",
			Help: "Download URLs re-issued for open files, by result",
		},
		[]string{"status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request metric. WebDAV paths are
// unbounded, so only the method is used as a label.
func RecordHTTPRequest(method string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordCacheLookup records a directory cache lookup: "hit", "miss" or "expired".
func RecordCacheLookup(result string) {
	dirCacheLookups.WithLabelValues(result).Inc()
}

// RecordCacheEviction records a capacity eviction.
func RecordCacheEviction() {
	dirCacheEvictions.Inc()
}

// RecordInvalidation records an invalidation of the given scope
// ("path", "parent", "all") triggered by source.
func RecordInvalidation(scope, source string) {
	dirCacheInvalidations.WithLabelValues(scope, source).Inc()
}

// RecordPopulation records one directory listing population.
func RecordPopulation(success bool) {
	dirCachePopulations.WithLabelValues(status(success)).Inc()
}

// RecordResolve records the duration of a resolve that went remote.
func RecordResolve(duration time.Duration) {
	resolveDuration.Observe(duration.Seconds())
}

// RecordRemoteCall records a drive API call.
func RecordRemoteCall(operation string, duration time.Duration, success bool) {
	remoteCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
	remoteCallsTotal.WithLabelValues(operation, status(success)).Inc()
}

// RecordPageFetch records the size of one listing page.
func RecordPageFetch(entries int) {
	pageEntries.Observe(float64(entries))
}

// RecordBytesDownloaded records bytes read from a download URL.
func RecordBytesDownloaded(n int) {
	bytesDownloaded.Add(float64(n))
}

// RecordURLRefresh records a download URL re-issue.
func RecordURLRefresh(success bool) {
	urlRefreshes.WithLabelValues(status(success)).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, rw.statusCode, time.Since(start))
	})
}
