package webdav

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/webdav"

	"github.com/drivedav/drivedav/internal/logging"
	"github.com/drivedav/drivedav/internal/metrics"
)

// AdminInvalidatePath is the endpoint that clears cached listings.
const AdminInvalidatePath = "/-/cache/invalidate"

// Invalidator clears cached directory listings.
type Invalidator interface {
	Invalidate(path string)
	InvalidateParent(path string)
	InvalidateAll()
}

// Options configures the HTTP handler.
type Options struct {
	Prefix      string       // URL prefix stripped before path lookup
	AutoIndex   bool         // HTML listing for GET on a directory
	Credentials *Credentials // nil disables authentication
}

// NewHandler creates the WebDAV HTTP handler, with request logging,
// metrics and optional basic auth in front.
func NewHandler(fs *DriveFS, inv Invalidator, opts Options) http.Handler {
	davHandler := &webdav.Handler{
		FileSystem: fs,
		LockSystem: webdav.NewMemLS(),
		Prefix:     opts.Prefix,
		Logger:     logDAVError,
	}

	var dav http.Handler = davHandler
	if opts.AutoIndex {
		dav = autoIndex(fs, opts.Prefix, dav)
	}
	dav = readOnlyGuard(dav)
	admin := adminHandler(fs, inv)

	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == AdminInvalidatePath {
			admin.ServeHTTP(w, r)
			return
		}
		dav.ServeHTTP(w, r)
	})
	if opts.Credentials != nil {
		h = BasicAuthMiddleware(*opts.Credentials)(h)
	}
	h = metrics.Middleware(h)
	return logging.Middleware(h)
}

var writeMethods = map[string]bool{
	http.MethodPut:    true,
	http.MethodDelete: true,
	"MKCOL":           true,
	"COPY":            true,
	"MOVE":            true,
	"PROPPATCH":       true,
}

// readOnlyGuard refuses every method that would modify the share.
func readOnlyGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if writeMethods[r.Method] {
			http.Error(w, "Read-only file system", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// autoIndex answers GET and HEAD on directories with an HTML listing and
// passes everything else on.
func autoIndex(fs *DriveFS, prefix string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		name := strings.TrimPrefix(r.URL.Path, prefix)
		if prefix != "" && len(name) == len(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		fi, err := fs.Stat(r.Context(), name)
		if err != nil || !fi.IsDir() {
			next.ServeHTTP(w, r)
			return
		}
		entries, err := fs.List(r.Context(), name)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		serveIndex(w, r, r.URL.Path, entries)
	})
}

type invalidateResponse struct {
	Scope     string `json:"scope"`
	Path      string `json:"path,omitempty"`
	RequestID string `json:"request_id"`
}

// adminHandler serves POST /-/cache/invalidate?scope=path|parent|all&path=/x.
// Paths are WebDAV paths, mapped under the configured root.
func adminHandler(fs *DriveFS, inv Invalidator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		q := r.URL.Query()
		scope, p := q.Get("scope"), q.Get("path")
		if scope == "" {
			scope = "all"
		}

		switch scope {
		case "all":
			inv.InvalidateAll()
		case "path", "parent":
			if p == "" {
				http.Error(w, "path is required for scope "+scope, http.StatusBadRequest)
				return
			}
			remote := fs.RemotePath(p)
			if scope == "path" {
				inv.Invalidate(remote)
			} else {
				inv.InvalidateParent(remote)
			}
		default:
			http.Error(w, "unknown scope "+scope, http.StatusBadRequest)
			return
		}

		logging.WithContext(r.Context()).Info("cache invalidated via admin endpoint",
			zap.String("scope", scope),
			zap.String("path", p))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(invalidateResponse{
			Scope:     scope,
			Path:      p,
			RequestID: logging.GetRequestID(r.Context()),
		})
	})
}

func logDAVError(r *http.Request, err error) {
	if err == nil || notExist(err) {
		return
	}
	logging.WithContext(r.Context()).Warn("webdav request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
}
