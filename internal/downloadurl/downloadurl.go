// Package downloadurl decides when a file's signed download URL must be
// re-issued, and keeps the per-handle copy of the URL current.
package downloadurl

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/drivedav/drivedav/internal/drive"
	"github.com/drivedav/drivedav/internal/logging"
	"github.com/drivedav/drivedav/internal/metrics"
)

// Margin is how long before its stated expiry a URL stops being used.
const Margin = 60 * time.Second

// ExpiresAt reads the Expires query parameter (Unix seconds) of rawURL.
// ok is false when the URL carries no Expires parameter. Only absolute
// http and https URLs are accepted.
func ExpiresAt(rawURL string) (t time.Time, ok bool, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse download url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return time.Time{}, false, fmt.Errorf("download url %q is not an absolute http(s) url", rawURL)
	}
	q := u.Query()
	if !q.Has("Expires") {
		return time.Time{}, false, nil
	}
	v := q.Get("Expires")
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse Expires %q: %w", v, err)
	}
	return time.Unix(secs, 0), true, nil
}

// Expired reports whether rawURL must not be used at now. A URL is
// expired once less than margin remains before its Expires time. Empty,
// malformed or non-http(s) URLs and unparsable Expires values count as
// expired; well-formed URLs without Expires never expire.
func Expired(rawURL string, now time.Time, margin time.Duration) bool {
	if rawURL == "" {
		return true
	}
	exp, ok, err := ExpiresAt(rawURL)
	if err != nil {
		return true
	}
	if !ok {
		return false
	}
	return exp.Sub(now) < margin
}

// Issuer hands out fresh download URLs.
type Issuer interface {
	DownloadURL(ctx context.Context, id string) (string, error)
}

// Tracker holds an open file's private copy of its entry and refreshes the
// copy's download URL when it is about to expire. Cached listings are
// never touched.
type Tracker struct {
	issuer Issuer
	now    func() time.Time

	mu    sync.Mutex
	entry drive.Entry
}

// NewTracker creates a tracker for entry. The entry is copied.
func NewTracker(entry drive.Entry, issuer Issuer) *Tracker {
	return &Tracker{issuer: issuer, now: time.Now, entry: entry}
}

// Entry returns the tracker's current copy of the entry.
func (t *Tracker) Entry() drive.Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entry
}

// URL returns a download URL valid for at least Margin, requesting a new
// one from the issuer when the held URL is absent or expiring.
func (t *Tracker) URL(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !Expired(t.entry.DownloadURL, t.now(), Margin) {
		return t.entry.DownloadURL, nil
	}

	fresh, err := t.issuer.DownloadURL(ctx, t.entry.ID)
	metrics.RecordURLRefresh(err == nil)
	if err != nil {
		return "", fmt.Errorf("refresh download url for %s: %w", t.entry.ID, err)
	}
	logging.Debug("downloadurl: refreshed",
		zap.String("file_id", t.entry.ID),
		zap.Bool("had_url", t.entry.DownloadURL != ""))
	t.entry.DownloadURL = fresh
	return fresh, nil
}
