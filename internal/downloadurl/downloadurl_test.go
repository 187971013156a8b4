package downloadurl

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/drivedav/drivedav/internal/drive"
)

var now = time.Unix(1_700_000_000, 0)

func urlExpiring(at time.Time) string {
	return fmt.Sprintf("https://dl.example.com/file?Expires=%d&Signature=abc", at.Unix())
}

func TestExpired(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"thirty seconds left", urlExpiring(now.Add(30 * time.Second)), true},
		{"two minutes left", urlExpiring(now.Add(120 * time.Second)), false},
		{"exactly the margin", urlExpiring(now.Add(60 * time.Second)), false},
		{"one second under margin", urlExpiring(now.Add(59 * time.Second)), true},
		{"already past", urlExpiring(now.Add(-time.Hour)), true},
		{"empty", "", true},
		{"no expires", "https://dl.example.com/file?Signature=abc", false},
		{"bad expires", "https://dl.example.com/file?Expires=soon", true},
		{"malformed url", "://bad url", true},
		{"not a url", "not a url", true},
		{"no scheme", "dl.example.com/file?Signature=abc", true},
		{"relative path", "/relative/path", true},
		{"no host", "https:///file?Expires=4102444800", true},
		{"unsupported scheme", "ftp://dl.example.com/file", true},
		{"empty expires", "https://dl.example.com/f?Expires=", true},
		{"plain http", "http://dl.example.com/file", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Expired(tt.url, now, Margin); got != tt.want {
				t.Errorf("Expired(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestExpiresAt(t *testing.T) {
	exp, ok, err := ExpiresAt(urlExpiring(now))
	if err != nil || !ok {
		t.Fatalf("ExpiresAt: %v, %v", ok, err)
	}
	if !exp.Equal(now) {
		t.Errorf("ExpiresAt = %v, want %v", exp, now)
	}

	if _, ok, err := ExpiresAt("https://dl.example.com/file"); ok || err != nil {
		t.Errorf("missing Expires: ok=%v err=%v", ok, err)
	}
	for _, bad := range []string{
		"https://dl.example.com/file?Expires=x",
		"https://dl.example.com/file?Expires=",
		"dl.example.com/file?Expires=4102444800",
	} {
		if _, _, err := ExpiresAt(bad); err == nil {
			t.Errorf("ExpiresAt(%q): expected error", bad)
		}
	}
}

type fakeIssuer struct {
	calls int
	url   string
	err   error
}

func (f *fakeIssuer) DownloadURL(_ context.Context, id string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func TestTrackerKeepsFreshURL(t *testing.T) {
	fresh := urlExpiring(now.Add(time.Hour))
	issuer := &fakeIssuer{}
	tr := NewTracker(drive.Entry{ID: "f1", DownloadURL: fresh}, issuer)
	tr.now = func() time.Time { return now }

	got, err := tr.URL(context.Background())
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	if got != fresh || issuer.calls != 0 {
		t.Errorf("got %q after %d issuer calls, want cached URL and no calls", got, issuer.calls)
	}
}

func TestTrackerRefreshesExpiringURL(t *testing.T) {
	replacement := urlExpiring(now.Add(time.Hour))
	issuer := &fakeIssuer{url: replacement}
	original := drive.Entry{ID: "f1", DownloadURL: urlExpiring(now.Add(30 * time.Second))}
	tr := NewTracker(original, issuer)
	tr.now = func() time.Time { return now }

	got, err := tr.URL(context.Background())
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	if got != replacement {
		t.Errorf("URL = %q, want %q", got, replacement)
	}
	if tr.Entry().DownloadURL != replacement {
		t.Error("tracker copy not updated")
	}
	if original.DownloadURL == replacement {
		t.Error("caller's entry must not change")
	}

	if _, err := tr.URL(context.Background()); err != nil {
		t.Fatalf("URL again: %v", err)
	}
	if issuer.calls != 1 {
		t.Errorf("issuer called %d times, want 1", issuer.calls)
	}
}

func TestTrackerIssuesMissingURL(t *testing.T) {
	issuer := &fakeIssuer{url: "https://dl.example.com/file"}
	tr := NewTracker(drive.Entry{ID: "f1"}, issuer)

	if _, err := tr.URL(context.Background()); err != nil {
		t.Fatalf("URL: %v", err)
	}
	if issuer.calls != 1 {
		t.Errorf("issuer called %d times, want 1", issuer.calls)
	}
}

func TestTrackerIssuerError(t *testing.T) {
	tr := NewTracker(drive.Entry{ID: "gone"}, &fakeIssuer{err: drive.ErrNotFound})

	_, err := tr.URL(context.Background())
	if !errors.Is(err, drive.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if tr.Entry().DownloadURL != "" {
		t.Error("failed refresh must leave the URL empty")
	}
}
