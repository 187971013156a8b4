package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/drivedav/drivedav/internal/retry"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	c, err := New(Config{
		BaseURL: ts.URL,
		Cookie:  "session=abc",
		RetryConfig: retry.Config{
			MaxAttempts: 3,
			InitialWait: time.Millisecond,
			MaxWait:     time.Millisecond,
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_RequiresCookie(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error without cookie")
	}
}

func TestListChildren(t *testing.T) {
	var gotQuery, gotCookie string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/1/clouddrive/file/sort" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		gotCookie = r.Header.Get("Cookie")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": 200,
			"code":   0,
			"data": map[string]interface{}{
				"list": []map[string]interface{}{
					{"fid": "d1", "file_name": "docs", "pdir_fid": "0", "dir": true, "created_at": 1700000000000, "updated_at": 1700000001000},
					{"fid": "f1", "file_name": "a.txt", "pdir_fid": "0", "file": true, "size": 12},
				},
			},
			"metadata": map[string]interface{}{"_total": 2, "_count": 2, "_page": 1},
		})
	}))

	page, err := c.ListChildren(context.Background(), "0", 1, 50)
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("expected total 2, got %d", page.Total)
	}
	if len(page.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(page.Entries))
	}
	docs := page.Entries[0]
	if docs.ID != "d1" || docs.Name() != "docs" || !docs.IsDir() || docs.ParentID != "0" {
		t.Errorf("unexpected first entry: %+v", docs)
	}
	if !docs.ModTime().Equal(time.UnixMilli(1700000001000)) {
		t.Errorf("unexpected mtime %v", docs.ModTime())
	}
	if f := page.Entries[1]; f.IsDir() || f.Size() != 12 {
		t.Errorf("unexpected second entry: %+v", f)
	}
	if gotCookie != "session=abc" {
		t.Errorf("expected cookie header, got %q", gotCookie)
	}
	for _, want := range []string{"pdir_fid=0", "_page=1", "_size=50", "_fetch_total=1"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
}

func TestListChildren_NotFound(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := c.ListChildren(context.Background(), "missing", 1, 50)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListChildren_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"status":200,"code":0,"data":{"list":[]},"metadata":{"_total":0}}`))
	}))

	page, err := c.ListChildren(context.Background(), "0", 1, 50)
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}
	if len(page.Entries) != 0 {
		t.Errorf("expected empty page, got %d entries", len(page.Entries))
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestListChildren_PermanentErrors(t *testing.T) {
	var attempts atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"status":403,"code":31001,"message":"require login"}`))
	}))

	_, err := c.ListChildren(context.Background(), "0", 1, 50)
	fe, ok := AsFetchError(err)
	if !ok {
		t.Fatalf("expected FetchError, got %T: %v", err, err)
	}
	if fe.Status != http.StatusForbidden || fe.Code != 31001 || fe.Transient() {
		t.Errorf("unexpected fetch error: %+v", fe)
	}
	if attempts.Load() != 1 {
		t.Errorf("permanent errors must not be retried, got %d attempts", attempts.Load())
	}
}

func TestListChildren_EnvelopeCode(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":200,"code":41004,"message":"folder gone","data":{"list":[]},"metadata":{}}`))
	}))

	_, err := c.ListChildren(context.Background(), "x", 1, 50)
	fe, ok := AsFetchError(err)
	if !ok || fe.Code != 41004 {
		t.Fatalf("expected envelope code error, got %v", err)
	}
}

func TestListChildren_MalformedBody(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))

	_, err := c.ListChildren(context.Background(), "0", 1, 50)
	fe, ok := AsFetchError(err)
	if !ok || fe.Transient() {
		t.Fatalf("expected permanent decode error, got %v", err)
	}
}

func TestDownloadURL(t *testing.T) {
	var req downloadRequest
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/1/clouddrive/file/download" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": 200,
			"data":   []map[string]string{{"fid": "f1", "download_url": "https://dl.example/f1?Expires=1"}},
		})
	}))

	u, err := c.DownloadURL(context.Background(), "f1")
	if err != nil {
		t.Fatalf("DownloadURL: %v", err)
	}
	if u != "https://dl.example/f1?Expires=1" {
		t.Errorf("unexpected url %q", u)
	}
	if len(req.FIDs) != 1 || req.FIDs[0] != "f1" {
		t.Errorf("unexpected request body %+v", req)
	}
}

func TestDownloadURL_Empty(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":200,"data":[]}`))
	}))

	if _, err := c.DownloadURL(context.Background(), "f1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReadRange(t *testing.T) {
	content := []byte("0123456789abcdef")
	var gotRange string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		http.ServeContent(w, r, "blob", time.Time{}, bytes.NewReader(content))
	}))

	data, err := c.ReadRange(context.Background(), c.baseURL+"/blob", 4, 6)
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if string(data) != "456789" {
		t.Errorf("expected 456789, got %q", data)
	}
	if gotRange != "bytes=4-9" {
		t.Errorf("unexpected Range header %q", gotRange)
	}

	if _, err := c.ReadRange(context.Background(), c.baseURL+"/blob", 100, 4); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF past the end, got %v", err)
	}
}

func TestReadRange_RangeIgnored(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123456789"))
	}))

	data, err := c.ReadRange(context.Background(), c.baseURL+"/blob", 3, 4)
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if string(data) != "3456" {
		t.Errorf("expected 3456, got %q", data)
	}
}
