// Package drive is the HTTP client for the remote cloud drive: paginated
// child listings, download-URL issuance and byte-range reads.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/drivedav/drivedav/internal/logging"
	"github.com/drivedav/drivedav/internal/metrics"
	"github.com/drivedav/drivedav/internal/retry"
)

const (
	DefaultBaseURL = "https://drive-pc.quark.cn"

	origin    = "https://pan.quark.cn"
	referer   = "https://pan.quark.cn/"
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) quark-cloud-drive/2.5.20 Chrome/100.0.4896.160 Electron/18.3.5.4-b478491100 Safari/537.36 Channel/pckk_other_ch"

	listSort = "file_type:asc,updated_at:desc"
)

// Client talks to the drive API. It retries transient failures itself;
// callers never need to.
type Client struct {
	baseURL     string
	cookie      string
	httpClient  *http.Client
	retryConfig retry.Config
}

// Config holds client configuration.
type Config struct {
	BaseURL     string
	Cookie      string
	Timeout     time.Duration
	RetryConfig retry.Config
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.Cookie == "" {
		return nil, errors.New("drive cookie is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		cookie:  cfg.Cookie,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns: 100,
				// Object storage drops idle connections after 60s.
				IdleConnTimeout:     50 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		retryConfig: cfg.RetryConfig,
	}, nil
}

func (c *Client) applyHeaders(req *http.Request) {
	req.Header.Set("Origin", origin)
	req.Header.Set("Referer", referer)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Cookie", c.cookie)
}

// ListChildren fetches one page of the children of parentID. Pages start at 1.
func (c *Client) ListChildren(ctx context.Context, parentID string, page, pageSize int) (Page, error) {
	q := url.Values{}
	q.Set("pr", "ucpro")
	q.Set("fr", "pc")
	q.Set("pdir_fid", parentID)
	q.Set("_page", strconv.Itoa(page))
	q.Set("_size", strconv.Itoa(pageSize))
	q.Set("_fetch_total", "1")
	q.Set("_fetch_sub_dirs", "0")
	q.Set("_sort", listSort)

	logging.Debug("drive: list children",
		zap.String("parent_id", parentID),
		zap.Int("page", page),
		zap.Int("size", pageSize))

	var resp listResponse
	if err := c.doJSON(ctx, "list", http.MethodGet, c.baseURL+"/1/clouddrive/file/sort?"+q.Encode(), nil, &resp); err != nil {
		return Page{}, fmt.Errorf("list %s page %d: %w", parentID, page, err)
	}

	out := Page{
		Entries: make([]Entry, 0, len(resp.Data.List)),
		Total:   resp.Metadata.Total,
	}
	for _, item := range resp.Data.List {
		out.Entries = append(out.Entries, item.entry())
	}
	metrics.RecordPageFetch(len(out.Entries))
	return out, nil
}

// DownloadURL asks the drive for a fresh, signed download URL for a file.
func (c *Client) DownloadURL(ctx context.Context, id string) (string, error) {
	logging.Debug("drive: get download url", zap.String("file_id", id))

	var resp downloadResponse
	err := c.doJSON(ctx, "download_url", http.MethodPost,
		c.baseURL+"/1/clouddrive/file/download?pr=ucpro&fr=pc",
		downloadRequest{FIDs: []string{id}}, &resp)
	if err != nil {
		return "", fmt.Errorf("download url %s: %w", id, err)
	}

	for _, item := range resp.Data {
		if item.DownloadURL == "" {
			continue
		}
		if item.FID == id || item.FID == "" {
			return item.DownloadURL, nil
		}
	}
	return "", fmt.Errorf("download url %s: %w", id, ErrNotFound)
}

// ReadRange fetches length bytes starting at offset from a download URL.
// It returns io.EOF when offset lies beyond the end of the object.
func (c *Client) ReadRange(ctx context.Context, rawURL string, offset int64, length int) ([]byte, error) {
	if length <= 0 {
		return nil, nil
	}
	end := offset + int64(length) - 1
	logging.Debug("drive: read range",
		zap.Int64("start", offset),
		zap.Int64("end", end))

	start := time.Now()
	data, err := retry.DoWithResult(ctx, c.retryConfig, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, &FetchError{Op: "read_range", Err: err}
		}
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, end))
		c.applyHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, retry.Retryable(&FetchError{Op: "read_range", Err: err, transient: true})
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusPartialContent:
		case http.StatusOK:
			// Range ignored by the server: skip to offset ourselves.
			if _, err := io.CopyN(io.Discard, resp.Body, offset); err != nil {
				if errors.Is(err, io.EOF) {
					return nil, io.EOF
				}
				return nil, retry.Retryable(&FetchError{Op: "read_range", Status: resp.StatusCode, Err: err, transient: true})
			}
		case http.StatusRequestedRangeNotSatisfiable:
			return nil, io.EOF
		case http.StatusNotFound:
			return nil, fmt.Errorf("read_range: %w", ErrNotFound)
		default:
			return nil, statusError("read_range", resp)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, int64(length)))
		if err != nil {
			return nil, retry.Retryable(&FetchError{Op: "read_range", Status: resp.StatusCode, Err: err, transient: true})
		}
		return body, nil
	})
	metrics.RecordRemoteCall("read_range", time.Since(start), err == nil || errors.Is(err, io.EOF))
	if err != nil {
		return nil, err
	}
	metrics.RecordBytesDownloaded(len(data))
	return data, nil
}

// doJSON performs a JSON request with retries and decodes the response
// envelope into out.
func (c *Client) doJSON(ctx context.Context, op, method, rawURL string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return &FetchError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
	}

	start := time.Now()
	err := retry.Do(ctx, c.retryConfig, func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return &FetchError{Op: op, Err: err}
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		c.applyHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.Retryable(&FetchError{Op: op, Err: err, transient: true})
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return statusError(op, resp)
		}
		if resp.StatusCode == http.StatusNoContent {
			return &FetchError{Op: op, Status: resp.StatusCode, Err: errors.New("empty response")}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &FetchError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
		if env, ok := out.(interface{ header() envelope }); ok {
			if e := env.header(); e.Code != 0 {
				return &FetchError{Op: op, Status: resp.StatusCode, Code: e.Code, Err: errors.New(e.Message)}
			}
		}
		return nil
	})
	metrics.RecordRemoteCall(op, time.Since(start), err == nil)
	if err != nil && !errors.Is(err, ErrNotFound) {
		logging.Warn("drive request failed", zap.String("op", op), zap.Error(err))
	}
	return err
}

func (e envelope) header() envelope { return e }

// statusError turns a non-success response into a FetchError, marking
// server-side and throttling failures as retryable.
func statusError(op string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	detail := strings.TrimSpace(string(msg))
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}

	var env envelope
	if json.Unmarshal(msg, &env) == nil && env.Message != "" {
		detail = env.Message
	}

	fe := &FetchError{
		Op:        op,
		Status:    resp.StatusCode,
		Code:      env.Code,
		Err:       errors.New(detail),
		transient: retry.TransientStatus(resp.StatusCode),
	}
	if fe.transient {
		return retry.Retryable(fe)
	}
	return fe
}
