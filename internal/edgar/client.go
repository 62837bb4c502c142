// Package edgar implements the resilient access layer for the EDGAR
// upstream: a retrying HTTP client shared by every discovery and download
// path, plus identifier normalization and URL construction.
package edgar

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/edgar-mirror/internal/metrics"
	"github.com/JakeFAU/edgar-mirror/internal/ratelimit"
)

// ErrExhausted is returned when every retry attempt against one URL failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// StatusError reports a non-2xx response outside the retryable set.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.Code, e.URL)
}

const (
	defaultMaxAttempts = 10
	backoffSeed        = 1 * time.Second
	backoffCap         = 60 * time.Second

	connectTimeout  = 10 * time.Second
	metadataTimeout = 60 * time.Second
	documentTimeout = 120 * time.Second
)

// retryableStatus is the set of statuses treated as transient. EDGAR uses
// 403 for throttling as well as genuine denial, so it is retried too.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusForbidden,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Config controls Client construction.
type Config struct {
	// Contact identifies the operator to EDGAR; it must contain an email
	// address. The client refuses to start without it.
	Contact string
	// Bases defaults to the production endpoints when zero.
	Bases BaseURLs
	// MaxAttempts defaults to 10.
	MaxAttempts int
	// Limiter paces every attempt, including retries. Optional.
	Limiter *ratelimit.Limiter
	// Sleep is swapped out in tests; defaults to a context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Client is the retrying transport used by all network operations. One
// instance, holding one pooled http.Transport, is shared by every worker.
type Client struct {
	bases       BaseURLs
	httpClient  *http.Client
	limiter     *ratelimit.Limiter
	logger      *zap.Logger
	userAgent   string
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewClient builds a Client. It fails fast when the contact string does not
// look like it contains an email address.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if !strings.Contains(cfg.Contact, "@") {
		return nil, fmt.Errorf("contact string must include an email address, got %q", cfg.Contact)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	bases := cfg.Bases
	if bases == (BaseURLs{}) {
		bases = DefaultBaseURLs()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 32,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: connectTimeout,
	}
	return &Client{
		bases:       bases,
		httpClient:  &http.Client{Transport: transport},
		limiter:     cfg.Limiter,
		logger:      logger,
		userAgent:   cfg.Contact,
		maxAttempts: maxAttempts,
		sleep:       sleep,
	}, nil
}

// Bases exposes the URL builders bound to this client.
func (c *Client) Bases() BaseURLs { return c.bases }

// GetJSON fetches url and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.get(ctx, "json", url, metadataTimeout)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// GetText fetches url and returns the body as a string.
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	body, err := c.get(ctx, "text", url, metadataTimeout)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetBytes fetches url and returns the raw body. Used for large bulk index
// files, including the gzip variant.
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	return c.get(ctx, "bytes", url, documentTimeout)
}

// DownloadFile streams url into target. The call is idempotent: an existing
// non-empty target is left untouched with no network I/O. The body is
// written to a sibling .part path and renamed into place so a partial file
// is never visible under the final name. A 404 response is treated as a
// skip (older filing directories list entries that no longer resolve) and
// reports zero bytes written.
func (c *Client) DownloadFile(ctx context.Context, url, target string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return 0, fmt.Errorf("create dir for %s: %w", target, err)
	}
	if info, err := os.Stat(target); err == nil && info.Size() > 0 {
		metrics.ObserveDocumentSkipped("exists")
		return 0, nil
	}

	var written int64
	handle := func(resp *http.Response) error {
		if resp.StatusCode == http.StatusNotFound {
			metrics.ObserveDocumentSkipped("missing")
			c.logger.Debug("document missing upstream, skipping",
				zap.String("url", url))
			return nil
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{Code: resp.StatusCode, URL: url}
		}
		tmp := target + ".part"
		f, err := os.Create(tmp)
		if err != nil {
			return fmt.Errorf("create %s: %w", tmp, err)
		}
		n, err := io.Copy(f, resp.Body)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("write %s: %w", tmp, err)
		}
		if err := os.Rename(tmp, target); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("rename %s: %w", tmp, err)
		}
		written = n
		metrics.ObserveBytes(n)
		return nil
	}

	if err := c.doWithRetry(ctx, "download", url, documentTimeout, handle); err != nil {
		return 0, err
	}
	return written, nil
}

func (c *Client) get(ctx context.Context, kind, url string, timeout time.Duration) ([]byte, error) {
	var body []byte
	handle := func(resp *http.Response) error {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{Code: resp.StatusCode, URL: url}
		}
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body of %s: %w", url, err)
		}
		body = b
		return nil
	}
	if err := c.doWithRetry(ctx, kind, url, timeout, handle); err != nil {
		return nil, err
	}
	return body, nil
}

// doWithRetry runs one request with the shared retry policy: the limiter is
// acquired before every attempt, transient failures back off exponentially
// (seed 1s, doubled, capped at 60s, plus up to 1s of jitter), and the
// attempt ceiling escalates to ErrExhausted. A non-retryable response is
// handed to handle, whose error ends the loop immediately.
func (c *Client) doWithRetry(
	ctx context.Context,
	kind, url string,
	timeout time.Duration,
	handle func(*http.Response) error,
) error {
	backoff := backoffSeed
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			metrics.ObserveRetry(kind)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		resp, err := c.attempt(ctx, url, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("fetch %s: %w", url, ctx.Err())
			}
			c.logger.Debug("request failed, backing off",
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			if serr := c.sleep(ctx, backoff+jitter()); serr != nil {
				return serr
			}
			backoff = nextBackoff(backoff)
			continue
		}

		metrics.ObserveRequest(kind, resp.StatusCode)
		if retryableStatus(resp.StatusCode) {
			drain(resp)
			c.logger.Debug("retryable status, backing off",
				zap.String("url", url),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1))
			if serr := c.sleep(ctx, backoff+jitter()); serr != nil {
				return serr
			}
			backoff = nextBackoff(backoff)
			continue
		}

		herr := handle(resp)
		drain(resp)
		return herr
	}
	return fmt.Errorf("fetch %s after %d attempts: %w", url, c.maxAttempts, ErrExhausted)
}

func (c *Client) attempt(ctx context.Context, url string, timeout time.Duration) (*http.Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	resp, err := c.newRequestAndDo(reqCtx, url)
	if err != nil {
		cancel()
		return nil, err
	}
	// Tie the body's lifetime to the request context.
	resp.Body = &cancelReadCloser{rc: resp.Body, cancel: cancel}
	return resp, nil
}

func (c *Client) newRequestAndDo(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json,text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	return c.httpClient.Do(req)
}

type cancelReadCloser struct {
	rc     io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Read(p []byte) (int, error) { return c.rc.Read(p) }

func (c *cancelReadCloser) Close() error {
	err := c.rc.Close()
	c.cancel()
	return err
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
}

func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > backoffCap {
		return backoffCap
	}
	return next
}

// jitter returns a random duration in [0, 1s).
func jitter() time.Duration {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(time.Second)))
	if err != nil {
		return 500 * time.Millisecond
	}
	return time.Duration(n.Int64())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	}
}
