package edgar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(Config{
		Contact:     "Mirror Test test@example.com",
		Bases:       BaseURLs{Data: srv.URL, Archives: srv.URL, Browse: srv.URL},
		MaxAttempts: 4,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresContactEmail(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Contact: "no email here"}, zap.NewNop())
	require.Error(t, err)

	_, err = NewClient(Config{Contact: ""}, zap.NewNop())
	require.Error(t, err)
}

func TestGetJSON_RetriesTransientStatuses(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.WriteHeader(http.StatusForbidden) // EDGAR throttling disguise
		default:
			_, _ = w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.GetJSON(context.Background(), srv.URL+"/x.json", &out))
	require.True(t, out.OK)
	require.Equal(t, int32(3), calls.Load())
}

func TestGetText_NonRetryableStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.GetText(context.Background(), srv.URL+"/page")
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, http.StatusUnauthorized, serr.Code)
}

func TestGetBytes_ExhaustsCeiling(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.GetBytes(context.Background(), srv.URL+"/big")
	require.ErrorIs(t, err, ErrExhausted)
	require.Equal(t, int32(4), calls.Load())
}

func TestDownloadFile_WritesAtomically(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>8-K</html>"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	target := filepath.Join(t.TempDir(), "0000320193", "doc.htm")
	n, err := c.DownloadFile(context.Background(), srv.URL+"/doc.htm", target)
	require.NoError(t, err)
	require.Equal(t, int64(16), n)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "<html>8-K</html>", string(data))

	_, err = os.Stat(target + ".part")
	require.True(t, os.IsNotExist(err))
}

func TestDownloadFile_IdempotentWhenPresent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("fresh body"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	target := filepath.Join(t.TempDir(), "doc.htm")
	require.NoError(t, os.WriteFile(target, []byte("already here"), 0o600))

	n, err := c.DownloadFile(context.Background(), srv.URL+"/doc.htm", target)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Zero(t, calls.Load(), "no network request for an existing file")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "already here", string(data))
}

func TestDownloadFile_404IsSkip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	target := filepath.Join(t.TempDir(), "gone.htm")
	n, err := c.DownloadFile(context.Background(), srv.URL+"/gone.htm", target)
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = os.Stat(target)
	require.True(t, os.IsNotExist(err))
}

func TestDoWithRetry_NetworkErrorThenSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)

	// A connection refused error must be retried, not surfaced.
	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	_, err := c.GetText(context.Background(), deadURL+"/x")
	require.ErrorIs(t, err, ErrExhausted)
	require.False(t, errors.Is(err, context.Canceled))
}
