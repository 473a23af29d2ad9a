package extractor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestExtractSuccessSendsUserAgent(t *testing.T) {
	page, err := os.ReadFile("testdata/gold_dual.html")
	if err != nil {
		t.Fatal(err)
	}

	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	}))
	defer srv.Close()

	dump := filepath.Join(t.TempDir(), "debug", "page.html")
	ext := New(Options{URL: srv.URL, Timeout: time.Second, Layout: dualLayout(), DebugDumpPath: dump}, noopLogger())

	raw, err := ext.Extract(context.Background())
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if raw.Selling != "4,200" || raw.Buying != "4,150" {
		t.Fatalf("unexpected raw %+v", raw)
	}
	if !strings.HasPrefix(gotUA, "Mozilla/5.0") {
		t.Fatalf("browser-like user agent expected, got %q", gotUA)
	}
	if _, err := os.Stat(dump); err != nil {
		t.Fatalf("debug dump should be written: %v", err)
	}
}

func TestExtractHTTPErrorIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ext := New(Options{URL: srv.URL, Timeout: time.Second, Layout: dualLayout()}, noopLogger())
	_, err := ext.Extract(context.Background())

	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("HTTP 503 应返回 FetchError, got %v", err)
	}
	if ferr.StatusCode != http.StatusServiceUnavailable || ferr.URL != srv.URL {
		t.Fatalf("unexpected fetch error %+v", ferr)
	}
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("should wrap ErrUnexpectedStatus")
	}
}

func TestExtractOversizedBodyIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>"))
		_, _ = w.Write([]byte(strings.Repeat("<p>金價</p>", 1024)))
		_, _ = w.Write([]byte("</body></html>"))
	}))
	defer srv.Close()

	ext := New(Options{URL: srv.URL, Timeout: time.Second, Layout: dualLayout(), MaxBodyBytes: 4096}, noopLogger())
	_, err := ext.Extract(context.Background())

	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("超出上限的响应应返回 FetchError, got %v", err)
	}
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("should wrap ErrBodyTooLarge, got %v", err)
	}
	if ferr.StatusCode != http.StatusOK {
		t.Fatalf("unexpected fetch error %+v", ferr)
	}
}

func TestExtractBodyAtLimitIsAccepted(t *testing.T) {
	page, err := os.ReadFile("testdata/gold_dual.html")
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	}))
	defer srv.Close()

	ext := New(Options{URL: srv.URL, Timeout: time.Second, Layout: dualLayout(), MaxBodyBytes: int64(len(page))}, noopLogger())
	if _, err := ext.Extract(context.Background()); err != nil {
		t.Fatalf("body exactly at the limit should parse: %v", err)
	}
}

func TestExtractTimeoutIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ext := New(Options{URL: srv.URL, Timeout: 50 * time.Millisecond, Layout: dualLayout()}, noopLogger())
	_, err := ext.Extract(context.Background())

	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("超时应返回 FetchError, got %v", err)
	}
}

func TestExtractConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	ext := New(Options{URL: url, Timeout: time.Second, Layout: dualLayout()}, noopLogger())
	_, err := ext.Extract(context.Background())

	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if ferr.Unwrap() == nil {
		t.Fatalf("fetch error should carry its cause")
	}
}

func TestExtractMissingTableIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>維護中</p></body></html>"))
	}))
	defer srv.Close()

	ext := New(Options{URL: srv.URL, Timeout: time.Second, Layout: dualLayout()}, noopLogger())
	_, err := ext.Extract(context.Background())

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	var ferr *FetchError
	if errors.As(err, &ferr) {
		t.Fatalf("parse failure must not look like a fetch failure")
	}
}
