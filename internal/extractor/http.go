package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultMaxBodyBytes = 8 << 20
	defaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Options parameterise the page extractor.
type Options struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
	Layout    Layout
	// MaxBodyBytes caps the response body; zero means 8 MiB.
	MaxBodyBytes int64
	// DebugDumpPath, when set, receives the parsed page after every fetch.
	// It is a diagnostic aid only.
	DebugDumpPath string
}

// HTTP fetches the rate page with a single GET and extracts raw fields.
type HTTP struct {
	opts   Options
	logger zerolog.Logger
	client *http.Client
}

// New constructs a page extractor.
func New(opts Options, logger zerolog.Logger) *HTTP {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &HTTP{
		opts:   opts,
		logger: logger.With().Str("component", "extractor").Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

// Extract performs the GET and parses the response. Transport failures come
// back as *FetchError and missing markup as *ParseError.
func (h *HTTP) Extract(ctx context.Context) (Raw, error) {
	body, contentType, err := h.fetch(ctx)
	if err != nil {
		return Raw{}, err
	}

	doc, err := decodeDocument(bytes.NewReader(body), contentType)
	if err != nil {
		return Raw{}, err
	}
	if h.opts.DebugDumpPath != "" {
		h.dump(doc)
	}

	raw, err := h.opts.Layout.extract(doc)
	if err != nil {
		return Raw{}, err
	}
	if len(raw.Duplicates) > 0 {
		h.logger.Warn().Strs("labels", raw.Duplicates).Msg("labels matched several rows; kept the last match")
	}
	return raw, nil
}

func (h *HTTP) fetch(ctx context.Context) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.opts.URL, nil)
	if err != nil {
		return nil, "", &FetchError{URL: h.opts.URL, Err: err}
	}
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", defaultUserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, "", &FetchError{URL: h.opts.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &FetchError{
			URL:        h.opts.URL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status),
		}
	}

	limit := h.opts.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", &FetchError{URL: h.opts.URL, StatusCode: resp.StatusCode, Err: err}
	}
	if int64(len(body)) > limit {
		return nil, "", &FetchError{
			URL:        h.opts.URL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, limit),
		}
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (h *HTTP) dump(doc *html.Node) {
	path := h.opts.DebugDumpPath
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			h.logger.Debug().Err(err).Str("path", path).Msg("debug dump skipped")
			return
		}
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		h.logger.Debug().Err(err).Msg("debug dump render failed")
		return
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		h.logger.Debug().Err(err).Str("path", path).Msg("debug dump write failed")
	}
}

var _ Extractor = (*HTTP)(nil)
