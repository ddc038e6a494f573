package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/splitget/splitget/internal/domain"
)

// Common errors.
var (
	ErrRangeNotSupported = errors.New("fetch: server does not support range requests")
	ErrNotFound          = errors.New("fetch: resource not found")
	ErrForbidden         = errors.New("fetch: access forbidden")
	ErrUnauthorized      = errors.New("fetch: unauthorized")
	ErrServerError       = errors.New("fetch: server error")
)

// Options configures the HTTP client.
type Options struct {
	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Every worker talks to the same host, so this should be at least
	// the connection count. Default: 16
	MaxIdleConnsPerHost int

	// RetryAttempts is the maximum number of retries when issuing a request.
	// Default: 5
	RetryAttempts int

	// RetryBackoff is the initial backoff duration.
	// Default: 1s
	RetryBackoff time.Duration

	// RetryMaxBackoff is the maximum backoff duration.
	// Default: 30s
	RetryMaxBackoff time.Duration
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 16,
		RetryAttempts:       5,
		RetryBackoff:        time.Second,
		RetryMaxBackoff:     30 * time.Second,
	}
}

// ResourceInfo contains metadata about a remote file.
type ResourceInfo struct {
	Size          int64
	ETag          string
	AcceptsRanges bool
}

// Client is an HTTP client tuned for segmented file downloads.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts Options) *Client {
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = DefaultOptions().MaxIdleConnsPerHost
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = DefaultOptions().RetryAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultOptions().RetryBackoff
	}
	if opts.RetryMaxBackoff <= 0 {
		opts.RetryMaxBackoff = DefaultOptions().RetryMaxBackoff
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true, // We want raw bytes for range requests
	}

	return &Client{
		// No overall timeout: range bodies stream for minutes.
		// Cancellation comes from the request context.
		client: &http.Client{Transport: transport},
		opts:   opts,
	}
}

// Probe determines the total size of the resource and whether the server
// honors range requests. It tries HEAD first and falls back to a one-byte
// range request for servers that reject HEAD or omit Content-Length.
func (c *Client) Probe(ctx context.Context, url string) (*ResourceInfo, error) {
	info, headErr := c.head(ctx, url)
	if headErr == nil && info.Size >= 0 {
		return info, nil
	}

	if probed, err := c.probeRange(ctx, url); err == nil {
		return probed, nil
	}

	if headErr != nil {
		return nil, headErr
	}
	return nil, domain.ErrLengthUnknown
}

func (c *Client) head(ctx context.Context, url string) (*ResourceInfo, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("%w: %d %s", ErrServerError, resp.StatusCode, resp.Status)
			continue
		}

		if err := checkStatusCode(resp.StatusCode); err != nil {
			return nil, err
		}

		return &ResourceInfo{
			Size:          resp.ContentLength,
			ETag:          cleanETag(resp.Header.Get("ETag")),
			AcceptsRanges: resp.Header.Get("Accept-Ranges") == "bytes",
		}, nil
	}

	return nil, fmt.Errorf("head request failed after %d attempts: %w", c.opts.RetryAttempts+1, lastErr)
}

// probeRange requests the first byte of the resource. A 206 answer carries
// the total size in Content-Range; a 200 answer reveals a server that
// ignores ranges but still tells us the size via Content-Length.
func (c *Client) probeRange(ctx context.Context, url string) (*ResourceInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		_, _, total, err := ParseContentRange(resp.Header.Get("Content-Range"))
		if err != nil {
			return nil, err
		}
		if total < 0 {
			return nil, domain.ErrLengthUnknown
		}
		return &ResourceInfo{
			Size:          total,
			ETag:          cleanETag(resp.Header.Get("ETag")),
			AcceptsRanges: true,
		}, nil

	case http.StatusOK:
		if resp.ContentLength < 0 {
			return nil, domain.ErrLengthUnknown
		}
		return &ResourceInfo{
			Size:          resp.ContentLength,
			ETag:          cleanETag(resp.Header.Get("ETag")),
			AcceptsRanges: false,
		}, nil

	default:
		if err := checkStatusCode(resp.StatusCode); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

// GetRange requests the half-open byte range [start, end). The Range header
// uses inclusive offsets, so the last byte asked for is end-1.
//
// A 206 response streams exactly the requested window. A 200 response is
// accepted only for start == 0: the full body is still byte-correct there,
// anywhere else it would corrupt the output.
func (c *Client) GetRange(ctx context.Context, url string, start, end int64) (io.ReadCloser, error) {
	if start >= end {
		return nil, fmt.Errorf("invalid range [%d, %d)", start, end)
	}

	var lastErr error

	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end-1))

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		// Server errors are retryable
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: %d %s", ErrServerError, resp.StatusCode, resp.Status)
			continue
		}

		switch resp.StatusCode {
		case http.StatusPartialContent:
			return resp.Body, nil

		case http.StatusOK:
			if start == 0 {
				return resp.Body, nil
			}
			resp.Body.Close()
			return nil, ErrRangeNotSupported

		case http.StatusRequestedRangeNotSatisfiable:
			resp.Body.Close()
			return nil, ErrRangeNotSupported

		default:
			resp.Body.Close()
			if err := checkStatusCode(resp.StatusCode); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
	}

	return nil, fmt.Errorf("range request failed after %d attempts: %w", c.opts.RetryAttempts+1, lastErr)
}

// backoff waits for an exponentially increasing duration with jitter.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	backoff := c.opts.RetryBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > c.opts.RetryMaxBackoff {
		backoff = c.opts.RetryMaxBackoff
	}

	// Add jitter: 0.5 to 1.5 of backoff
	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}

// checkStatusCode returns an appropriate error for non-success status codes.
func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("unexpected status code: %d", code)
	}
}

// cleanETag removes quotes from an ETag value.
func cleanETag(etag string) string {
	etag = strings.TrimPrefix(etag, "W/")
	etag = strings.Trim(etag, `"`)
	return etag
}

// ParseContentRange parses a Content-Range header value.
// Returns start, end, total bytes. Total may be -1 if unknown.
func ParseContentRange(header string) (start, end, total int64, err error) {
	// Format: bytes start-end/total or bytes start-end/*
	header = strings.TrimPrefix(header, "bytes ")
	parts := strings.Split(header, "/")
	if len(parts) != 2 {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %s", header)
	}

	rangeParts := strings.Split(parts[0], "-")
	if len(rangeParts) != 2 {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %s", header)
	}

	start, err = strconv.ParseInt(rangeParts[0], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid start byte: %w", err)
	}

	end, err = strconv.ParseInt(rangeParts[1], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid end byte: %w", err)
	}

	if parts[1] == "*" {
		total = -1
	} else {
		total, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid total bytes: %w", err)
		}
	}

	return start, end, total, nil
}
