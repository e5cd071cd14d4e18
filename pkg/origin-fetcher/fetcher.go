package originfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultContentType is used when the origin omits Content-Type.
	DefaultContentType = "text/plain"
	// RequestTimeout is the timeout of the default HTTP client.
	RequestTimeout = 30 * time.Second
)

var (
	ErrOriginUnreachable = errors.New("origin unreachable")
	ErrOriginStatus      = errors.New("origin error")
)

// UnreachableError is returned when the origin could not be reached
// or the response body could not be read.
type UnreachableError struct {
	URL string
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("origin unreachable: %s: %v", e.URL, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

func (e *UnreachableError) Is(target error) bool { return target == ErrOriginUnreachable }

// StatusError is returned when the origin answers with an error status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("origin error: %s: status %d", e.URL, e.StatusCode)
}

func (e *StatusError) Is(target error) bool { return target == ErrOriginStatus }

// Response is a fully buffered origin response.
type Response struct {
	Content     []byte
	ContentType string
}

// Fetcher retrieves resources from a single origin.
type Fetcher struct {
	base   string
	client *http.Client
}

// New creates a fetcher for the given origin base URL.
// If client is nil, a client with RequestTimeout is used.
func New(base string, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: RequestTimeout}
	}
	return &Fetcher{
		base:   strings.TrimRight(base, "/"),
		client: client,
	}
}

// URL returns the origin URL for the given request path.
func (f *Fetcher) URL(path string) string {
	return f.base + path
}

// Fetch performs a GET against the origin for path and buffers the body.
// Query strings, request headers and methods are never forwarded.
func (f *Fetcher) Fetch(ctx context.Context, path string) (Response, error) {
	originURL := f.URL(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, originURL, nil)
	if err != nil {
		return Response{}, &UnreachableError{URL: originURL, Err: err}
	}
	res, err := f.client.Do(req)
	if err != nil {
		return Response{}, &UnreachableError{URL: originURL, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, res.Body)
		return Response{}, &StatusError{URL: originURL, StatusCode: res.StatusCode}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Response{}, &UnreachableError{URL: originURL, Err: err}
	}
	contentType := res.Header.Get("Content-Type")
	if contentType == "" {
		contentType = DefaultContentType
	}
	return Response{Content: body, ContentType: contentType}, nil
}
