package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Source retrieves the raw tabular text. Implementations must not serve a
// cached copy; every call reflects the resource as it is now.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (string, error)
}

// maxResourceBytes caps the resource size. A larger resource is rejected
// rather than cut, so a partial row never becomes a target.
const maxResourceBytes = 1 << 20

// HTTPSource fetches the resource over HTTP(S).
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (s *HTTPSource) Name() string { return s.URL }

func (s *HTTPSource) Fetch(ctx context.Context) (string, error) {
	if s.URL == "" {
		return "", errors.New("catalog: http source url is empty")
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Pragma", "no-cache")

	res, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", fmt.Errorf("HTTP %d", res.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(res.Body, maxResourceBytes+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if len(b) > maxResourceBytes {
		return "", fmt.Errorf("resource exceeds %d bytes", maxResourceBytes)
	}
	return string(b), nil
}

// FileSource reads the resource from local disk.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return s.Path }

func (s FileSource) Fetch(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(f, maxResourceBytes+1))
	if err != nil {
		return "", err
	}
	if len(b) > maxResourceBytes {
		return "", fmt.Errorf("resource exceeds %d bytes", maxResourceBytes)
	}
	return string(b), nil
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (string, error)

func (f SourceFunc) Name() string { return "func" }

func (f SourceFunc) Fetch(ctx context.Context) (string, error) { return f(ctx) }
