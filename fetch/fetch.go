// Package fetch retrieves the raw bytes behind a wind field source URL.
// The engine does not care about the transport: files, HTTP and S3
// compatible object stores are handled here behind one interface.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// Func adapts a function to the Fetcher interface.
type Func func(ctx context.Context, source string) ([]byte, error)

func (f Func) Fetch(ctx context.Context, source string) ([]byte, error) {
	return f(ctx, source)
}

// File reads local files. Relative paths and file:// URLs are resolved
// against Root.
type File struct {
	Root string
}

func (f File) Fetch(ctx context.Context, source string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(source, "file://")
	if !filepath.IsAbs(path) && f.Root != "" {
		path = filepath.Join(f.Root, path)
	}
	return os.ReadFile(path)
}

type HTTP struct {
	Client *http.Client
}

func NewHTTP(timeout time.Duration) HTTP {
	return HTTP{Client: &http.Client{Timeout: timeout}}
}

func (h HTTP) Fetch(ctx context.Context, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", source, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// Router dispatches on the URL scheme. Sources without a scheme go to
// the "file" entry.
type Router map[string]Fetcher

func (r Router) Fetch(ctx context.Context, source string) ([]byte, error) {
	scheme := "file"
	if u, err := url.Parse(source); err == nil && len(u.Scheme) > 1 {
		scheme = u.Scheme
	}
	f, ok := r[scheme]
	if !ok {
		return nil, fmt.Errorf("no fetcher for scheme %q", scheme)
	}
	log.Tracef("Fetch %s via %s", source, scheme)
	return f.Fetch(ctx, source)
}
