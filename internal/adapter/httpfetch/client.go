package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cwygoda/fetchdata/internal/domain"
)

const (
	// BlockSize bounds each read/write so memory use stays constant.
	BlockSize = 8192

	// PartSuffix is appended to the destination while a transfer is in flight.
	PartSuffix = ".part"

	DefaultUserAgent = "fetchdata/1.0"
)

// Config holds HTTP client configuration.
type Config struct {
	// Timeout applies to each request as a whole. Zero means no timeout.
	Timeout   time.Duration
	UserAgent string
}

// Client implements domain.Fetcher and domain.SizeProber over HTTP.
type Client struct {
	client *http.Client
	config Config
}

// NewClient creates a new HTTP client.
func NewClient(config Config) *Client {
	return NewClientWith(&http.Client{Timeout: config.Timeout}, config)
}

// NewClientWith wraps an existing *http.Client.
func NewClientWith(hc *http.Client, config Config) *Client {
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	return &Client{client: hc, config: config}
}

// ContentLength issues a HEAD request and returns the advertised size.
func (c *Client) ContentLength(ctx context.Context, url string) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodHead, url)
	if err != nil {
		return 0, &domain.SizeProbeError{URL: url, Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, &domain.SizeProbeError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &domain.SizeProbeError{URL: url, Err: fmt.Errorf("%w: %s", domain.ErrUnexpectedStatus, resp.Status)}
	}
	if resp.ContentLength < 0 {
		return 0, &domain.SizeProbeError{URL: url, Err: domain.ErrNoContentLength}
	}
	return resp.ContentLength, nil
}

// Fetch streams url into dest. The body is written to dest+PartSuffix and
// renamed into place only once complete; on failure the partial file is
// removed and dest is left untouched.
func (c *Client) Fetch(ctx context.Context, url, dest string, p domain.Progress) error {
	name := filepath.Base(dest)
	if err := c.fetch(ctx, url, dest, p); err != nil {
		p.SetLabel(fmt.Sprintf("Failed to download %s: %v", name, err))
		return &domain.FetchError{Name: name, URL: url, Err: err}
	}
	p.SetLabel("Downloaded " + name)
	return nil
}

func (c *Client) fetch(ctx context.Context, url, dest string, p domain.Progress) error {
	req, err := c.newRequest(ctx, http.MethodGet, url)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s", domain.ErrUnexpectedStatus, resp.Status)
	}

	part := dest + PartSuffix
	f, err := os.Create(part)
	if err != nil {
		return err
	}

	if err := copyBlocks(f, resp.Body, p); err != nil {
		f.Close()
		os.Remove(part)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(part)
		return err
	}
	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		return err
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	return req, nil
}

// copyBlocks copies r to w in BlockSize chunks, reporting each written chunk.
func copyBlocks(w io.Writer, r io.Reader, p domain.Progress) error {
	buf := make([]byte, BlockSize)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			written, werr := w.Write(buf[:n])
			if written > 0 {
				p.Add(int64(written))
			}
			if werr != nil {
				return werr
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}
