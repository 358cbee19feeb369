package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const fetchTimeout = 20 * time.Second

// client wraps the HTTP side of snapshotting: every request carries the
// configured User-Agent and, when set, the bearer token for protected
// displays.
type client struct {
	http      *http.Client
	userAgent string
	authToken string
}

func newClient(userAgent, authToken string) *client {
	return &client{
		http:      &http.Client{Timeout: fetchTimeout},
		userAgent: userAgent,
		authToken: authToken,
	}
}

// get fetches rawURL and returns the body. Non-2xx statuses are errors.
func (c *client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: unexpected status %s", rawURL, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// download fetches rawURL into dest, creating parent directories as needed.
// The write is skipped when the cached bytes already match, so an unchanged
// asset neither touches the disk nor counts as a change.
func (c *client) download(ctx context.Context, rawURL, dest string) (changed bool, written int64, err error) {
	data, err := c.get(ctx, rawURL)
	if err != nil {
		return false, 0, err
	}

	if old, err := os.ReadFile(dest); err == nil && bytes.Equal(old, data) {
		return false, 0, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return false, 0, err
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return false, 0, err
	}
	return true, int64(len(data)), nil
}
