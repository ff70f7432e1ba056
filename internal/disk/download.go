package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUpstream is returned when the download host cannot be reached or
// rejects the request. Callers surface it as a gateway failure and never
// retry automatically.
var ErrUpstream = errors.New("upstream download failed")

// downloadHeaderTimeout bounds the wait for the first byte from the
// download host. The body itself may stream for far longer.
const downloadHeaderTimeout = 120 * time.Second

// streamChunkSize is the read chunk for proxied downloads; bodies are never
// buffered whole in memory.
const streamChunkSize = 64 * 1024

// StreamDownload fetches a fresh download href for path and proxies the
// bytes to w as an unbuffered stream. Content-Type, Content-Length, and
// Content-Disposition are forwarded verbatim when the upstream supplies
// them; a missing Content-Disposition is synthesized from the display name
// recovered from the storage path.
func (c *Client) StreamDownload(ctx context.Context, w http.ResponseWriter, path string) error {
	href, err := c.GetDownloadHref(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	httpc := &http.Client{
		Transport: &http.Transport{ResponseHeaderTimeout: downloadHeaderTimeout},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, http.NoBody)
	if err != nil {
		return fmt.Errorf("build download request for %s: %w", path, err)
	}

	resp, err := httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: fetch %s: %v", ErrUpstream, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: host returned %d for %s", ErrUpstream, resp.StatusCode, path)
	}

	for _, h := range []string{"Content-Type", "Content-Length", "Content-Disposition"} {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	if w.Header().Get("Content-Disposition") == "" {
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", DisplayName(path)))
	}
	// Tell buffering reverse proxies to pass chunks through as they arrive.
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	buf := make([]byte, streamChunkSize)
	if _, err := io.CopyBuffer(w, resp.Body, buf); err != nil {
		// Headers are already sent; nothing more can be reported to the client.
		return fmt.Errorf("stream %s: %w", path, err)
	}
	return nil
}
