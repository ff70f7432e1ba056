// Package disk talks to the Yandex Disk REST API: short-lived upload and
// download hrefs, folder creation, concurrent multi-file upload, and a
// streaming download proxy.
package disk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultAPIBase is the production Yandex Disk API host.
const DefaultAPIBase = "https://cloud-api.yandex.net"

const (
	hrefTimeout  = 60 * time.Second
	batchTimeout = 10 * time.Minute // generous: one budget for a whole many-file batch
)

// Error is a rejection from the disk API, carrying the path it concerned and
// the upstream status and body.
type Error struct {
	Op     string
	Path   string
	Status int
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("disk: %s %s: %d %s", e.Op, e.Path, e.Status, e.Detail)
}

// File is one named byte stream to upload.
type File struct {
	Name string
	Data io.Reader
}

// UploadResult records where one successfully uploaded file landed.
type UploadResult struct {
	Filename string // display name as the client sent it
	Path     string // storage path from ComposePath
}

// Client issues requests against the disk API. Each logical operation (one
// upload batch, one href fetch, one download) owns a freshly scoped HTTP
// client with its own timeout budget; nothing is shared across requests.
type Client struct {
	token   string
	apiBase string
}

// New creates a Client authenticating with the given OAuth token. apiBase
// overrides the API host; pass "" for the production host.
func New(token, apiBase string) *Client {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	return &Client{token: token, apiBase: strings.TrimRight(apiBase, "/")}
}

// resources builds the API URL for a /v1/disk/resources endpoint.
func (c *Client) resources(suffix string, params url.Values) string {
	return c.apiBase + "/v1/disk/resources" + suffix + "?" + params.Encode()
}

// getHref asks the API for a short-lived href. op is "upload" or "download";
// hrefs are single-use and must be fetched fresh per attempt, never cached.
func (c *Client) getHref(ctx context.Context, httpc *http.Client, op, path string, params url.Values) (string, error) {
	params.Set("path", path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resources("/"+op, params), http.NoBody)
	if err != nil {
		return "", fmt.Errorf("build %s href request: %w", op, err)
	}
	req.Header.Set("Authorization", "OAuth "+c.token)

	resp, err := httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s href for %s: %w", op, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", apiError("get "+op+" href", path, resp)
	}

	var body struct {
		Href string `json:"href"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode %s href for %s: %w", op, path, err)
	}
	if body.Href == "" {
		return "", &Error{Op: "get " + op + " href", Path: path, Status: resp.StatusCode, Detail: "href missing in response"}
	}
	return body.Href, nil
}

// GetUploadHref fetches an overwrite-enabled upload href for path.
func (c *Client) GetUploadHref(ctx context.Context, path string) (string, error) {
	httpc := &http.Client{Timeout: hrefTimeout}
	return c.getHref(ctx, httpc, "upload", path, url.Values{"overwrite": {"true"}})
}

// GetDownloadHref fetches a fresh download href for a previously uploaded path.
func (c *Client) GetDownloadHref(ctx context.Context, path string) (string, error) {
	httpc := &http.Client{Timeout: hrefTimeout}
	return c.getHref(ctx, httpc, "download", path, url.Values{})
}

// EnsureFolder creates the folder if it does not exist. 201 means created,
// 409 means it was already there; both are success.
func (c *Client) EnsureFolder(ctx context.Context, folder string) error {
	httpc := &http.Client{Timeout: hrefTimeout}
	params := url.Values{"path": {folder}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.resources("", params), http.NoBody)
	if err != nil {
		return fmt.Errorf("build ensure folder request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+c.token)

	resp, err := httpc.Do(req)
	if err != nil {
		return fmt.Errorf("ensure folder %s: %w", folder, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusConflict {
		return nil
	}
	if resp.StatusCode >= 400 {
		return apiError("ensure folder", folder, resp)
	}
	return nil
}

// uploadFile uploads one file through a transfer href obtained on the spot.
// 201 and 202 are the accepted success statuses for the byte transfer.
func (c *Client) uploadFile(ctx context.Context, httpc *http.Client, baseDir string, f File) (UploadResult, error) {
	path := ComposePath(baseDir, f.Name)

	href, err := c.getHref(ctx, httpc, "upload", path, url.Values{"overwrite": {"true"}})
	if err != nil {
		return UploadResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, href, f.Data)
	if err != nil {
		return UploadResult{}, fmt.Errorf("build upload request for %s: %w", f.Name, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Authorization", "OAuth "+c.token)

	resp, err := httpc.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload %s: %w", f.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return UploadResult{}, apiError("upload", path, resp)
	}
	return UploadResult{Filename: f.Name, Path: path}, nil
}

// UploadMany uploads the files concurrently, one goroutine per file, sharing
// one HTTP client scoped to the batch. Every task runs to completion; result
// order is unconstrained. If at least one upload succeeded the failures are
// dropped — partial success is not an error at this layer. Only when every
// upload failed does the call return an aggregate error.
func (c *Client) UploadMany(ctx context.Context, files []File, baseDir string) ([]UploadResult, error) {
	var pending []File
	for _, f := range files {
		if f.Name != "" {
			pending = append(pending, f)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}

	httpc := &http.Client{Timeout: batchTimeout}

	type outcome struct {
		res UploadResult
		err error
	}
	outcomes := make(chan outcome, len(pending))

	var wg sync.WaitGroup
	for _, f := range pending {
		wg.Add(1)
		go func(f File) {
			defer wg.Done()
			res, err := c.uploadFile(ctx, httpc, baseDir, f)
			outcomes <- outcome{res: res, err: err}
		}(f)
	}
	wg.Wait()
	close(outcomes)

	var results []UploadResult
	var failures []string
	for o := range outcomes {
		if o.err != nil {
			failures = append(failures, o.err.Error())
			continue
		}
		results = append(results, o.res)
	}

	if len(results) == 0 && len(failures) > 0 {
		return nil, fmt.Errorf("disk: all uploads failed: %s", strings.Join(failures, "; "))
	}
	return results, nil
}

// apiError converts a non-2xx API response into *Error, preferring the
// structured message body and falling back to raw text.
func apiError(op, path string, resp *http.Response) *Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	detail := strings.TrimSpace(string(raw))
	var body struct {
		Message     string `json:"message"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			detail = body.Message
		} else if body.Description != "" {
			detail = body.Description
		}
	}

	return &Error{Op: op, Path: path, Status: resp.StatusCode, Detail: detail}
}
