// Package ingest turns uploaded files into short links: concurrent upload
// to the remote disk, one mapping allocation per stored file.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/yacut/service/internal/disk"
	"github.com/yacut/service/internal/shortener"
)

// ErrUploadFailed is returned when no file in the batch reached storage.
var ErrUploadFailed = errors.New("file upload failed")

// Result is one ingested file: the display name the client sent and the
// short link now pointing at its stored bytes.
type Result struct {
	Filename  string `json:"filename"`
	Short     string `json:"short"`
	ShortLink string `json:"shortLink"`
}

// Service orchestrates the "upload files, get short links" workflow.
type Service struct {
	disk          *disk.Client
	shorts        *shortener.Service
	baseDir       string
	publicBaseURL string
}

// NewService creates an ingest Service. publicBaseURL is the explicit base
// for shareable links; it is configuration, not request state.
func NewService(diskClient *disk.Client, shorts *shortener.Service, baseDir, publicBaseURL string) *Service {
	return &Service{
		disk:          diskClient,
		shorts:        shorts,
		baseDir:       baseDir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Ingest uploads the files concurrently and allocates a generated short code
// for every file that made it to storage. A total upload failure propagates
// as-is; partial failures were already dropped by the upload layer. After
// allocation a best-effort warm-up pre-fetches download hrefs so first
// access is fast — its errors are deliberately swallowed.
func (s *Service) Ingest(ctx context.Context, files []disk.File) ([]Result, error) {
	items, err := s.disk.UploadMany(ctx, files, s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	results := make([]Result, 0, len(items))
	for _, it := range items {
		m, err := s.shorts.Allocate(ctx, "", it.Path)
		if err != nil {
			return nil, fmt.Errorf("allocate short for %s: %w", it.Filename, err)
		}
		results = append(results, Result{
			Filename:  it.Filename,
			Short:     m.Short,
			ShortLink: s.publicBaseURL + "/" + m.Short,
		})
	}

	s.warmHrefs(ctx, items)
	return results, nil
}

// warmHrefs concurrently pre-fetches a download href for every stored path.
func (s *Service) warmHrefs(ctx context.Context, items []disk.UploadResult) {
	var wg sync.WaitGroup
	for _, it := range items {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			_, _ = s.disk.GetDownloadHref(ctx, path)
		}(it.Path)
	}
	wg.Wait()
}
