package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yacut/service/internal/disk"
	"github.com/yacut/service/internal/shortener"
)

// memStore is an in-memory shortener.Store for orchestration tests.
type memStore struct {
	mu     sync.Mutex
	rows   map[string]*shortener.URLMap
	nextID int64
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]*shortener.URLMap)}
}

func (s *memStore) Insert(_ context.Context, original, short string) (*shortener.URLMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[short]; ok {
		return nil, shortener.ErrShortTaken
	}
	s.nextID++
	m := &shortener.URLMap{ID: s.nextID, Original: original, Short: short, CreatedAt: time.Now()}
	s.rows[short] = m
	return m, nil
}

func (s *memStore) GetByShort(_ context.Context, short string) (*shortener.URLMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.rows[short]; ok {
		return m, nil
	}
	return nil, shortener.ErrNotFound
}

// newIngestFixture spins up a fake disk API and wires a full ingest Service
// against it. Uploads of files whose name contains "broken" fail.
func newIngestFixture(t *testing.T) (*Service, *memStore, *counter) {
	t.Helper()

	hrefFetches := &counter{}
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/disk/resources/upload", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"href":"` + srv.URL + `/transfer?path=` + r.URL.Query().Get("path") + `"}`))
	})
	mux.HandleFunc("/v1/disk/resources/download", func(w http.ResponseWriter, r *http.Request) {
		hrefFetches.inc()
		_, _ = w.Write([]byte(`{"href":"` + srv.URL + `/fetch"}`))
	})
	mux.HandleFunc("/transfer", func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Query().Get("path"), "broken") {
			w.WriteHeader(http.StatusInsufficientStorage)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	store := newMemStore()
	shortSvc := shortener.NewService(store, []string{"files"})
	diskClient := disk.New("test-token", srv.URL)

	return NewService(diskClient, shortSvc, "app:/yacut", "http://short.test/"), store, hrefFetches
}

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *counter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestIngestAllocatesOneShortPerStoredFile(t *testing.T) {
	svc, store, _ := newIngestFixture(t)

	results, err := svc.Ingest(context.Background(), []disk.File{
		{Name: "a.txt", Data: strings.NewReader("a")},
		{Name: "b.txt", Data: strings.NewReader("b")},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, res := range results {
		assert.Len(t, res.Short, shortener.DefaultShortLength)
		assert.Equal(t, "http://short.test/"+res.Short, res.ShortLink)

		m, err := store.GetByShort(context.Background(), res.Short)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(m.Original, "app:/yacut/"),
			"mapping target should be the storage path, got %q", m.Original)
	}

	names := []string{results[0].Filename, results[1].Filename}
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, names)
}

func TestIngestDropsFailedUploads(t *testing.T) {
	svc, _, _ := newIngestFixture(t)

	results, err := svc.Ingest(context.Background(), []disk.File{
		{Name: "good.txt", Data: strings.NewReader("a")},
		{Name: "broken.txt", Data: strings.NewReader("b")},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "good.txt", results[0].Filename)
}

func TestIngestTotalUploadFailure(t *testing.T) {
	svc, store, _ := newIngestFixture(t)

	_, err := svc.Ingest(context.Background(), []disk.File{
		{Name: "broken1.txt", Data: strings.NewReader("a")},
		{Name: "broken2.txt", Data: strings.NewReader("b")},
	})
	require.Error(t, err)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Empty(t, store.rows, "no mappings for files that never reached storage")
}

func TestIngestWarmsDownloadHrefs(t *testing.T) {
	svc, _, hrefFetches := newIngestFixture(t)

	_, err := svc.Ingest(context.Background(), []disk.File{
		{Name: "a.txt", Data: strings.NewReader("a")},
		{Name: "b.txt", Data: strings.NewReader("b")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, hrefFetches.value())
}

func TestIngestFiltersUnnamedFiles(t *testing.T) {
	svc, _, _ := newIngestFixture(t)

	results, err := svc.Ingest(context.Background(), []disk.File{
		{Name: "", Data: strings.NewReader("ghost")},
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}
