package shortener

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yacut/service/internal/disk"
	"github.com/yacut/service/internal/response"
)

func newTestRouter(store Store) (*chi.Mux, *Service) {
	svc := NewService(store, []string{"files"})
	h := NewHandler(svc, disk.New("", ""), "http://short.test", "/files", false)

	r := chi.NewRouter()
	r.Post("/api/id", h.Create)
	r.Get("/api/id/{short}", h.GetOriginal)
	r.Get("/{short}", h.Follow)
	return r, svc
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func TestCreateHandlerWithCustomCode(t *testing.T) {
	r, _ := newTestRouter(newMemStore())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/id",
		strings.NewReader(`{"url":"https://example.com/page","custom_id":"docs2"}`))
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	data := env.Data.(map[string]interface{})
	assert.Equal(t, "http://short.test/docs2", data["short_link"])
	assert.Equal(t, "https://example.com/page", data["url"])
}

func TestCreateHandlerGeneratesCode(t *testing.T) {
	r, _ := newTestRouter(newMemStore())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/id",
		strings.NewReader(`{"url":"https://example.com/page"}`))
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	data := env.Data.(map[string]interface{})
	link := data["short_link"].(string)
	assert.Regexp(t, `^http://short\.test/[A-Za-z0-9]{6}$`, link)
}

func TestCreateHandlerValidation(t *testing.T) {
	r, _ := newTestRouter(newMemStore())

	cases := []struct {
		name string
		body string
		code int
	}{
		{"missing url", `{}`, http.StatusBadRequest},
		{"relative url", `{"url":"example.com/x"}`, http.StatusBadRequest},
		{"bad custom code", `{"url":"https://example.com","custom_id":"bad code"}`, http.StatusBadRequest},
		{"reserved custom code", `{"url":"https://example.com","custom_id":"FILES"}`, http.StatusConflict},
		{"not json", `nope`, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/id", strings.NewReader(tc.body))
			r.ServeHTTP(rec, req)
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestCreateHandlerTakenCode(t *testing.T) {
	store := newMemStore()
	r, _ := newTestRouter(store)

	body := `{"url":"https://example.com","custom_id":"taken"}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/id", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/id", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetOriginalHandler(t *testing.T) {
	store := newMemStore()
	r, svc := newTestRouter(store)

	_, err := svc.Allocate(context.Background(), "known", "https://example.com/target")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/id/known", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "https://example.com/target", env.Data.(map[string]interface{})["url"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/id/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFollowRedirectsExternalURL(t *testing.T) {
	store := newMemStore()
	r, svc := newTestRouter(store)

	_, err := svc.Allocate(context.Background(), "jump", "https://example.com/landing")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jump", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com/landing", rec.Header().Get("Location"))
}

func TestFollowReservedCodeRoutesToFiles(t *testing.T) {
	r, _ := newTestRouter(newMemStore())

	for _, code := range []string{"files", "FILES"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+code, nil))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/files", rec.Header().Get("Location"))
	}
}

func TestFollowUnknownCode(t *testing.T) {
	r, _ := newTestRouter(newMemStore())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFollowDirectRedirectToDiskHref(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{"href":"https://downloader.example.net/one-shot"}`))
	}))
	defer srv.Close()

	store := newMemStore()
	svc := NewService(store, []string{"files"})
	h := NewHandler(svc, disk.New("test-token", srv.URL), "http://short.test", "/files", true)

	r := chi.NewRouter()
	r.Get("/{short}", h.Follow)

	_, err := svc.Allocate(context.Background(), "filecode", "app:/yacut/deadbeef_a.txt")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/filecode", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://downloader.example.net/one-shot", rec.Header().Get("Location"))
}
