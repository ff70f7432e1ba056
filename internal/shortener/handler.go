package shortener

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/yacut/service/internal/disk"
	"github.com/yacut/service/internal/response"
)

// Handler holds HTTP handlers for short-link endpoints.
type Handler struct {
	svc            *Service
	disk           *disk.Client
	publicBaseURL  string
	filesRoute     string // where a reserved "files" code redirects to
	directRedirect bool   // skip the proxy and redirect to the disk href
}

// NewHandler creates a new shortener Handler.
func NewHandler(svc *Service, diskClient *disk.Client, publicBaseURL, filesRoute string, directRedirect bool) *Handler {
	return &Handler{
		svc:            svc,
		disk:           diskClient,
		publicBaseURL:  strings.TrimRight(publicBaseURL, "/"),
		filesRoute:     filesRoute,
		directRedirect: directRedirect,
	}
}

type createRequest struct {
	URL      string `json:"url"       example:"https://practicum.yandex.ru/"`
	CustomID string `json:"custom_id" example:"docs"`
}

type createData struct {
	ShortLink string `json:"short_link" example:"http://localhost:8080/docs"`
	URL       string `json:"url"        example:"https://practicum.yandex.ru/"`
}

type originalData struct {
	URL string `json:"url" example:"https://practicum.yandex.ru/"`
}

// Create godoc
//
//	@Summary		Create short link
//	@Description	Map a URL to a short code. With custom_id the given code is used verbatim; otherwise a random 6-character code is generated.
//	@Tags			links
//	@Accept			json
//	@Produce		json
//	@Param			request	body		createRequest	true	"Target URL and optional custom code"
//	@Success		201		{object}	response.Envelope{data=createData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/api/id [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.URL == "" {
		response.BadRequest(w, "url is required")
		return
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		response.BadRequest(w, "url must start with http:// or https://")
		return
	}

	m, err := h.svc.Allocate(r.Context(), req.CustomID, req.URL)
	switch {
	case errors.Is(err, ErrInvalidShort):
		response.BadRequest(w, "short link must be 1-16 latin letters or digits")
		return
	case errors.Is(err, ErrShortTaken):
		response.Conflict(w, "this short link is already taken")
		return
	case errors.Is(err, ErrTriesExhausted):
		// Store treated as degraded; not retried further.
		response.InternalError(w)
		return
	case err != nil:
		response.InternalError(w)
		return
	}

	response.Created(w, createData{
		ShortLink: h.publicBaseURL + "/" + m.Short,
		URL:       m.Original,
	})
}

// GetOriginal godoc
//
//	@Summary		Get original target
//	@Description	Return the original target stored for a short code.
//	@Tags			links
//	@Produce		json
//	@Param			short	path		string	true	"Short code"
//	@Success		200		{object}	response.Envelope{data=originalData}
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/api/id/{short} [get]
func (h *Handler) GetOriginal(w http.ResponseWriter, r *http.Request) {
	short := chi.URLParam(r, "short")

	m, err := h.svc.Resolve(r.Context(), short)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "short link not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, originalData{URL: m.Original})
}

// Follow godoc
//
//	@Summary		Follow short link
//	@Description	Redirect to the original URL, or serve the stored file for disk targets. The reserved code "files" routes to the upload endpoint.
//	@Tags			links
//	@Produce		octet-stream
//	@Param			short	path	string	true	"Short code"
//	@Success		302		"redirect to target"
//	@Failure		404		{object}	response.Envelope
//	@Failure		502		{object}	response.Envelope
//	@Router			/{short} [get]
func (h *Handler) Follow(w http.ResponseWriter, r *http.Request) {
	short := chi.URLParam(r, "short")

	// Reserved codes name routes, not mappings; intercept before lookup.
	if h.svc.IsReserved(short) {
		http.Redirect(w, r, h.filesRoute, http.StatusFound)
		return
	}

	m, err := h.svc.Resolve(r.Context(), short)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "short link not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	if ClassifyTarget(m.Original) == TargetExternalURL {
		http.Redirect(w, r, m.Original, http.StatusFound)
		return
	}

	h.serveDiskPath(w, r, m.Original)
}

// serveDiskPath streams the stored file to the client, or redirects to a
// fresh disk href when the proxy is configured off.
func (h *Handler) serveDiskPath(w http.ResponseWriter, r *http.Request, path string) {
	if h.directRedirect {
		href, err := h.disk.GetDownloadHref(r.Context(), path)
		if err != nil {
			response.BadGateway(w, "file storage is unavailable")
			return
		}
		http.Redirect(w, r, href, http.StatusFound)
		return
	}

	if err := h.disk.StreamDownload(r.Context(), w, path); err != nil {
		if errors.Is(err, disk.ErrUpstream) {
			response.BadGateway(w, "file storage is unavailable")
			return
		}
		// Mid-stream failure: headers are gone, only the log can tell.
		log.Printf("stream download %s: %v", path, err)
	}
}
