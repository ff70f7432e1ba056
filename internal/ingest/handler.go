package ingest

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yacut/service/internal/disk"
	"github.com/yacut/service/internal/response"
)

// maxUploadMemory bounds how much of a multipart body is held in memory
// before spilling to temp files.
const maxUploadMemory = 32 << 20

// allowedExts is the upload extension allow-list.
var allowedExts = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
	"bmp": true, "py": true, "txt": true, "md": true,
}

// Handler holds the HTTP handler for file ingestion.
type Handler struct {
	svc *Service
}

// NewHandler creates a new ingest Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Upload godoc
//
//	@Summary		Upload files
//	@Description	Upload one or more files to remote storage and get a short link per stored file. Files that fail to upload are dropped as long as at least one succeeds.
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			files	formData	file	true	"Files to upload"
//	@Success		201		{object}	response.Envelope{data=[]Result}
//	@Failure		400		{object}	response.Envelope
//	@Failure		502		{object}	response.Envelope
//	@Router			/files [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		response.BadRequest(w, "request must be multipart/form-data")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := filesFromForm(r.MultipartForm)
	if len(headers) == 0 {
		response.BadRequest(w, "select at least one file")
		return
	}

	if bad := disallowedNames(headers); len(bad) > 0 {
		response.BadRequest(w, "file types not allowed: "+strings.Join(bad, ", "))
		return
	}

	files := make([]disk.File, 0, len(headers))
	var closers []multipart.File
	defer func() {
		for _, f := range closers {
			_ = f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			response.InternalError(w)
			return
		}
		closers = append(closers, f)
		files = append(files, disk.File{Name: fh.Filename, Data: f})
	}

	results, err := h.svc.Ingest(r.Context(), files)
	if errors.Is(err, ErrUploadFailed) {
		response.BadGateway(w, fmt.Sprintf("could not upload files: %v", err))
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.Created(w, results)
}

// filesFromForm extracts file headers, accepting either field name clients use.
func filesFromForm(form *multipart.Form) []*multipart.FileHeader {
	for _, field := range []string{"files", "file"} {
		if headers := form.File[field]; len(headers) > 0 {
			return headers
		}
	}
	// Fallback: take whatever file fields were sent, in stable order.
	var fields []string
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	var headers []*multipart.FileHeader
	for _, field := range fields {
		headers = append(headers, form.File[field]...)
	}
	return headers
}

// disallowedNames returns the display names (or bare extensions) of files
// whose extension is not on the allow-list.
func disallowedNames(headers []*multipart.FileHeader) []string {
	var bad []string
	for _, fh := range headers {
		if fh.Filename == "" {
			continue
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fh.Filename), "."))
		if !allowedExts[ext] {
			if ext != "" {
				bad = append(bad, "."+ext)
			} else {
				bad = append(bad, fh.Filename)
			}
		}
	}
	return bad
}
