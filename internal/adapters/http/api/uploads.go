package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/okian/perfreport/internal/domain/assembler"
)

const defaultUploadName = "upload.csv"

// UploadHandler handles CSV uploads and reads of the session's data.
type UploadHandler struct {
	deps UploadDependencies
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(deps UploadDependencies) *UploadHandler {
	return &UploadHandler{deps: deps}
}

// HandleUpload handles POST /uploads requests. The CSV arrives either as the
// "file" part of a multipart form or as the raw request body.
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	const op = "api.upload"
	if !requireMethod(w, r, op, http.MethodPost) {
		return
	}
	id := sessionID(w, r)

	body, name, declared, err := uploadSource(r)
	if err != nil {
		writeFailure(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	summary, err := h.deps.Upload(r.Context(), id, name, body, declared, season(r))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

// HandleCurrent handles GET /uploads/current requests.
func (h *UploadHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, "api.current_upload", http.MethodGet) {
		return
	}
	summary, err := h.deps.CurrentUpload(r.Context(), sessionID(w, r))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type athletesResponse struct {
	Athletes []assembler.Athlete `json:"athletes"`
}

// HandleAthletes handles GET /athletes requests.
func (h *UploadHandler) HandleAthletes(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, "api.athletes", http.MethodGet) {
		return
	}
	athletes, err := h.deps.Athletes(r.Context(), sessionID(w, r), season(r))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, athletesResponse{Athletes: athletes})
}

// uploadSource returns the CSV stream, its file name and its declared size
// (-1 when unknown).
func uploadSource(r *http.Request) (io.Reader, string, int64, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		name := r.URL.Query().Get("filename")
		if name == "" {
			name = defaultUploadName
		}
		return r.Body, filepath.Base(name), r.ContentLength, nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, "", 0, err
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, "", 0, ErrMissingFile
		}
		if err != nil {
			return nil, "", 0, err
		}
		if part.FormName() != "file" {
			continue
		}
		name := part.FileName()
		if name == "" {
			name = defaultUploadName
		}
		return part, filepath.Base(name), -1, nil
	}
}
