package preview

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/Skryldev/imageprep/core"
	apperrors "github.com/Skryldev/imageprep/errors"
	"github.com/Skryldev/imageprep/utils"
)

// DefaultMaxUpload caps a POST /previews body.
const DefaultMaxUpload = 32 << 20

// Handler serves preview objects over HTTP.
type Handler struct {
	manager   *Manager
	maxUpload int64
}

// NewHandler returns a Handler for m.  maxUpload <= 0 uses DefaultMaxUpload.
func NewHandler(m *Manager, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	return &Handler{manager: m, maxUpload: maxUpload}
}

// Register mounts the preview routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/blob/{id}", h.GetBlob).Methods("GET", "HEAD")
	r.HandleFunc("/previews", h.CreatePreview).Methods("POST")
	r.HandleFunc("/previews", h.Cleanup).Methods("DELETE")
}

// Router returns a new router with the preview routes mounted.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	h.Register(r)
	return r
}

// GetBlob serves the object behind a preview URL.
func (h *Handler) GetBlob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	file, err := h.manager.Store().GetByID(id)
	if errors.Is(err, apperrors.ErrRevoked) {
		http.Error(w, "Preview revoked", http.StatusGone)
		return
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		http.Error(w, "Preview not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.Header().Set("Cache-Control", "no-store")
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(file.Data)
}

type previewResponse struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// CreatePreview accepts a multipart "file" upload and returns its preview
// URL.  An optional "last_modified" field (unix milliseconds) is part of the
// file identity, so re-uploading the same file returns the same URL.
func (h *Handler) CreatePreview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		http.Error(w, "Failed to read upload", http.StatusBadRequest)
		return
	}

	file := &core.SourceFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	if file.ContentType == "" || file.ContentType == "application/octet-stream" {
		file.ContentType = utils.DetectMime(data)
	}
	if ms, err := strconv.ParseInt(r.FormValue("last_modified"), 10, 64); err == nil {
		file.LastModified = time.UnixMilli(ms)
	}

	handle := h.manager.Get(file)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(previewResponse{
		URL:  handle.URL(),
		Name: file.Name,
		Size: file.Size(),
		Type: file.ContentType,
	})
}

// Cleanup revokes every preview.
func (h *Handler) Cleanup(w http.ResponseWriter, _ *http.Request) {
	h.manager.Cleanup()
	w.WriteHeader(http.StatusNoContent)
}
