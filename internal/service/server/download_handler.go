package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/lordseriouspig/nova-shell/internal/domain"
)

// maxStartBody bounds the POST /api/downloads request body
const maxStartBody = 64 * 1024

// DownloadHandler serves the download API
type DownloadHandler struct {
	downloads DownloadService
	starter   TransferStarter
	logger    *zap.Logger
}

// NewDownloadHandler creates a new DownloadHandler
func NewDownloadHandler(downloads DownloadService, starter TransferStarter, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		downloads: downloads,
		starter:   starter,
		logger:    logger,
	}
}

type startRequest struct {
	URL string `json:"url"`
}

// HandleList handles GET /api/downloads
func (h *DownloadHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	records, err := h.downloads.List(r.Context())
	if err != nil {
		h.fail(w, "failed to list downloads", err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// HandleGet handles GET /api/downloads/{id}
func (h *DownloadHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.downloads.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "failed to get download", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleStart handles POST /api/downloads
func (h *DownloadHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	if h.starter == nil {
		http.Error(w, "Transfers are not enabled", http.StatusNotImplemented)
		return
	}

	var req startRequest
	body := http.MaxBytesReader(w, r.Body, maxStartBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	rec, err := h.starter(r.Context(), req.URL)
	if err != nil {
		h.fail(w, "failed to start download", err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// HandleClear handles DELETE /api/downloads
func (h *DownloadHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	n, err := h.downloads.Clear(r.Context())
	if err != nil {
		h.fail(w, "failed to clear downloads", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

// HandleRemove handles DELETE /api/downloads/{id}
func (h *DownloadHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	removed, err := h.downloads.Remove(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "failed to remove download", err)
		return
	}
	if !removed {
		http.Error(w, "Download not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCancel handles POST /api/downloads/{id}/cancel. Cancellation is
// asynchronous; 202 means the request was passed to the transfer.
func (h *DownloadHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ok, err := h.downloads.Cancel(r.Context(), id)
	if err != nil {
		h.fail(w, "failed to cancel download", err)
		return
	}
	if !ok {
		http.Error(w, "Download is not active", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "cancelling"})
}

// HandleOpenFolder handles POST /api/downloads/{id}/open-folder
func (h *DownloadHandler) HandleOpenFolder(w http.ResponseWriter, r *http.Request) {
	if err := h.downloads.OpenFolder(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, "failed to open folder", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail maps domain errors to status codes
func (h *DownloadHandler) fail(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		http.Error(w, "Download not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrFolderMissing):
		http.Error(w, "Folder not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrFolderRateLimited):
		http.Error(w, "Too many requests", http.StatusTooManyRequests)
	case errors.Is(err, domain.ErrInputRejected):
		http.Error(w, "Invalid download URL", http.StatusBadRequest)
	case errors.Is(err, domain.ErrManagerStopped):
		http.Error(w, "Download manager stopped", http.StatusServiceUnavailable)
	default:
		h.logger.Error(msg, zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
