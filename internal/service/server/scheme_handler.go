package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/lordseriouspig/nova-shell/internal/service/resolver"
)

// SchemeHandler serves nova:// resources
type SchemeHandler struct {
	resolver SchemeResolver
	logger   *zap.Logger
}

// NewSchemeHandler creates a new SchemeHandler
func NewSchemeHandler(r SchemeResolver, logger *zap.Logger) *SchemeHandler {
	return &SchemeHandler{
		resolver: r,
		logger:   logger,
	}
}

// HandleResource serves /{locator}. The locator is everything after the
// leading slash, passed through as received.
func (h *SchemeHandler) HandleResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	locator := strings.TrimPrefix(r.URL.Path, "/")
	if locator == "" {
		locator = "home"
	}
	h.serve(w, r, locator)
}

// HandleURL serves /scheme?url=nova://...
func (h *SchemeHandler) HandleURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw := r.URL.Query().Get("url")
	if raw == "" {
		http.Error(w, "url parameter required", http.StatusBadRequest)
		return
	}

	locator, err := resolver.LocatorFromURL(raw)
	if err != nil {
		if errors.Is(err, resolver.ErrWrongScheme) {
			http.Error(w, "Only nova:// URLs are served", http.StatusBadRequest)
			return
		}
		// Malformed URLs go through the pipeline so they are rejected and
		// reported like any other bad locator.
		locator = raw
	}

	h.serve(w, r, locator)
}

func (h *SchemeHandler) serve(w http.ResponseWriter, r *http.Request, locator string) {
	resp := h.resolver.Resolve(r.Context(), locator)

	header := w.Header()
	header.Set("Content-Type", resp.ContentType)
	header.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	header.Set("X-Content-Type-Options", "nosniff")
	header.Set("Cache-Control", "no-store")
	w.WriteHeader(resp.Status)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(resp.Body); err != nil {
		h.logger.Debug("client went away", zap.String("locator", locator), zap.Error(err))
	}
}
