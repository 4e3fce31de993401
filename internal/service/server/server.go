package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lordseriouspig/nova-shell/internal/domain"
	"github.com/lordseriouspig/nova-shell/internal/port"
	"github.com/lordseriouspig/nova-shell/internal/service/resolver"
)

// Config contains HTTP server configuration
type Config struct {
	BindAddr     string
	APIToken     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		BindAddr:     "127.0.0.1:7879",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// SchemeResolver resolves nova:// locators
type SchemeResolver interface {
	Resolve(ctx context.Context, locator string) *resolver.Response
}

// DownloadService is the download manager as seen by the API
type DownloadService interface {
	List(ctx context.Context) ([]*domain.DownloadRecord, error)
	Get(ctx context.Context, id string) (*domain.DownloadRecord, error)
	Clear(ctx context.Context) (int, error)
	Remove(ctx context.Context, id string) (bool, error)
	Cancel(ctx context.Context, id string) (bool, error)
	OpenFolder(ctx context.Context, id string) error
	LiveCount(ctx context.Context) (int, error)
}

// TransferStarter begins fetching rawURL as a tracked download
type TransferStarter func(ctx context.Context, rawURL string) (*domain.DownloadRecord, error)

// RequestObserver records per-request metrics
type RequestObserver interface {
	ObserveRequest(method, route string, status int, duration time.Duration)
}

// Deps are the components the server exposes
type Deps struct {
	Store     port.Store
	Resolver  SchemeResolver
	Downloads DownloadService
	Starter   TransferStarter
	Disk      port.DiskUsageReporter
	Metrics   http.Handler
	Observer  RequestObserver
}

// Server represents the HTTP API server
type Server struct {
	config          *Config
	deps            Deps
	logger          *zap.Logger
	server          *http.Server
	handler         http.Handler
	schemeHandler   *SchemeHandler
	downloadHandler *DownloadHandler
}

// New creates a new HTTP server
func New(cfg *Config, deps Deps, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		logger: logger,
	}

	s.schemeHandler = NewSchemeHandler(deps.Resolver, logger)
	s.downloadHandler = NewDownloadHandler(deps.Downloads, deps.Starter, logger)

	api := http.NewServeMux()

	// Health check
	api.HandleFunc("/health", s.handleHealth)

	if deps.Metrics != nil {
		api.Handle("/metrics", deps.Metrics)
	}

	// Download API
	auth := TokenAuthMiddleware(cfg.APIToken, logger)
	api.HandleFunc("GET /api/downloads", auth(s.downloadHandler.HandleList))
	api.HandleFunc("POST /api/downloads", auth(s.downloadHandler.HandleStart))
	api.HandleFunc("DELETE /api/downloads", auth(s.downloadHandler.HandleClear))
	api.HandleFunc("GET /api/downloads/{id}", auth(s.downloadHandler.HandleGet))
	api.HandleFunc("DELETE /api/downloads/{id}", auth(s.downloadHandler.HandleRemove))
	api.HandleFunc("POST /api/downloads/{id}/cancel", auth(s.downloadHandler.HandleCancel))
	api.HandleFunc("POST /api/downloads/{id}/open-folder", auth(s.downloadHandler.HandleOpenFolder))

	// Scheme requests bypass the mux so locators reach the resolver unmodified
	// rather than being cleaned and redirected.
	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAPIPath(r.URL.Path) {
			api.ServeHTTP(w, r)
			return
		}
		if r.URL.Path == "/scheme" {
			s.schemeHandler.HandleURL(w, r)
			return
		}
		s.schemeHandler.HandleResource(w, r)
	})

	s.handler = LoggingMiddleware(logger, deps.Observer)(root)
	s.server = &http.Server{
		Addr:         cfg.BindAddr,
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

func isAPIPath(p string) bool {
	return p == "/health" || p == "/metrics" || p == "/api" || strings.HasPrefix(p, "/api/")
}

// Handler returns the root handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

type healthResponse struct {
	Status        string          `json:"status"`
	Time          string          `json:"time"`
	LiveDownloads int             `json:"liveDownloads"`
	Disk          *port.DiskUsage `json:"disk,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(); err != nil {
			s.logger.Error("health check failed", zap.Error(err))
			http.Error(w, "Database connection failed", http.StatusServiceUnavailable)
			return
		}
	}

	resp := healthResponse{
		Status: "healthy",
		Time:   time.Now().Format(time.RFC3339),
	}

	if s.deps.Downloads != nil {
		n, err := s.deps.Downloads.LiveCount(r.Context())
		if err != nil {
			s.logger.Error("health check failed", zap.Error(err))
			http.Error(w, "Download manager unavailable", http.StatusServiceUnavailable)
			return
		}
		resp.LiveDownloads = n
	}

	if s.deps.Disk != nil {
		usage, err := s.deps.Disk.GetDiskUsage()
		if err != nil {
			s.logger.Warn("failed to get disk usage", zap.Error(err))
		} else {
			resp.Disk = usage
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
