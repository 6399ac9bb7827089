// Package api exposes the marketplace over HTTP. Every response body is
// JSON: successes are wrapped in {"data": ...} and failures use
// ErrorResponse.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/emergent/skillsmarket/pkg/catalog"
	"github.com/emergent/skillsmarket/pkg/filestore"
	"github.com/emergent/skillsmarket/pkg/logger"
	"github.com/emergent/skillsmarket/pkg/marketplace"
	"github.com/emergent/skillsmarket/pkg/presenter"
	"github.com/emergent/skillsmarket/pkg/store"
	"github.com/emergent/skillsmarket/pkg/upload"
)

// DefaultAllowedOrigin is the development frontend.
const DefaultAllowedOrigin = "http://localhost:3000"

// Marketplace is the service the handlers call.
type Marketplace interface {
	CreateSkill(ctx context.Context, in marketplace.CreateSkillInput) (*catalog.Skill, error)
	GetSkill(ctx context.Context, id string) (*catalog.Skill, error)
	ListSkills(ctx context.Context, filter store.SkillFilter) ([]catalog.Skill, error)
	DownloadSkill(ctx context.Context, id string) (*catalog.SkillDownload, error)
	RateSkill(ctx context.Context, id string, rating int) (*catalog.Skill, error)
	ForkSkill(ctx context.Context, id string, in marketplace.ForkInput) (*catalog.Skill, error)

	ListAgents(ctx context.Context, search string) ([]catalog.Agent, error)
	GetAgent(ctx context.Context, id string) (*catalog.Agent, error)
	ListRules(ctx context.Context, search string) ([]catalog.Rule, error)
	GetRule(ctx context.Context, id string) (*catalog.Rule, error)

	CreateClient(ctx context.Context, in marketplace.CreateClientInput) (*catalog.Client, error)
	ListClients(ctx context.Context) ([]catalog.Client, error)
	CreateProject(ctx context.Context, in marketplace.CreateProjectInput) (*catalog.ProjectWithClient, error)
	GetProject(ctx context.Context, id string) (*catalog.ProjectWithClient, error)
	ListProjects(ctx context.Context, clientID string) ([]catalog.ProjectWithClient, error)
	ProjectSkills(ctx context.Context, projectID string) ([]catalog.ProjectSkill, error)

	UploadBatch(ctx context.Context, batch upload.Batch, uploadedBy string) (*upload.Created, error)
	Upload(ctx context.Context, files []upload.File, uploadedBy string) (*marketplace.UploadResult, error)

	Files() filestore.Store
}

var _ Marketplace = (*marketplace.Service)(nil)

// ServerConfig holds the configuration for the API server.
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	// ServeFiles exposes GET /api/files/{path}. Only the local file store
	// needs it.
	ServeFiles bool
	Limits     upload.Limits
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// Server is the marketplace HTTP server.
type Server struct {
	router  *mux.Router
	handler http.Handler
	service Marketplace
	config  *ServerConfig
	server  *http.Server
}

// NewServer creates a server for service.
func NewServer(service Marketplace, config *ServerConfig) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{DefaultAllowedOrigin}
	}
	if config.Limits == (upload.Limits{}) {
		config.Limits = upload.DefaultLimits
	}

	s := &Server{
		router:  mux.NewRouter(),
		service: service,
		config:  config,
	}
	s.setupRoutes()
	return s, nil
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api.HandleFunc("/skills", s.handleListSkills).Methods(http.MethodGet)
	api.HandleFunc("/skills", s.handleCreateSkill).Methods(http.MethodPost)
	api.HandleFunc("/skills/{id}", s.handleGetSkill).Methods(http.MethodGet)
	api.HandleFunc("/skills/{id}/download", s.handleDownloadSkill).Methods(http.MethodGet)
	api.HandleFunc("/skills/{id}/rate", s.handleRateSkill).Methods(http.MethodPost)
	api.HandleFunc("/skills/{id}/fork", s.handleForkSkill).Methods(http.MethodPost)

	api.HandleFunc("/agents", s.handleListAgents).Methods(http.MethodGet)
	api.HandleFunc("/agents/{id}", s.handleGetAgent).Methods(http.MethodGet)
	api.HandleFunc("/rules", s.handleListRules).Methods(http.MethodGet)
	api.HandleFunc("/rules/{id}", s.handleGetRule).Methods(http.MethodGet)

	api.HandleFunc("/clients", s.handleListClients).Methods(http.MethodGet)
	api.HandleFunc("/clients", s.handleCreateClient).Methods(http.MethodPost)
	api.HandleFunc("/projects", s.handleListProjects).Methods(http.MethodGet)
	api.HandleFunc("/projects", s.handleCreateProject).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}", s.handleGetProject).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/skills", s.handleProjectSkills).Methods(http.MethodGet)

	api.HandleFunc("/upload/batch", s.handleUploadBatch).Methods(http.MethodPost)
	api.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)

	if s.config.ServeFiles {
		api.HandleFunc("/files/{path:.+}", s.handleFile).Methods(http.MethodGet)
	}

	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)

	// Wrapped around the router rather than registered with Use so that
	// preflight requests and unmatched routes pass through them too.
	var h http.Handler = s.router
	for _, mw := range []func(http.Handler) http.Handler{
		s.corsMiddleware,
		s.loggingMiddleware,
		s.tracingMiddleware,
		s.requestIDMiddleware,
		s.recoverMiddleware,
	} {
		h = mw(h)
	}
	s.handler = h
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "Route not found")
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, fmt.Sprintf("method %s is not allowed on %s", r.Method, r.URL.Path))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:              address,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	presenter.Info(fmt.Sprintf("Starting skills marketplace API on http://%s", address))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.G(ctx).WithError(err).Error("API server error")
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "api server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// Stop closes the server immediately.
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
