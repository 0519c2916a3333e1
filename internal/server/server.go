package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"inkpress/internal/auth"
	"inkpress/internal/service"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const defaultMaxUpload = 10 << 20

type Server struct {
	svc       *service.ArticleService
	verifier  *auth.Verifier
	logger    *zap.Logger
	router    *mux.Router
	metrics   *metrics
	maxUpload int64

	mu      sync.Mutex
	server  *http.Server
	stopped bool
}

// NewServer builds the router. maxUpload caps the multipart body in bytes;
// zero selects 10 MiB.
func NewServer(svc *service.ArticleService, verifier *auth.Verifier, logger *zap.Logger, maxUpload int64) *Server {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	s := &Server{
		svc:       svc,
		verifier:  verifier,
		logger:    logger,
		router:    mux.NewRouter(),
		metrics:   newMetrics(),
		maxUpload: maxUpload,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.metrics.middleware)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.handler()).Methods(http.MethodGet)

	// Article routes
	s.router.HandleFunc("/articles", s.handleList).Methods(http.MethodGet)
	s.router.Handle("/articles", s.verifier.Middleware(http.HandlerFunc(s.handleCreate))).Methods(http.MethodPost)
	s.router.HandleFunc("/articles/{id}", s.handleGet).Methods(http.MethodGet)
	s.router.HandleFunc("/articles/{id}", s.handleUpdate).Methods(http.MethodPut)
	s.router.HandleFunc("/articles/{id}", s.handleDelete).Methods(http.MethodDelete)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
}

// ServeHTTP lets the server be mounted or driven by httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start launches the HTTP server. It returns http.ErrServerClosed after Stop.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return http.ErrServerClosed
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	s.server = srv
	s.mu.Unlock()

	s.logger.Info("Web server listening", zap.String("addr", addr))
	return srv.ListenAndServe()
}

// Stop gracefully shuts down
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}
