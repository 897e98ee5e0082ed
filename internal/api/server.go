package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"phalsystem/internal/config"
	"phalsystem/internal/plugins/reset"

	"go.uber.org/zap"
)

// Server provides HTTP status endpoints for the plugin
type Server struct {
	coordinator *reset.Coordinator
	cfg         *config.SystemConfig
	logger      *zap.Logger
	server      *http.Server
}

// NewServer creates a new status server
func NewServer(coordinator *reset.Coordinator, cfg *config.SystemConfig, logger *zap.Logger, port int) *Server {
	s := &Server{
		coordinator: coordinator,
		cfg:         cfg,
		logger:      logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleSitemap)
	mux.HandleFunc("/api/reset", s.handleReset)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// ResetStatus is the JSON response for the reset endpoint
type ResetStatus struct {
	Participants []string          `json:"participants"`
	LastRun      *reset.RunSummary `json:"last_run,omitempty"`
}

// handleReset returns the reset coordinator state
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := ResetStatus{
		Participants: s.coordinator.Participants(),
		LastRun:      s.coordinator.LastRun(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.logger.Debug("Reset status served", zap.String("remote_addr", r.RemoteAddr))
}

// ConfigResponse is the JSON response for the config endpoint
type ConfigResponse struct {
	SSHService  string `json:"ssh_service"`
	CoreService string `json:"core_service"`
	Sudo        bool   `json:"sudo"`
	ResetScript string `json:"reset_script,omitempty"`
}

// handleConfig returns the effective plugin configuration
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := ConfigResponse{
		SSHService:  s.cfg.SSHService,
		CoreService: s.cfg.CoreService,
		Sudo:        s.cfg.UseSudo(),
		ResetScript: s.cfg.ResetScript,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleHealth returns a simple health check response
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

// handleSitemap lists the available endpoints
func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "System PHAL status API\n\n")
	fmt.Fprintf(w, "  GET  /api/reset    Reset coordinator state (participants, last run)\n")
	fmt.Fprintf(w, "  GET  /api/config   Effective plugin configuration\n")
	fmt.Fprintf(w, "  GET  /health       Health check\n")
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP status server", zap.String("addr", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP status server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}
