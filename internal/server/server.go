package server

import (
	"context"
	"fmt"
	"net/http"

	"PoscoMonitorAPI/internal/config"
	"PoscoMonitorAPI/internal/handler"
	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/middleware"

	"github.com/gorilla/mux"
)

type Server struct {
	httpServer *http.Server
	router     *mux.Router
	cfg        *config.Config
	log        *logger.Logger
}

func New(cfg *config.Config, log *logger.Logger) *Server {
	router := mux.NewRouter()

	server := &Server{
		router: router,
		cfg:    cfg,
		log:    log,
		httpServer: &http.Server{
			Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:        router,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		},
	}

	return server
}

// Handlers groups everything mounted on the root router.
type Handlers struct {
	Alert       *handler.AlertHandler
	Action      *handler.ActionHandler
	Maintenance *handler.MaintenanceHandler
	Equipment   *handler.EquipmentHandler
	Directory   *handler.DirectoryHandler
	Health      *handler.HealthHandler
	Realtime    http.Handler
}

func (s *Server) RegisterHandlers(h Handlers) {
	r := s.router

	r.Use(middleware.Recovery(s.log))
	r.Use(middleware.RequestLogger(s.log))

	if s.cfg.Security.EnableRateLimit {
		r.Use(middleware.RateLimit(s.cfg.Security.RateLimitPerMinute))
	}

	h.Alert.RegisterRoutes(r)
	h.Action.RegisterRoutes(r)
	h.Maintenance.RegisterRoutes(r)
	h.Equipment.RegisterRoutes(r)
	h.Directory.RegisterRoutes(r)
	h.Health.RegisterRoutes(r)

	if h.Realtime != nil {
		r.Handle("/ws", h.Realtime)
	}

	// CORS wraps the router so preflight requests reach it before method
	// matching rejects them.
	s.httpServer.Handler = middleware.CORS(s.cfg.Security.CORSAllowedOrigins, s.cfg.Security.CORSAllowedMethods)(r)

	s.log.Info("All handlers registered")
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.log.Info("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}
