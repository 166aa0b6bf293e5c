package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goodtune/screentime/internal/storage"
	"github.com/goodtune/screentime/internal/timer"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Config holds the API server configuration.
type Config struct {
	ListenAddr string
	AdminToken string
	SweepToken string
}

// Server is the household-facing HTTP server. User endpoints trust the
// X-User-ID header (the server is expected to sit on the home LAN behind
// the family gateway); admin endpoints require a bearer token.
type Server struct {
	config Config
	server *http.Server
	router *mux.Router
	logger zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg Config, store storage.Store, service *timer.Service, admin *timer.Admin, sweeper *timer.Sweeper, logger zerolog.Logger) *Server {
	router := mux.NewRouter()

	s := &Server{
		config: cfg,
		router: router,
		logger: logger.With().Str("component", "api").Logger(),
	}

	router.Use(LoggingMiddleware(s.logger))

	router.HandleFunc("/health", s.handleHealth).Methods("GET")

	timerHandler := NewTimerHandler(service, s.logger)
	router.HandleFunc("/api/timers", timerHandler.List).Methods("GET")
	router.HandleFunc("/api/timers/{id}/start", timerHandler.Start).Methods("POST")
	router.HandleFunc("/api/timers/{id}/stop", timerHandler.Stop).Methods("POST")
	router.HandleFunc("/api/timers/{id}/pause", timerHandler.Pause).Methods("POST")

	sweepHandler := NewSweepHandler(sweeper, s.logger)
	sweepRouter := router.PathPrefix("/api/sweep").Subrouter()
	sweepRouter.Use(TokenMiddleware(cfg.SweepToken))
	sweepRouter.HandleFunc("", sweepHandler.Run).Methods("POST")

	adminHandler := NewAdminHandler(admin, store, s.logger)
	adminRouter := router.PathPrefix("/api/admin").Subrouter()
	adminRouter.Use(TokenMiddleware(cfg.AdminToken))
	adminRouter.HandleFunc("/timers", adminHandler.ListTimers).Methods("GET")
	adminRouter.HandleFunc("/timers", adminHandler.CreateTimer).Methods("POST")
	adminRouter.HandleFunc("/timers/{id}", adminHandler.GetTimer).Methods("GET")
	adminRouter.HandleFunc("/timers/{id}", adminHandler.UpdateTimer).Methods("PUT")
	adminRouter.HandleFunc("/timers/{id}", adminHandler.DeleteTimer).Methods("DELETE")
	adminRouter.HandleFunc("/timers/{id}/bonus", adminHandler.GrantBonus).Methods("POST")
	adminRouter.HandleFunc("/timers/{id}/audit", adminHandler.GetAudit).Methods("GET")

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the API server in a background goroutine.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Starting API server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()

	return nil
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}
