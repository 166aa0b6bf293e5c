package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Enforcement metrics
	StartsBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screentime_starts_blocked_total",
			Help: "Start attempts refused by quota enforcement",
		},
		[]string{"reason"},
	)

	UsageSecondsAccrued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screentime_usage_seconds_accrued_total",
			Help: "Screen-time seconds accrued by the maintenance sweep",
		},
		[]string{"category"},
	)

	SessionsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "screentime_sessions_running",
			Help: "Number of sessions currently running",
		},
	)

	// Notification metrics
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screentime_notifications_total",
			Help: "Notification dispatch attempts by kind and result",
		},
		[]string{"kind", "result"},
	)

	// Sweep metrics
	SweepRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screentime_sweep_runs_total",
			Help: "Total maintenance sweep passes",
		},
	)

	SweepSessionFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screentime_sweep_session_failures_total",
			Help: "Sessions skipped by a sweep due to errors",
		},
	)
)

func init() {
	prometheus.MustRegister(
		StartsBlocked,
		UsageSecondsAccrued,
		SessionsRunning,
		NotificationsTotal,
		SweepRunsTotal,
		SweepSessionFailures,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server *http.Server
	logger zerolog.Logger
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
