package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/eddielth/signal-monitor/config"
	"github.com/eddielth/signal-monitor/decoder"
	"github.com/eddielth/signal-monitor/logger"
	"github.com/eddielth/signal-monitor/monitor"
)

// Server is the read-only JSON API over the decoding pipeline and the
// monitor service.
type Server struct {
	monitor *monitor.Service
	decoder *decoder.Decoder
	router  *mux.Router

	mu    sync.RWMutex
	units map[string]int
}

// NewServer creates a new API server. Facilities provide the default unit
// count of the power endpoint.
func NewServer(svc *monitor.Service, dec *decoder.Decoder, facilities []monitor.Facility) *Server {
	s := &Server{
		monitor: svc,
		decoder: dec,
		router:  mux.NewRouter(),
	}
	s.SetFacilities(facilities)
	s.setupRoutes()
	return s
}

// SetFacilities replaces the default unit counts, e.g. after a config reload.
func (s *Server) SetFacilities(facilities []monitor.Facility) {
	units := make(map[string]int, len(facilities))
	for _, f := range facilities {
		units[strings.ToUpper(strings.TrimSpace(f.EquipmentID))] = f.Units
	}

	s.mu.Lock()
	s.units = units
	s.mu.Unlock()
}

func (s *Server) defaultUnits(equipmentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.units[equipmentID]
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/schema", s.handleListSchemas).Methods("GET")
	v1.HandleFunc("/schema/{type}", s.handleSchema).Methods("GET")
	v1.HandleFunc("/decode/{type}", s.handleDecode).Methods("POST")

	v1.HandleFunc("/equipment", s.handleSnapshots).Methods("GET")
	v1.HandleFunc("/equipment/{id}/health", s.handleEquipmentHealth).Methods("GET")
	v1.HandleFunc("/equipment/{id}/power", s.handleEquipmentPower).Methods("GET")
	v1.HandleFunc("/equipment/{id}/devices", s.handleEquipmentDevices).Methods("GET")
	v1.HandleFunc("/equipment/{id}/snapshot", s.handleEquipmentSnapshot).Methods("GET")

	s.router.Use(requestIDMiddleware)
	s.router.Use(loggingMiddleware)
	s.router.Use(jsonMiddleware)
}

// Router returns the configured router
func (s *Server) Router() *mux.Router {
	return s.router
}

// Run serves until ctx is done, then shuts the listener down gracefully.
func (s *Server) Run(ctx context.Context, cfg config.APIConfig) error {
	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("API listening on %s", cfg.Address)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "API server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shut down API server")
	}
	logger.Info("API server stopped")
	return nil
}
