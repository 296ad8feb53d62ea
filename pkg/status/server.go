package status

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/resiliencelab/chaos-go/pkg/log"
)

// Server serves /healthz, /status and /metrics
type Server struct {
	tracker  *Tracker
	registry *prometheus.Registry
	srv      *http.Server
}

// NewServer returns a status server, registry may be nil to serve the default gatherer
func NewServer(addr string, tracker *Tracker, registry *prometheus.Registry) *Server {
	s := &Server{tracker: tracker, registry: registry}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// Router returns the routes of the server
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	router.HandleFunc("/status", s.status).Methods(http.MethodGet)

	var metrics http.Handler = promhttp.Handler()
	if s.registry != nil {
		metrics = promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
	}
	router.Handle("/metrics", metrics).Methods(http.MethodGet)
	return router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.tracker.Snapshot()); err != nil {
		log.Errorf("[Status]: Unable to encode the status, err: %v", err)
	}
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return errors.Wrapf(err, "unable to listen on %v", s.srv.Addr)
	}
	log.Infof("[Status]: Status server listening on %v", ln.Addr())
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("[Status]: Status server stopped, err: %v", err)
		}
	}()
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
