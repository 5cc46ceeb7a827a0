// Package server exposes the compliance engine over HTTP for the
// submission UI: expense evaluation, health, and prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/spendguard/spendguard/internal/audit"
	"github.com/spendguard/spendguard/internal/config"
	"github.com/spendguard/spendguard/internal/extract"
	"github.com/spendguard/spendguard/internal/metrics"
	"github.com/spendguard/spendguard/internal/policy"
	"github.com/spendguard/spendguard/internal/review"
)

// Server is the spendguard HTTP API server.
type Server struct {
	cfg    *config.Config
	srv    *http.Server
	ln     net.Listener
	store  *audit.Store
	logger *slog.Logger
}

// NewServer wires the evaluation pipeline and binds the listener.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	evaluator := policy.NewEvaluator(cfg)

	store, err := audit.NewStore(cfg.AuditDB, logger)
	if err != nil {
		return nil, fmt.Errorf("opening audit store: %w", err)
	}

	collector := metrics.NewCollector(nil)
	extractor := extract.NewClient(cfg.Extractor.Endpoint, cfg.ExtractTimeout())
	reviewer := review.NewReviewer(extractor, evaluator, store, collector, logger)
	handler := NewHandler(reviewer, logger)

	mux := http.NewServeMux()
	mux.Handle("POST /v1/expenses", handler)
	mux.Handle("GET /metrics", collector.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":         "ok",
			"policy_version": evaluator.Version(),
		})
	})

	var h http.Handler = mux
	h = logging(logger)(h)
	h = recovery(logger)(h)
	h = requestID(h)

	// Localhost only unless configured otherwise.
	bind := cfg.Server.Bind
	if bind == "" {
		bind = "127.0.0.1"
	}

	ln, actualPort, err := listenAutoPort(bind, cfg.Server.Port, logger)
	if err != nil {
		if cerr := store.Close(); cerr != nil {
			logger.Error("closing audit store", "error", cerr)
		}
		return nil, fmt.Errorf("binding port: %w", err)
	}
	cfg.Server.Port = actualPort

	srv := &http.Server{
		Handler:        h,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	return &Server{
		cfg:    cfg,
		srv:    srv,
		ln:     ln,
		store:  store,
		logger: logger,
	}, nil
}

// listenAutoPort tries the configured port; if busy, scans up to 10 higher ports.
func listenAutoPort(bind string, port int, logger *slog.Logger) (net.Listener, int, error) {
	addr := fmt.Sprintf("%s:%d", bind, port)
	ln, err := net.Listen("tcp", addr)
	if err == nil {
		// When port is 0, the OS assigns a random port; report the actual one.
		actual := ln.Addr().(*net.TCPAddr).Port
		return ln, actual, nil
	}

	if !isAddrInUse(err) {
		return nil, 0, err
	}

	logger.Warn("port in use, searching for available port", "port", port)
	for offset := 1; offset <= 10; offset++ {
		tryPort := port + offset
		addr = fmt.Sprintf("%s:%d", bind, tryPort)
		ln, err = net.Listen("tcp", addr)
		if err == nil {
			logger.Info("using alternative port", "original", port, "actual", tryPort)
			return ln, tryPort, nil
		}
	}
	return nil, 0, fmt.Errorf("port %d and next 10 ports are all in use", port)
}

func isAddrInUse(err error) bool {
	if errors.Is(err, syscall.EADDRINUSE) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, syscall.EADDRINUSE)
	}
	return false
}

// AuditStore returns the audit store for CLI queries.
func (s *Server) AuditStore() *audit.Store {
	return s.store
}

// Port returns the actual port the server is bound to.
func (s *Server) Port() int {
	return s.cfg.Server.Port
}

// Start begins listening. Blocks until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("spendguard api starting",
		"addr", s.ln.Addr().String(),
		"policy_version", s.cfg.PolicyVersion(),
	)
	return s.srv.Serve(s.ln)
}

// Shutdown gracefully stops the server and closes the audit store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	err := s.srv.Shutdown(ctx)
	if cerr := s.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
