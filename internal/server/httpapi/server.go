package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/filegate/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// Server runs the gateway HTTP endpoint with graceful shutdown.
type Server struct {
	address    string
	logger     logging.Logger
	httpServer *http.Server
}

func NewServer(address string, l logging.Logger, handler http.Handler) *Server {
	return &Server{
		address: address,
		logger:  l.With("module", "http_server"),
		httpServer: &http.Server{
			Addr:              address,
			Handler:           handler,
			ReadHeaderTimeout: 30 * time.Second,
			IdleTimeout:       120 * time.Second,
			// No WriteTimeout: bundle downloads stream for as long as the
			// archive takes; the client's disconnect cancels the request ctx.
		},
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
