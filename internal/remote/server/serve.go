package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds how long in-flight requests may take after ctx ends.
const ShutdownTimeout = 30 * time.Second

// ListenConfig holds the listener settings of the sync server.
type ListenConfig struct {
	Addr    string
	TLSCert string
	TLSKey  string
}

// NewHTTPServer wraps h in an http.Server with the server's timeouts.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return context.Background() },
	}
}

// Serve runs srv until ctx is cancelled, then shuts it down gracefully.
// It returns the first listener or shutdown error.
func Serve(ctx context.Context, srv *http.Server, lc ListenConfig, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting finsync server", "listen", srv.Addr, "tls", lc.TLSCert != "")
		var err error
		if lc.TLSCert != "" && lc.TLSKey != "" {
			err = srv.ListenAndServeTLS(lc.TLSCert, lc.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
