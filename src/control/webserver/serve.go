package webserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stake-plus/ibots/src/logging"
)

const shutdownGrace = 10 * time.Second

// ServeOptions describes the listener.
type ServeOptions struct {
	Addr     string
	CertFile string
	KeyFile  string
}

// Serve runs handler until ctx ends, then shuts the server down gracefully.
// TLS is used when both CertFile and KeyFile are set.
func Serve(ctx context.Context, handler http.Handler, opts ServeOptions) error {
	log := logging.ForComponent("webserver")
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	useTLS := opts.CertFile != "" && opts.KeyFile != ""
	if useTLS {
		reloader, err := NewTLSReloader(ctx, opts.CertFile, opts.KeyFile)
		if err != nil {
			return fmt.Errorf("webserver: tls: %w", err)
		}
		srv.TLSConfig = reloader.Config()
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if useTLS {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	log.Info().Str("addr", opts.Addr).Bool("tls", useTLS).Msg("control plane listening")

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("webserver: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("webserver: shutdown: %w", err)
	}
	return nil
}
