package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/pagegen/internal/handlers"
	"github.com/lehigh-university-libraries/pagegen/internal/session"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		port      int
		ephemeral bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Starts the pagegen HTTP API on the specified port.

The API exposes the session for a browser client and accepts status
callbacks from the image generation service.`,
		Example: `  # Start server on the configured port (8888 by default)
  pagegen serve

  # Start server on custom port, keeping nothing on disk
  pagegen serve --port 3000 --ephemeral`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = opts.cfg.Server.Port
			}

			s, err := session.Open(cmd.Context(), opts.cfg, ephemeral)
			if err != nil {
				return err
			}
			defer s.Close()

			addr := fmt.Sprintf(":%d", port)
			server := &http.Server{
				Addr:              addr,
				Handler:           handlers.New(s).Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Pagegen API available", "addr", addr, "url", "http://localhost"+addr, "ephemeral", ephemeral)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8888, "Port to listen on")
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "Keep state and history in memory only")

	return cmd
}
