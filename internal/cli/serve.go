package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matt-wil/masterblog/internal/browser"
	"github.com/matt-wil/masterblog/internal/client"
	"github.com/matt-wil/masterblog/internal/config"
	httpapp "github.com/matt-wil/masterblog/internal/http"
	"github.com/matt-wil/masterblog/internal/rate"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web front end",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			cfg.Version = Version
			cfg.Commit = Commit
			cfg.BuildTime = BuildTime
			return runServer(cmd.Context(), cfg, log.Default())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides MASTERBLOG_ADDR)")
	return cmd
}

func runServer(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	settings, err := openStore(cfg)
	if err != nil {
		logger.Printf("failed to open store: %v", err)
		return logged(err)
	}
	defer settings.Close()

	newClient := func(baseURL string) *client.Client {
		return client.NewWithTimeout(baseURL, cfg.HTTPTimeout)
	}
	server, err := httpapp.NewServer(browser.New(settings, newClient, logger), rate.NewMemory(), cfg, logger)
	if err != nil {
		logger.Printf("failed to initialize server: %v", err)
		return logged(err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("masterblog listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Printf("server error: %v", err)
			return logged(fmt.Errorf("serve: %w", err))
		}
		return nil
	case <-ctx.Done():
	}

	logger.Println("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
