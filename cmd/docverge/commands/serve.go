// File path: cmd/docverge/commands/serve.go
package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"docverge/internal/api"
	"docverge/internal/catalog"
	"docverge/internal/common"
	"docverge/internal/document"
	"docverge/internal/enrich"
	"docverge/internal/orchestrator"
)

// serve: run the HTTP comparison service until interrupted.
func serveCmd() *cobra.Command {
	var (
		addr      string
		noHistory bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the comparison HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := common.Logger()

			cfg, err := orchestrator.LoadConfig()
			if err != nil {
				return err
			}

			var history *catalog.Store
			if !noHistory {
				catalogCfg, err := catalog.LoadConfig()
				if err != nil {
					return err
				}
				history, err = catalog.Open(catalogCfg)
				if err != nil {
					return err
				}
				defer history.Close()
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			orch, err := orchestrator.New(ctx, cfg, document.NewNormalizer(), enrich.NewProvider(), history)
			if err != nil {
				return err
			}
			defer orch.Close()

			srv, err := api.NewServer(orch)
			if err != nil {
				return err
			}
			httpServer := &http.Server{
				Addr:              addr,
				Handler:           srv,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("serve: listening", "addr", addr)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				logger.Info("serve: shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "disable the SQLite job history catalog")
	return cmd
}
