package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ddlgen/internal/api"
	"github.com/JonMunkholm/ddlgen/internal/ddl"
	"github.com/JonMunkholm/ddlgen/internal/metrics"
)

// NewServeCmd runs the HTTP API and web front end.
func NewServeCmd(webFS fs.FS) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the DDL API and web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if port, _ := cmd.Flags().GetString("port"); port != "" {
				cfg.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			dialects, err := loadDialects(cfg)
			if err != nil {
				return err
			}
			sources := openSources(ctx, cfg)
			defer sources.Close()

			rec := metrics.New()
			gen := ddl.NewGenerator(dialects,
				ddl.WithPlaceholder(cfg.TablePlaceholder),
				ddl.WithObserver(rec),
			)
			handler, err := api.NewHandler(gen, sources, rec, webFS, cfg)
			if err != nil {
				return fmt.Errorf("failed to create API handler: %w", err)
			}
			defer handler.Stop()

			server := &http.Server{
				Addr:           ":" + cfg.Port,
				Handler:        handler.Routes(),
				ReadTimeout:    cfg.ReadTimeout,
				WriteTimeout:   cfg.WriteTimeout,
				MaxHeaderBytes: 1 << 20, // 1 MB
			}

			errCh := make(chan error, 1)
			go func() {
				log.Printf("DDL generator running at http://localhost:%s", cfg.Port)
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			log.Println("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("Shutdown error: %v", err)
			}
			return nil
		},
	}
	cmd.Flags().String("port", "", "listen port (overrides PORT)")
	return cmd
}
