// Package cli wires configuration, sources and the generator into cobra
// commands.
package cli

import (
	"context"
	"fmt"
	"io/fs"
	"log"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ddlgen/internal/config"
	"github.com/JonMunkholm/ddlgen/internal/ddl"
	"github.com/JonMunkholm/ddlgen/internal/schema"
)

// NewRootCmd builds the root command and registers its subcommands.
// webFS is served by "serve" and must contain a "web" directory.
func NewRootCmd(webFS fs.FS) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ddlgen",
		Short:         "Generate CREATE TABLE statements for several SQL dialects from a SELECT or field list",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringSlice("env-file", nil, "env files to load (default ./.env when present)")

	rootCmd.AddCommand(NewServeCmd(webFS))
	rootCmd.AddCommand(NewGenerateCmd())
	rootCmd.AddCommand(NewDialectsCmd())

	return rootCmd
}

// loadConfig reads the env files named on the command line, then the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	files, _ := cmd.Root().PersistentFlags().GetStringSlice("env-file")
	return config.Load(files...)
}

// loadDialects returns the built-in dialects merged with DIALECTS_FILE.
func loadDialects(cfg *config.Config) (*ddl.Registry, error) {
	reg := ddl.DefaultDialects()
	if cfg.DialectsFile == "" {
		return reg, nil
	}
	merged, err := ddl.LoadDialectsFile(reg, cfg.DialectsFile)
	if err != nil {
		return nil, err
	}
	log.Printf("[CONFIG] Loaded dialects from %s (%d total)", cfg.DialectsFile, len(merged.Keys()))
	return merged, nil
}

// openSources connects every source that has a DSN configured. Sources that
// fail to connect are logged and skipped.
func openSources(ctx context.Context, cfg *config.Config) *schema.Sources {
	var srcs []schema.Source

	if cfg.DatabaseURL != "" {
		if src, err := schema.OpenPostgres(ctx, cfg.DatabaseURL, cfg.QueryTimeout); err != nil {
			log.Printf("[SOURCE] postgresql unavailable: %v", err)
		} else {
			srcs = append(srcs, src)
		}
	}
	if cfg.MySQLDSN != "" {
		if src, err := schema.OpenMySQL(ctx, cfg.MySQLDSN, cfg.QueryTimeout); err != nil {
			log.Printf("[SOURCE] mysql unavailable: %v", err)
		} else {
			srcs = append(srcs, src)
		}
	}
	if cfg.ClickHouseDSN != "" {
		if src, err := schema.OpenClickHouse(ctx, cfg.ClickHouseDSN, cfg.QueryTimeout); err != nil {
			log.Printf("[SOURCE] clickhouse unavailable: %v", err)
		} else {
			srcs = append(srcs, src)
		}
	}

	for _, s := range srcs {
		info := s.Info()
		log.Printf("[SOURCE] %s connected (database %q)", info.Kind, info.Database)
	}
	return schema.NewSources(srcs...)
}

// requireSource opens sources and returns the one for kind.
func requireSource(ctx context.Context, cfg *config.Config, kind string) (schema.Source, *schema.Sources, error) {
	sources := openSources(ctx, cfg)
	src, err := sources.Get(kind)
	if err != nil {
		sources.Close()
		return nil, nil, fmt.Errorf("%w (is its DSN configured and reachable?)", err)
	}
	return src, sources, nil
}
