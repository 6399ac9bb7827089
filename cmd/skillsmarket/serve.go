package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/emergent/skillsmarket/pkg/api"
	"github.com/emergent/skillsmarket/pkg/config"
	"github.com/emergent/skillsmarket/pkg/db"
	"github.com/emergent/skillsmarket/pkg/db/migrations"
	"github.com/emergent/skillsmarket/pkg/filestore"
	"github.com/emergent/skillsmarket/pkg/github"
	"github.com/emergent/skillsmarket/pkg/logger"
	"github.com/emergent/skillsmarket/pkg/marketplace"
	"github.com/emergent/skillsmarket/pkg/presenter"
	"github.com/emergent/skillsmarket/pkg/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the marketplace API server",
	Long: `Start the HTTP API that indexes skills, agents and rules in the database and
stores their files in the configured file store (a GitHub repository by
default, or a local directory with --backend local).

Pending database migrations are applied on start.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg)
	},
}

func init() {
	flags := serveCmd.Flags()
	flags.String("listen", "localhost:8787", "Address to listen on")
	flags.String("backend", config.BackendGitHub, "File store backend (github or local)")
	flags.String("public-url", "http://localhost:8787", "Public base URL of this server, used for local download URLs")
	flags.StringSlice("allowed-origins", []string{api.DefaultAllowedOrigin}, "Origins allowed by CORS")

	_ = viper.BindPFlag("listen", flags.Lookup("listen"))
	_ = viper.BindPFlag("store.backend", flags.Lookup("backend"))
	_ = viper.BindPFlag("public_url", flags.Lookup("public-url"))
	_ = viper.BindPFlag("allowed_origins", flags.Lookup("allowed-origins"))
}

// loadConfig decodes and validates the global configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openDatabase opens the configured database and applies pending
// migrations.
func openDatabase(ctx context.Context, cfg db.Config) (*sqlx.DB, error) {
	conn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := db.NewMigrationRunner(conn).Run(ctx, migrations.All()); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// newFileStore builds the configured file store and reports whether its
// files must be served by the API.
func newFileStore(ctx context.Context, cfg *config.Config) (filestore.Store, bool, error) {
	switch cfg.Store.Backend {
	case config.BackendLocal:
		local, err := filestore.NewLocal(cfg.Store.LocalRoot, cfg.PublicURL)
		if err != nil {
			return nil, false, err
		}
		return local, true, nil
	default:
		gh, err := github.NewStore(ctx, cfg.GitHub)
		if err != nil {
			return nil, false, err
		}
		return gh, false, nil
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdown, err := initTracing(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.G(ctx).WithError(err).Warn("failed to flush traces")
		}
	}()

	host, port, err := cfg.HostPort()
	if err != nil {
		return err
	}

	conn, err := openDatabase(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer conn.Close()

	files, serveFiles, err := newFileStore(ctx, cfg)
	if err != nil {
		return err
	}

	logger.G(ctx).WithField("backend", cfg.Store.Backend).
		WithField("db_driver", cfg.DB.Driver).
		WithField("environment", cfg.Environment).
		Info("starting marketplace")

	service := marketplace.New(store.New(conn), files)
	server, err := api.NewServer(service, &api.ServerConfig{
		Host:           host,
		Port:           port,
		AllowedOrigins: cfg.AllowedOrigins,
		ServeFiles:     serveFiles,
	})
	if err != nil {
		return err
	}

	presenter.Info("Press Ctrl+C to stop the server")
	if err := server.Start(ctx); err != nil {
		return errors.Wrap(err, "api server failed")
	}
	presenter.Info("Server stopped")
	return nil
}
