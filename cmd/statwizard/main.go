package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"statwizard/adapters/postgres"
	"statwizard/adapters/statsapi"
	"statwizard/domain/analysis"
	"statwizard/internal/config"
	"statwizard/internal/errors"
	"statwizard/internal/migration"
	"statwizard/internal/validation"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	rootCmd := &cobra.Command{
		Use:          "statwizard",
		Short:        "Step-by-step statistical analysis wizards backed by a remote statistics service",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newRunCmd(),
		newAnalysesCmd(),
		newExamplesCmd(),
		newMigrateCmd(),
		newPruneCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime holds what every command builds from the configuration.
type runtime struct {
	cfg     *config.Config
	catalog *analysis.Catalog
	policy  *validation.Policy
	client  *statsapi.Client
}

func loadRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	policy, err := validation.LoadPolicy(cfg.Policy.File)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load validation policy")
	}
	client, err := statsapi.NewClient(statsapi.Config{
		BaseURL:       cfg.StatsAPI.BaseURL,
		Timeout:       cfg.StatsAPI.Timeout,
		MaxConcurrent: int64(cfg.StatsAPI.MaxConcurrent),
	})
	if err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, catalog: analysis.DefaultCatalog(), policy: policy, client: client}, nil
}

// openHistory connects to the run history database and brings its schema
// up to date.
func openHistory(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	db, err := postgres.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	migrator := migration.NewRunner()
	if err := migrator.Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "database migration failed")
	}
	return db, nil
}
