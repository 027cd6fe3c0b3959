package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"statwizard/adapters/examples"
	"statwizard/adapters/excel"
	"statwizard/adapters/postgres"
	"statwizard/app"
	"statwizard/internal/api"
	"statwizard/ports"
	"statwizard/ui"
)

const pruneInterval = 6 * time.Hour

func newServeCmd() *cobra.Command {
	var port string
	var noHistory bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis wizards over HTTP",
		Long: `Serve the wizard UI. Configuration is read from the environment
(and a .env file when present):

- PORT, GIN_MODE, MAX_UPLOAD_MB, SERVER_READ_TIMEOUT, SERVER_WRITE_TIMEOUT
- STATS_API_URL, STATS_API_TIMEOUT, STATS_API_MAX_CONCURRENT
- DATABASE_DRIVER (sqlite3|postgres), DATABASE_URL, HISTORY_RETENTION
- SESSION_IDLE_TIMEOUT, SESSION_SWEEP_INTERVAL, TOAST_LIMIT
- POLICY_FILE

Example: STATS_API_URL=http://localhost:8000 statwizard serve --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, noHistory)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Port to listen on (overrides PORT)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record runs in the history database")
	return cmd
}

func runServe(ctx context.Context, port string, noHistory bool) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	cfg := rt.cfg
	gin.SetMode(cfg.Server.GinMode)
	if port == "" {
		port = cfg.Server.Port
	}

	var runs ports.RunRepository
	if !noHistory {
		db, err := openHistory(ctx, cfg)
		if err != nil {
			log.Printf("[Main] Run history disabled: %v", err)
		} else {
			defer db.Close()
			repo := postgres.NewRunRepository(db)
			runs = repo
			if cfg.Database.Retention > 0 {
				go pruneLoop(ctx, repo, cfg.Database.Retention)
			}
		}
	}

	hub := api.NewSSEHub()
	toasts := ui.NewToastQueue(cfg.Sessions.ToastLimit)

	sessions, err := app.NewSessionManager(app.ManagerConfig{
		Catalog:     rt.catalog,
		Policy:      rt.policy,
		Client:      rt.client,
		Runs:        runs,
		Observers:   ui.WizardObservers(rt.catalog, toasts, hub),
		IdleTimeout: cfg.Sessions.IdleTimeout,
	})
	if err != nil {
		return err
	}
	sessions.Start(ctx, cfg.Sessions.SweepInterval)

	server, err := ui.NewServer(ui.Deps{
		Sessions:       sessions,
		Examples:       examples.NewLoader(),
		Reader:         excel.NewDataReader(0),
		Runs:           runs,
		Hub:            hub,
		Toasts:         toasts,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		CookieMaxAge:   cfg.Sessions.IdleTimeout,
	})
	if err != nil {
		return err
	}

	log.Printf("[Main] Statistics service at %s, %d analyses", rt.client.BaseURL(), len(rt.catalog.All()))
	return server.Start(ctx, ":"+port, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
}

// pruneLoop deletes runs older than the retention window until ctx is done.
func pruneLoop(ctx context.Context, repo *postgres.RunRepository, retention time.Duration) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		pruneOnce(ctx, repo, retention)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func pruneOnce(ctx context.Context, repo *postgres.RunRepository, retention time.Duration) {
	n, err := repo.DeleteBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		log.Printf("[History] prune failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[History] pruned %d runs older than %v", n, retention)
	}
}
