package main

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

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"statwizard/internal/mockapi"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	var (
		port    string
		latency time.Duration
		seed    uint64
	)

	rootCmd := &cobra.Command{
		Use:   "mockapi",
		Short: "Local stand-in for the statistics service",
		Long: `Serve the five analysis endpoints with local computations so the wizards
can be used without the real statistics service.

Example: mockapi --port 8000 --latency 1500ms`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), port, mockapi.Options{Latency: latency, Seed: seed})
		},
	}

	rootCmd.Flags().StringVar(&port, "port", envOr("MOCK_API_PORT", "8000"), "Port to listen on")
	rootCmd.Flags().DurationVar(&latency, "latency", 0, "Delay added to every analysis call")
	rootCmd.Flags().Uint64Var(&seed, "seed", 42, "Seed for the Monte Carlo simulation")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, port string, opts mockapi.Options) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mockapi.New(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[MockAPI] Listening on %s (latency %v)", srv.Addr, opts.Latency)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
