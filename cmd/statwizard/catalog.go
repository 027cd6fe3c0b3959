package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"statwizard/adapters/examples"
	"statwizard/adapters/postgres"
	"statwizard/domain/analysis"
	"statwizard/internal/config"
)

func newAnalysesCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "analyses",
		Short: "List the available analyses and their fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tSTEPS")
			for _, def := range analysis.DefaultCatalog().All() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", def.ID, def.Title, def.Category, strings.Join(def.Steps, " > "))
				if !verbose {
					continue
				}
				for _, f := range def.Fields {
					fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", f.Key, f.Label, f.Kind, fieldHint(f))
				}
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show the fields of every analysis")
	return cmd
}

func fieldHint(f analysis.Field) string {
	var parts []string
	if f.Required {
		parts = append(parts, "required")
	}
	if f.Default != "" {
		parts = append(parts, "default "+f.Default)
	}
	if len(f.Choices) > 0 {
		values := make([]string, len(f.Choices))
		for i, c := range f.Choices {
			values[i] = c.Value
		}
		parts = append(parts, "one of "+strings.Join(values, "|"))
	}
	return strings.Join(parts, ", ")
}

func newExamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "List the built-in example datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tANALYSIS\tDESCRIPTION")
			for _, ex := range examples.NewLoader().List() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", ex.Key, ex.Suggested, ex.Description)
			}
			return tw.Flush()
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the run history schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := openHistory(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", cfg.Database.Driver)
			return nil
		},
	}
}

func newPruneCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete recorded runs older than a cutoff",
		Long: `Delete run history older than --older-than, defaulting to HISTORY_RETENTION.

Example: statwizard prune --older-than 168h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if olderThan <= 0 {
				olderThan = cfg.Database.Retention
			}
			if olderThan <= 0 {
				return fmt.Errorf("nothing to prune: no retention configured")
			}
			db, err := openHistory(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := postgres.NewRunRepository(db).DeleteBefore(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d runs older than %v\n", n, olderThan)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Age cutoff, e.g. 720h")
	return cmd
}
