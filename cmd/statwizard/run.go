package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"statwizard/adapters/examples"
	"statwizard/adapters/excel"
	"statwizard/adapters/postgres"
	"statwizard/app"
	"statwizard/domain/analysis"
	"statwizard/domain/core"
	"statwizard/domain/dataset"
	"statwizard/internal/errors"
	"statwizard/internal/wizard"
	"statwizard/ports"
)

type runOptions struct {
	analysisID string
	file       string
	example    string
	sets       []string
	output     string
	asJSON     bool
	record     bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one analysis on a dataset without the UI",
		Long: `Load a dataset, apply selections on top of the defaults, validate and run
the analysis against the statistics service, then print the summary.

Column fields that take several columns accept a repeated --set.

Example:
  statwizard run --analysis linear-regression --example housing \
    --set dependent=price_k --set independents=sqft --set independents=age_years \
    --output housing.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (opts.file == "") == (opts.example == "") {
				return fmt.Errorf("exactly one of --file or --example is required")
			}
			return runHeadless(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.analysisID, "analysis", "a", "", "Analysis id (see 'statwizard analyses')")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "CSV or Excel file to analyse")
	cmd.Flags().StringVarP(&opts.example, "example", "e", "", "Built-in example dataset key")
	cmd.Flags().StringArrayVar(&opts.sets, "set", nil, "Field selection as key=value")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Export the result to a .csv, .xlsx or .png file")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&opts.record, "record", false, "Record the run in the history database")
	_ = cmd.MarkFlagRequired("analysis")
	return cmd
}

func runHeadless(ctx context.Context, out io.Writer, opts runOptions) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}

	var runs ports.RunRepository
	if opts.record {
		db, err := openHistory(ctx, rt.cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		runs = postgres.NewRunRepository(db)
	}

	sessions, err := app.NewSessionManager(app.ManagerConfig{
		Catalog: rt.catalog,
		Policy:  rt.policy,
		Client:  rt.client,
		Runs:    runs,
	})
	if err != nil {
		return err
	}

	ds, err := loadDataset(opts)
	if err != nil {
		return err
	}
	ws := sessions.Workspace(core.NewSessionID())
	defer sessions.Remove(ws.ID())
	if err := ws.LoadDataset(ds); err != nil {
		return err
	}
	analysisID, err := core.ParseAnalysisID(opts.analysisID)
	if err != nil {
		return err
	}
	sess, err := ws.Session(analysisID)
	if err != nil {
		return err
	}
	if err := applySelections(sess, opts.sets); err != nil {
		return err
	}

	st, err := advanceToRun(ctx, sess)
	if err == nil {
		st, err = sess.Run(ctx)
	}
	switch {
	case stderrors.Is(err, wizard.ErrValidationBlocked):
		printChecks(out, sess.Checks())
		return err
	case err != nil:
		return fmt.Errorf("%s failed: %s", sess.Definition().Title, errors.UserMessage(err))
	}

	res := st.LastResult
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printChecks(out, sess.Checks())
		printResult(out, sess.Definition(), res)
	}

	if opts.output != "" {
		return exportResult(opts.output, res)
	}
	return nil
}

func loadDataset(opts runOptions) (*dataset.Dataset, error) {
	if opts.example != "" {
		return examples.NewLoader().Load(opts.example)
	}
	return excel.NewDataReader(0).ReadFile(opts.file, dataset.SourceUpload)
}

// applySelections groups repeated keys so multi-column fields get all
// their values in one selection.
func applySelections(sess *app.AnalysisSession, sets []string) error {
	var order []string
	values := make(map[string][]string)
	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return fmt.Errorf("invalid --set %q, expected key=value", kv)
		}
		if _, seen := values[key]; !seen {
			order = append(order, key)
		}
		if value = strings.TrimSpace(value); value != "" {
			values[key] = append(values[key], value)
		} else if values[key] == nil {
			values[key] = []string{}
		}
	}
	for _, key := range order {
		if err := sess.Select(key, values[key]...); err != nil {
			return errors.Wrap(err, "apply selection")
		}
	}
	return nil
}

func printChecks(out io.Writer, checks []analysis.Check) {
	analysis.SortChecks(checks)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tSEVERITY\tSTATUS\tDETAIL")
	for _, c := range checks {
		status := "pass"
		if !c.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Label, c.Severity, status, c.Detail)
	}
	tw.Flush()
	fmt.Fprintln(out)
}

func printResult(out io.Writer, def *analysis.Definition, res *analysis.Result) {
	fmt.Fprintf(out, "%s\n%s\n\n", def.Title, res.Summary.Headline)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, m := range res.Summary.Metrics {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Label, m.Value, m.Hint)
	}
	tw.Flush()

	if len(res.Interpretation) > 0 {
		fmt.Fprintln(out)
		for _, line := range res.Interpretation {
			fmt.Fprintln(out, line)
		}
	}

	for _, t := range res.Summary.Tables {
		fmt.Fprintf(out, "\n%s\n", t.Title)
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(t.Columns, "\t"))
		for _, row := range t.Rows {
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		tw.Flush()
	}
}

func exportResult(path string, res *analysis.Result) error {
	var write func(io.Writer, *analysis.Result) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		write = app.WriteCSV
	case ".xlsx":
		write = app.WriteXLSX
	case ".png":
		write = func(w io.Writer, r *analysis.Result) error {
			png, err := app.PlotPNG(r)
			if err != nil {
				return err
			}
			_, err = w.Write(png)
			return err
		}
	default:
		return fmt.Errorf("unsupported export format %q (csv, xlsx, png)", filepath.Ext(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// advanceToRun walks the wizard forward to its validation step, the way a
// user clicking Next would.
func advanceToRun(ctx context.Context, sess *app.AnalysisSession) (wizard.State, error) {
	ctrl := sess.Controller()
	st := ctrl.State()
	for st.CurrentStep < ctrl.Config().RunStep {
		var err error
		if st, err = sess.Next(ctx); err != nil {
			return st, err
		}
	}
	return st, nil
}
