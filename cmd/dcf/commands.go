package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apivaluation "dcf_valuation/pkg/api/valuation"
	"dcf_valuation/pkg/client"
	"dcf_valuation/pkg/core/assumption"
	"dcf_valuation/pkg/core/pipeline"
	"dcf_valuation/pkg/core/report"
	"dcf_valuation/pkg/core/validate"
)

var (
	repair   bool
	format   string
	horizon  int
	currency string

	remoteURL    string
	retries      int
	remoteReport bool
)

var valueCmd = &cobra.Command{
	Use:   "value [assumptions-file]",
	Short: "Run a valuation locally and print the report",
	Long: `Values the company described by an assumptions file and prints the report
with its projection table and sensitivity grid. Rates are in percent.

Required fields: ` + strings.Join(assumption.RequiredFields(), ", "),
	Example: `  dcf value acme.json
  dcf value acme.yaml --horizon 10 --format markdown
  dcf value sloppy.json --repair --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runValue,
}

var remoteCmd = &cobra.Command{
	Use:   "remote [assumptions-file]",
	Short: "Send assumptions to a running DCF server",
	Long: `Posts the assumptions to /api/dcf on a running server. Connection failures
and 5xx responses are retried after a fixed delay; validation failures are
reported immediately.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemote,
}

func runValue(cmd *cobra.Command, args []string) error {
	a, err := assumption.ParseFile(args[0], repair)
	if err != nil {
		return describe(err)
	}

	opts := cfg.Engine
	if horizon > 0 {
		opts.HorizonYears = horizon
	}
	cur := cfg.Report.Currency
	if currency != "" {
		cur = currency
	}

	logger.Debug("running valuation",
		zap.String("file", args[0]),
		zap.Int("horizon_years", opts.HorizonYears),
		zap.Bool("parallel_grid", opts.Grid.Parallel),
	)
	rep, err := pipeline.Run(cmd.Context(), a, opts)
	if err != nil {
		return describe(err)
	}

	return render(cmd.OutOrStdout(), rep, cur)
}

func render(w io.Writer, rep *pipeline.Report, cur string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "markdown", "md":
		_, err := io.WriteString(w, report.Markdown(rep, cur))
		return err
	case "html":
		page, err := report.HTMLPage(rep, cur, "")
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, page)
		return err
	case "terminal", "":
		style := glamour.WithAutoStyle()
		if !isTerminal(os.Stdout) {
			style = glamour.WithStandardStyle("notty")
		}
		renderer, err := glamour.NewTermRenderer(
			style,
			glamour.WithWordWrap(120),
		)
		if err != nil {
			return fmt.Errorf("failed to create renderer: %w", err)
		}
		out, err := renderer.Render(report.Markdown(rep, cur))
		if err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}
		_, err = io.WriteString(w, out)
		return err
	default:
		return fmt.Errorf("unknown format %q (want terminal, markdown, html or json)", format)
	}
}

func runRemote(cmd *cobra.Command, args []string) error {
	a, err := assumption.ParseFile(args[0], repair)
	if err != nil {
		return describe(err)
	}

	c := client.New(cfg.Client.BaseURL)
	if remoteURL != "" {
		c = client.New(remoteURL)
	}
	c.HTTP = &http.Client{Timeout: cfg.Client.Timeout}
	c.Retries = cfg.Client.Retries
	if retries >= 0 {
		c.Retries = retries
	}
	c.RetryDelay = cfg.Client.RetryDelay
	c.Logger = logger

	out := cmd.OutOrStdout()
	if remoteReport {
		page, err := c.Report(cmd.Context(), a)
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, page)
		return err
	}

	resp, err := c.Value(cmd.Context(), a)
	if err != nil {
		return err
	}
	if resp.RunID != "" {
		logger.Info("run stored", zap.String("run_id", resp.RunID))
	}
	return printWire(out, resp.DCFResponse)
}

func printWire(w io.Writer, resp apivaluation.DCFResponse) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// describe prefixes engine errors with their kind so scripts can grep for it.
func describe(err error) error {
	return fmt.Errorf("%s: %w", validate.KindOf(err), err)
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
