package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spektr-org/ecomdash/dashboard"
	"github.com/spektr-org/ecomdash/engine"
	"github.com/spektr-org/ecomdash/helpers"
	"github.com/spektr-org/ecomdash/orders"
	"github.com/spektr-org/ecomdash/render"
	"github.com/spektr-org/ecomdash/schema"
	"github.com/spektr-org/ecomdash/server"
)

func parseRange(start, end string) (dashboard.PageParams, error) {
	from, err := dashboard.ParseDate(start)
	if err != nil {
		return dashboard.PageParams{}, err
	}
	to, err := dashboard.ParseDate(end)
	if err != nil {
		return dashboard.PageParams{}, err
	}
	return dashboard.PageParams{Start: from, End: to}, nil
}

func addRangeFlags(cmd *cobra.Command, start, end *string) {
	cmd.Flags().StringVar(start, "start", "", "first purchase date, YYYY-MM-DD")
	cmd.Flags().StringVar(end, "end", "", "last purchase date, YYYY-MM-DD")
}

// ============================================================================
// SERVE
// ============================================================================

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if addr != "" {
				a.cfg.Server.Addr = addr
			}

			sch, err := discoverFile(a.cfg.Data.Path, schema.DiscoverOptions{})
			if err != nil {
				a.log.Warn("schema discovery failed", zap.Error(err))
			}

			srv := server.New(a.svc, server.Options{
				Addr:         a.cfg.Server.Addr,
				ReadTimeout:  a.cfg.Server.ReadTimeout,
				WriteTimeout: a.cfg.Server.WriteTimeout,
				Width:        a.cfg.Render.Width,
				Height:       a.cfg.Render.Height,
				Logger:       a.log,
				Schema:       sch,
			})
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// ============================================================================
// PAGES + PAGE
// ============================================================================

func newPagesCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "List the dashboard pages and their panels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			// Page listing needs no data.
			pages := dashboard.NewService(&orders.Dataset{}, cfg.ServiceConfig(), logger).Pages()
			w := cmd.OutOrStdout()
			if format != "text" {
				return writeJSON(w, pages, format)
			}
			for _, p := range pages {
				heading.Fprintf(w, "%s", p.Key)
				fmt.Fprintf(w, "  %s\n", p.Title)
				faint.Fprintf(w, "  %s\n", p.Description)
				for _, panel := range p.Panels {
					fmt.Fprintf(w, "    - %s\n", panel)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json, pretty")
	return cmd
}

func newPageCmd(opts *rootOptions) *cobra.Command {
	var start, end, format, panel, out string
	cmd := &cobra.Command{
		Use:   "page <key>",
		Short: "Compute one dashboard page",
		Long: `Compute one dashboard page over an optional purchase date range.

Formats:
  table     Terminal tables, one per panel (default)
  json      Full JSON output
  pretty    Pretty-printed JSON
  csv       One panel as CSV (requires --panel)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "csv" && panel == "" {
				return errors.New("csv output needs --panel")
			}
			params, err := parseRange(start, end)
			if err != nil {
				return err
			}

			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			page, err := a.svc.Page(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			if panel != "" {
				p, ok := page.Panel(panel)
				if !ok {
					return fmt.Errorf("%w: %s/%s", dashboard.ErrUnknownPanel, page.Key, panel)
				}
				page.Panels = []dashboard.Panel{*p}
			}

			w, closeOut, err := output(cmd.OutOrStdout(), out)
			if err != nil {
				return err
			}
			switch format {
			case "csv":
				err = helpers.WriteResultCSV(w, page.Panels[0].Result)
			case "json", "pretty":
				err = writeJSON(w, page, format)
			default:
				printPage(w, page)
			}
			if cerr := closeOut(); err == nil {
				err = cerr
			}
			return err
		},
	}
	addRangeFlags(cmd, &start, &end)
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, json, pretty, csv")
	cmd.Flags().StringVarP(&panel, "panel", "p", "", "only this panel")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write output to file instead of stdout")
	return cmd
}

func printPage(w io.Writer, page *dashboard.Page) {
	heading.Fprintf(w, "\n=== %s ===\n", page.Title)
	faint.Fprintf(w, "%s orders, %s to %s\n", engine.FormatInt(page.Records), page.Start, page.End)
	for _, p := range page.Panels {
		subheading.Fprintf(w, "\n%s\n", p.Title)
		helpers.WriteResultTable(w, p.Result)
	}
}

// ============================================================================
// RFM
// ============================================================================

func newRFMCmd(opts *rootOptions) *cobra.Command {
	var (
		start, end, format, out, segment, reference string
		limit                                       int
		distinct                                    bool
	)
	cmd := &cobra.Command{
		Use:   "rfm",
		Short: "Compute the RFM customer report",
		Long: `Compute recency, frequency and monetary value per customer,
score them into quintiles and assign segments.

Formats:
  table     Segment summary and customer table (default)
  csv       Customer rows as CSV
  xlsx      Excel workbook with RFM and Segments sheets (requires --out)
  json      Full JSON output
  pretty    Pretty-printed JSON`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "xlsx" && out == "" {
				return errors.New("xlsx output needs --out")
			}
			pp, err := parseRange(start, end)
			if err != nil {
				return err
			}
			params := dashboard.RFMParams{PageParams: pp, Segment: segment, Limit: limit}
			if reference != "" {
				ref, err := dashboard.ParseDate(reference)
				if err != nil {
					return fmt.Errorf("--reference: %w", err)
				}
				params.Reference = ref.Add(24*time.Hour - time.Second)
			}
			if cmd.Flags().Changed("distinct") {
				params.DistinctOrders = &distinct
			}

			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if format == "table" && params.Limit == 0 {
				params.Limit = a.cfg.Dashboard.RFMRows
			}
			res, err := a.svc.RFM(cmd.Context(), params)
			if err != nil {
				return err
			}

			w, closeOut, err := output(cmd.OutOrStdout(), out)
			if err != nil {
				return err
			}
			switch format {
			case "csv":
				err = helpers.WriteRFMCSV(w, res.Customers)
			case "xlsx":
				err = helpers.WriteRFMXLSX(w, res.Report, res.Customers)
			case "json", "pretty":
				err = writeJSON(w, res, format)
			default:
				heading.Fprintf(w, "\n=== RFM analysis ===\n")
				faint.Fprintf(w, "reference %s, %s customers\n",
					res.Reference.Format(orders.DateLayout), engine.FormatInt(res.Total))
				subheading.Fprintf(w, "\nSegments\n")
				helpers.WriteSegmentTable(w, res.Summary)
				subheading.Fprintf(w, "\nCustomers (%d shown)\n", len(res.Customers))
				helpers.WriteRFMTable(w, res.Customers)
			}
			if cerr := closeOut(); err == nil {
				err = cerr
			}
			if err == nil && out != "" {
				success.Fprintf(cmd.ErrOrStderr(), "RFM report written to %s\n", out)
			}
			return err
		},
	}
	addRangeFlags(cmd, &start, &end)
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, csv, xlsx, json, pretty")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write output to file instead of stdout")
	cmd.Flags().StringVarP(&segment, "segment", "s", "", "only customers in this segment")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum customers to list (0 = all; table defaults to dashboard.rfm_rows)")
	cmd.Flags().StringVar(&reference, "reference", "", "reference date YYYY-MM-DD (overrides rfm.reference_date)")
	cmd.Flags().BoolVar(&distinct, "distinct", false, "count distinct orders instead of order rows (overrides rfm.distinct_orders)")
	return cmd
}

// ============================================================================
// RENDER
// ============================================================================

func newRenderCmd(opts *rootOptions) *cobra.Command {
	var (
		start, end, dir string
		width, height   int
	)
	cmd := &cobra.Command{
		Use:   "render <page>",
		Short: "Render every chart panel of a page to PNG files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseRange(start, end)
			if err != nil {
				return err
			}
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			page, err := a.svc.Page(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			if width <= 0 {
				width = a.cfg.Render.Width
			}
			if height <= 0 {
				height = a.cfg.Render.Height
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", dir, err)
			}

			written, err := renderPage(cmd, a.log, render.New(width, height), page, dir)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, path := range written {
				success.Fprintf(w, "wrote %s\n", path)
			}
			return nil
		},
	}
	addRangeFlags(cmd, &start, &end)
	cmd.Flags().StringVar(&dir, "dir", ".", "output directory")
	cmd.Flags().IntVar(&width, "width", 0, "image width in pixels (overrides render.width)")
	cmd.Flags().IntVar(&height, "height", 0, "image height in pixels (overrides render.height)")
	return cmd
}

// renderPage renders the chart panels concurrently and returns the sorted
// paths written. Empty charts are skipped.
func renderPage(cmd *cobra.Command, logger *zap.Logger, r *render.Renderer, page *dashboard.Page, dir string) ([]string, error) {
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(runtime.NumCPU())

	var (
		mu      sync.Mutex
		written []string
	)
	for _, p := range page.Panels {
		if p.Result == nil || p.Result.ChartConfig == nil {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, page.Key+"-"+p.Key+".png")
			err := renderFile(r, p.Result.ChartConfig, path)
			if errors.Is(err, render.ErrEmptyChart) {
				logger.Warn("skipping empty chart", zap.String("panel", p.Key))
				return nil
			}
			if err != nil {
				return fmt.Errorf("panel %s: %w", p.Key, err)
			}
			mu.Lock()
			written = append(written, path)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(written)
	return written, nil
}

func renderFile(r *render.Renderer, cfg *engine.ChartConfig, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.Render(cfg, f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// ============================================================================
// SCHEMA
// ============================================================================

func newSchemaCmd(opts *rootOptions) *cobra.Command {
	var (
		format      string
		sample      int
		recoverCols []string
	)
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Discover and print the columns of the orders CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			sch, err := discoverFile(cfg.Data.Path, schema.DiscoverOptions{SampleSize: sample, RecoverColumns: recoverCols})
			if err != nil {
				return err
			}
			logger.Info("schema discovered",
				zap.Int("dimensions", len(sch.Dimensions)),
				zap.Int("measures", len(sch.Measures)),
				zap.Int("skipped", len(sch.SkippedColumns)))

			w := cmd.OutOrStdout()
			if format != "table" {
				return writeJSON(w, sch, format)
			}
			heading.Fprintf(w, "\n=== %s (%s rows sampled) ===\n", cfg.Data.Path, engine.FormatInt(sch.Rows))
			if !sch.Loadable() {
				subheading.Fprintf(w, "missing required columns: %v\n", sch.MissingColumns)
			}
			helpers.WriteSchemaTable(w, sch)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, json, pretty")
	cmd.Flags().IntVar(&sample, "sample", schema.DefaultSampleSize, "rows to inspect")
	cmd.Flags().StringSliceVar(&recoverCols, "recover", nil, "force-include auto-skipped columns")
	return cmd
}

func discoverFile(path string, opts schema.DiscoverOptions) (*schema.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return schema.Discover(f, opts)
}
