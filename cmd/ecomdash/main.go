package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spektr-org/ecomdash/config"
	"github.com/spektr-org/ecomdash/dashboard"
	"github.com/spektr-org/ecomdash/logging"
	"github.com/spektr-org/ecomdash/orders"
)

// ============================================================================
// ECOMDASH CLI: e-commerce analytics from the cleaned orders export
// ============================================================================

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	dataPath   string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "ecomdash",
		Short: "E-commerce analytics dashboard with RFM customer segmentation",
		Long: `ecomdash loads a cleaned orders CSV and serves analysis pages
(purchase patterns, delivery, categories, payments, RFM) over HTTP or
prints them in the terminal.

Examples:
  ecomdash serve --data cleaned_main_data.csv
  ecomdash page categories --format table
  ecomdash rfm --segment Champions --limit 20
  ecomdash rfm --format xlsx --out rfm.xlsx
  ecomdash render purchase-patterns --dir charts/`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	flags.StringVarP(&opts.dataPath, "data", "d", "", "path to the cleaned orders CSV (overrides data.path)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides log.level)")

	root.AddCommand(
		newServeCmd(opts),
		newPagesCmd(opts),
		newPageCmd(opts),
		newRFMCmd(opts),
		newRenderCmd(opts),
		newSchemaCmd(opts),
	)
	return root
}

// ============================================================================
// BOOTSTRAP
// ============================================================================

// app is everything a command needs after config and data are loaded.
type app struct {
	cfg *config.Config
	log *zap.Logger
	ds  *orders.Dataset
	svc *dashboard.Service
}

// setup loads config and builds the logger without touching the dataset.
func (o *rootOptions) setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.dataPath != "" {
		cfg.Data.Path = o.dataPath
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// open loads the dataset and wires the dashboard service.
func (o *rootOptions) open(ctx context.Context) (*app, error) {
	cfg, logger, err := o.setup()
	if err != nil {
		return nil, err
	}

	started := time.Now()
	ds, err := orders.LoadFile(ctx, cfg.Data.Path, orders.LoadOptions{Logger: logger})
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	logger.Info("dataset ready",
		zap.String("path", cfg.Data.Path),
		zap.Int("rows", ds.Len()),
		zap.Duration("duration", time.Since(started)))

	return &app{
		cfg: cfg,
		log: logger,
		ds:  ds,
		svc: dashboard.NewService(ds, cfg.ServiceConfig(), logger),
	}, nil
}

func (a *app) close() {
	_ = a.log.Sync()
}
