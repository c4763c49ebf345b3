package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/gig-earnings-audit/internal/app"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/common"
)

type rootOptions struct {
	dbDriver string
	dbURL    string
	provider string
	logLevel string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "earnings",
		Short:         "Parse gig-platform earnings statements and audit them for fairness",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.dbDriver, "db-driver", "", "database driver: sqlite or postgres (overrides DB_DRIVER)")
	pf.StringVar(&opts.dbURL, "db-url", "", "database DSN (overrides DB_URL)")
	pf.StringVar(&opts.provider, "ocr-provider", "", "auto, tesseract, vision or demo (overrides OCR_PROVIDER)")
	pf.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	root.AddCommand(
		newParseCmd(opts),
		newOCRCmd(opts),
		newProcessCmd(opts),
		newAuditCmd(opts),
		newBatchCmd(opts),
		newExportCmd(opts),
		newSeedCmd(opts),
		newDBHealthCmd(opts),
	)
	return root
}

// config loads the environment and applies flag overrides.
func (o *rootOptions) config() (*common.Config, *slog.Logger) {
	cfg := common.LoadConfig()
	if o.dbDriver != "" {
		cfg.Database.Driver = o.dbDriver
	}
	if o.dbURL != "" {
		cfg.Database.DSN = o.dbURL
	}
	if o.provider != "" {
		cfg.OCR.Provider = o.provider
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, app.NewLogger(cfg.Log)
}

func (o *rootOptions) open(ctx context.Context) (*app.App, error) {
	cfg, logger := o.config()
	return app.New(ctx, cfg, logger)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
