package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/gig-earnings-audit/internal/app"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/entity"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/ingest"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/ocr"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/parser"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/pipeline"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/repository"
)

func newParseCmd(root *rootOptions) *cobra.Command {
	var platform string
	cmd := &cobra.Command{
		Use:   "parse [text-file|-]",
		Short: "Parse statement text and print the structured result; nothing is stored",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readTextArg(cmd, args)
			if err != nil {
				return err
			}
			cfg, logger := root.config()
			p, _ := app.NewParser(cfg, logger)
			out := p.Parse(cmd.Context(), ocr.Normalize(text), parser.Context{Platform: platform})
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&platform, "platform", "", "platform hint")
	return cmd
}

func newOCRCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ocr <file>",
		Short: "Extract text from a statement file and print it with extraction metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := root.config()
			_, client := app.NewParser(cfg, logger)
			tx, err := app.NewExtractor(cfg, client, logger)
			if err != nil {
				return err
			}
			res, err := tx.Extract(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"text":       res.Text,
				"provider":   res.Metadata.Provider,
				"method":     res.Metadata.Method,
				"pages":      res.Metadata.Pages,
				"confidence": res.Metadata.Confidence,
				"warnings":   res.Metadata.Warnings,
				"elapsed_ms": res.Metadata.Duration.Milliseconds(),
			})
		},
	}
}

func newProcessCmd(root *rootOptions) *cobra.Command {
	var (
		opts  pipeline.Options
		audit bool
	)
	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Extract, parse and store one statement file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Processor.ProcessFile(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			out := map[string]any{"record": res.Record, "duplicate": res.Duplicate, "extraction": res.Extraction}
			if audit && !res.Duplicate {
				id := res.Record.ID
				ar, err := a.Processor.Audit(cmd.Context(), pipeline.AuditRequest{RecordID: &id})
				if err != nil {
					return err
				}
				out["audit"] = ar
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&opts.WorkerID, "worker", "", "worker id (required)")
	cmd.Flags().StringVar(&opts.Platform, "platform", "", "platform hint")
	cmd.Flags().BoolVar(&audit, "audit", false, "audit the record after storing it")
	_ = cmd.MarkFlagRequired("worker")
	return cmd
}

func newAuditCmd(root *rootOptions) *cobra.Command {
	var (
		recordID   string
		parsedPath string
		worker     string
		platform   string
		expected   string
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit a stored record or a parsed statement JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := pipeline.AuditRequest{WorkerID: worker}
			req.Context.Platform = platform
			if recordID != "" {
				id, err := uuid.Parse(recordID)
				if err != nil {
					return fmt.Errorf("--record must be a UUID: %w", err)
				}
				req.RecordID = &id
			}
			if parsedPath != "" {
				b, err := os.ReadFile(parsedPath)
				if err != nil {
					return err
				}
				var p entity.ParsedEarnings
				if err := json.Unmarshal(b, &p); err != nil {
					return fmt.Errorf("decode %s: %w", parsedPath, err)
				}
				req.Parsed = &p
			}
			if expected != "" {
				d, err := decimal.NewFromString(expected)
				if err != nil {
					return fmt.Errorf("--expected must be a number: %w", err)
				}
				req.Context.ExpectedTotal = &d
			}

			a, err := root.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			res, err := a.Processor.Audit(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	f := cmd.Flags()
	f.StringVar(&recordID, "record", "", "stored record id")
	f.StringVar(&parsedPath, "parsed", "", "JSON file holding a parsed statement")
	f.StringVar(&worker, "worker", "", "worker id for inline audits")
	f.StringVar(&platform, "platform", "", "platform whose baseline applies")
	f.StringVar(&expected, "expected", "", "total the worker expected to be paid")
	cmd.MarkFlagsOneRequired("record", "parsed")
	cmd.MarkFlagsMutuallyExclusive("record", "parsed")
	return cmd
}

func newBatchCmd(root *rootOptions) *cobra.Command {
	var (
		opts ingest.BatchOptions
		out  string
	)
	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Process every statement under a directory, optionally exporting an XLSX report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			start := time.Now()
			results, stats, err := ingest.NewBatch(a.Processor, a.Logger).Run(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, r := range results {
				switch {
				case r.Err != "":
					fmt.Fprintf(w, "FAIL  %s: %s\n", r.Path, r.Err)
				case r.Deduplicated:
					fmt.Fprintf(w, "DUP   %s -> %s\n", r.Path, r.RecordID)
				case r.Score != nil:
					fmt.Fprintf(w, "OK    %s -> %s (%s, score %.2f)\n", r.Path, r.RecordID, r.Platform, *r.Score)
				default:
					fmt.Fprintf(w, "OK    %s -> %s (%s)\n", r.Path, r.RecordID, r.Platform)
				}
			}
			fmt.Fprintf(w, "scanned=%d matched=%d processed=%d deduplicated=%d failed=%d in %s\n",
				stats.Scanned, stats.Matched, stats.Processed, stats.Deduplicated, stats.Failed, time.Since(start).Round(time.Millisecond))

			if out == "" {
				return nil
			}
			return writeExport(cmd, a, entity.RecordFilter{WorkerID: opts.WorkerID, Limit: 10000}, out)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.WorkerID, "worker", "", "worker id, or the fallback with --worker-dirs")
	f.StringVar(&opts.Platform, "platform", "", "platform hint")
	f.BoolVar(&opts.WorkerDirs, "worker-dirs", false, "take the worker id from the first directory under <dir>")
	f.BoolVar(&opts.SkipHidden, "skip-hidden", true, "skip dot files and directories")
	f.IntVar(&opts.Parallel, "parallel", 4, "files processed concurrently")
	f.BoolVar(&opts.Audit, "audit", false, "audit every newly stored record")
	f.StringVar(&out, "out", "", "write an XLSX report here after the run")
	return cmd
}

func newExportCmd(root *rootOptions) *cobra.Command {
	var (
		filter entity.RecordFilter
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored records and their latest audits to an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return writeExport(cmd, a, filter, out)
		},
	}
	f := cmd.Flags()
	f.StringVar(&filter.WorkerID, "worker", "", "only this worker")
	f.StringVar(&filter.Platform, "platform", "", "only this platform")
	f.IntVar(&filter.Limit, "limit", 10000, "maximum records")
	f.StringVarP(&out, "out", "o", "earnings.xlsx", "output file")
	return cmd
}

func writeExport(cmd *cobra.Command, a *app.App, filter entity.RecordFilter, out string) error {
	b, err := a.Exporter.RecordsXLSX(cmd.Context(), filter)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(out, b, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(b))
	return nil
}

// newSeedCmd stores the demo statement for a few workers so the API and
// export have something to show.
func newSeedCmd(root *rootOptions) *cobra.Command {
	var workers []string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Store and audit the demo statement for sample workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			for _, w := range workers {
				res, err := a.Processor.ProcessText(cmd.Context(), ocr.DemoStatementText, pipeline.Options{WorkerID: w})
				if err != nil {
					return fmt.Errorf("seed %s: %w", w, err)
				}
				if res.Duplicate {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: already seeded (%s)\n", w, res.Record.ID)
					continue
				}
				id := res.Record.ID
				ar, err := a.Processor.Audit(cmd.Context(), pipeline.AuditRequest{RecordID: &id})
				if err != nil {
					return fmt.Errorf("audit %s: %w", w, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: record %s score %.2f\n", w, id, ar.FairnessScore)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&workers, "workers", []string{"demo-rider-1", "demo-rider-2"}, "worker ids to seed")
	return cmd
}

func newDBHealthCmd(root *rootOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "dbhealth",
		Short: "Connect to the database and ping it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := root.config()
			db, err := repository.Open(cmd.Context(), app.DatabaseConfig(cfg.Database), logger)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.HealthCheck(cmd.Context(), timeout); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database ok (%s)\n", db.Driver())
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "ping timeout")
	return cmd
}

func readTextArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	}
	b, err := os.ReadFile(args[0])
	return string(b), err
}
