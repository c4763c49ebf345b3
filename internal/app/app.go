// Package app wires configuration into the running components shared by the
// daemon and the CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joseph-ayodele/gig-earnings-audit/internal/common"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/export"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/extract"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/fairness"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/llm"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/llm/openai"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/ocr"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/parser"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/pipeline"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/repository"
)

// App holds the wired components. Close releases the database.
type App struct {
	Config    *common.Config
	Logger    *slog.Logger
	DB        *repository.DB
	Store     *repository.Store
	Parser    *parser.Parser
	Engine    *fairness.Engine
	Extractor extract.TextExtractor
	Processor *pipeline.Processor
	Exporter  *export.Service
}

// NewLogger builds the slog logger described by cfg.
func NewLogger(cfg common.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewParser returns the parser, with model refinement when a credential is configured.
func NewParser(cfg *common.Config, logger *slog.Logger) (*parser.Parser, *openai.Client) {
	if !cfg.RefinementEnabled() {
		return parser.New(logger), nil
	}
	client := openai.NewClient(OpenAIConfig(cfg.LLM), logger)
	return parser.New(logger, parser.WithRefiner(client)), client
}

func OpenAIConfig(c common.LLMConfig) openai.Config {
	return openai.Config{
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Model:       c.Model,
		VisionModel: c.VisionModel,
		Temperature: c.Temperature,
		Timeout:     c.Timeout,
		CacheTTL:    c.CacheTTL,
	}
}

// NewExtractor builds the text extractor for cfg.OCR.Provider. The model
// client, when non-nil, backs the vision provider.
func NewExtractor(cfg *common.Config, client *openai.Client, logger *slog.Logger) (extract.TextExtractor, error) {
	ocrx := ocr.NewExtractor(ocr.Config{
		TesseractLang:       cfg.OCR.TesseractLang,
		TessdataDir:         cfg.OCR.TessdataDir,
		EnableTSVConfidence: cfg.OCR.EnableTSVConfidence,
		PSM:                 4,
	}, logger)
	var tr llm.Transcriber
	if client != nil {
		tr = client
	}
	return extract.NewFromConfig(cfg.OCR.Provider, ocrx, tr, logger)
}

// NewEngine loads baselines from cfg.Audit.BaselinesPath, or uses the built-ins.
func NewEngine(cfg *common.Config, logger *slog.Logger) (*fairness.Engine, error) {
	bl := fairness.DefaultBaselines()
	if p := cfg.Audit.BaselinesPath; p != "" {
		loaded, err := fairness.LoadBaselines(p)
		if err != nil {
			return nil, err
		}
		bl = loaded
		logger.Info("app.baselines.loaded", "path", p, "platforms", len(bl.Platforms))
	}
	return fairness.NewEngine(bl, logger), nil
}

// DatabaseConfig maps the environment settings onto repository.Config.
func DatabaseConfig(c common.DatabaseConfig) repository.Config {
	return repository.Config{
		Driver:           c.Driver,
		DSN:              c.DSN,
		MaxConns:         c.MaxConns,
		MinConns:         c.MinConns,
		MaxConnLifetime:  c.MaxConnLifetime,
		MaxConnIdleTime:  c.MaxConnIdleTime,
		DialTimeout:      c.DialTimeout,
		StatementTimeout: c.StatementTimeout,
	}
}

// New opens and migrates the database and builds every component.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := repository.Open(ctx, DatabaseConfig(cfg.Database), logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	p, client := NewParser(cfg, logger)
	tx, err := NewExtractor(cfg, client, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	engine, err := NewEngine(cfg, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	store := repository.NewStore(db, logger)
	a := &App{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Store:     store,
		Parser:    p,
		Engine:    engine,
		Extractor: tx,
		Processor: pipeline.NewProcessor(logger, store, tx, p, engine),
		Exporter:  export.NewService(store.Records, store.Audits, logger),
	}
	logger.Info("app.ready",
		"db_driver", db.Driver(),
		"ocr_provider", cfg.OCR.Provider,
		"refinement", p.RefinementEnabled(),
	)
	return a, nil
}

func (a *App) Close() {
	a.DB.Close()
}
