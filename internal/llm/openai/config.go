package openai

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/gig-earnings-audit/internal/llm"
)

// Config for the OpenAI client.
type Config struct {
	APIKey          string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL         string        // default https://api.openai.com/v1
	Model           string        // refinement model, e.g. "gpt-4o-mini"
	VisionModel     string        // transcription model; defaults to Model
	Temperature     float32       // 0..2
	Timeout         time.Duration // http client timeout
	CacheTTL        time.Duration // 0 -> 30m
	LenientOptional bool
}

// ChatClient is the subset of go-openai we call; tests swap in a fake.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

type Client struct {
	cfg    Config
	chat   ChatClient
	cache  *llm.ResponseCache
	logger *slog.Logger
}

func withDefaults(cfg Config) Config {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return cfg
}

// NewClient builds a go-openai backed client. Lenient sanitizing of model
// output is always on for production use.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg = withDefaults(cfg)
	cfg.LenientOptional = true

	oc := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return NewClientWithChat(cfg, goopenai.NewClientWithConfig(oc), logger)
}

// NewClientWithChat wires an arbitrary ChatClient (tests, proxies).
func NewClientWithChat(cfg Config, chat ChatClient, logger *slog.Logger) *Client {
	cfg = withDefaults(cfg)
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		chat:   chat,
		cache:  llm.NewResponseCache(cfg.CacheTTL),
		logger: logger,
	}
}
