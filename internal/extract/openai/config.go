package openai

import (
	"log/slog"
	"net/http"
	"time"
)

// Config for the OpenAI-compatible client.
type Config struct {
	APIKey          string
	BaseURL         string  // default https://api.openai.com/v1
	Model           string  // e.g., "gpt-4o-mini"
	Temperature     float32 // 0..2
	DefaultCurrency string  // applied when a transaction carries none
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
	now  func() time.Time
}

// NewClient builds a client. httpClient may be nil; the default one has no
// timeout, so callers bound the call through the context.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "CAD"
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: httpClient, log: logger, now: time.Now}
}
