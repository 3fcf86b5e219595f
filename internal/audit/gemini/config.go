// Package gemini implements the audit.Auditor interface against a
// Gemini OpenAI-compatible chat/completions endpoint.
package gemini

import (
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Config for the Gemini client.
type Config struct {
	APIKey      string        // if empty, falls back to env AUDIT_API_KEY
	BaseURL     string        // default https://generativelanguage.googleapis.com/v1beta/openai
	Model       string        // e.g., "gemini-3-pro-preview"
	Temperature float32       // 0..2
	Timeout     time.Duration // http client timeout
	Broker      string        // broker name injected into the audit prompt
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("AUDIT_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-3-pro-preview"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}
