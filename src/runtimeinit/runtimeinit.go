package runtimeinit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/SampleBias/capture-coder/src/clipboard"
	"github.com/SampleBias/capture-coder/src/config"
	"github.com/SampleBias/capture-coder/src/llm"
	"github.com/SampleBias/capture-coder/src/logutil"
	"github.com/SampleBias/capture-coder/src/notification"
	"github.com/SampleBias/capture-coder/src/screenshot"
)

// How long the startup credential check may take before it fails visibly.
const pingTimeout = 15 * time.Second

type Options struct {
	LoadOptions            config.LoadOptions
	SetupLogging           func(bool)
	ShowBlockingModelError bool
}

// Bootstrap loads configuration, wires logging, and verifies the model
// endpoint actually answers before any capture machinery starts. A missing
// key or model aborts startup here with a clear diagnostic, never as a
// deferred mid-session failure.
func Bootstrap(opts Options) (*config.Config, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.EnableFileLogging)
	}
	log.Printf("Config: model=%s base=%s key=%s rounds=%d timeout=%ds",
		cfg.Model, cfg.BaseURL, logutil.RedactKey(cfg.APIKey), cfg.RefineRounds, cfg.RequestTimeoutSec)

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required. Checked key file %s and OPENROUTER_API_KEY env var", cfg.APIKeyPath)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("MODEL is required. Please set it in your .env file")
	}

	llm.Init(&llm.Config{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
	})
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := llm.Ping(ctx); err != nil {
		if opts.ShowBlockingModelError {
			notification.ShowBlockingError("Model endpoint unavailable",
				fmt.Sprintf("Startup check failed: %v\n\nPlease verify your API key and network connectivity.", err))
		}
		return nil, fmt.Errorf("startup check failed: %w", err)
	}
	log.Printf("Model ping succeeded")

	screenshot.Init()
	if err := clipboard.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
	}

	return cfg, nil
}
