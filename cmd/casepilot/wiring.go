package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rahul/casepilot/internal/agent"
	"github.com/rahul/casepilot/internal/artifacts"
	"github.com/rahul/casepilot/internal/driver"
	"github.com/rahul/casepilot/internal/governance"
	"github.com/rahul/casepilot/internal/observability"
	"github.com/rahul/casepilot/internal/runner"
	"github.com/rahul/casepilot/internal/store"
	"github.com/rahul/casepilot/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func newLogger(cfg *config.Config, out io.Writer) *observability.Logger {
	if out == nil {
		out = io.Discard
		if verbose {
			out = os.Stderr
		}
	}
	return observability.NewLoggerTo(out, cfg.App.LLMLog)
}

func newModel(cfg *config.Config) (llms.Model, string, error) {
	pName, pCfg := cfg.GetDefaultProvider()
	if pName == "" {
		return nil, "", fmt.Errorf("no enabled provider found in config (set OPENAI_API_KEY or add one under providers)")
	}

	switch pName {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		if pCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, "", err
		}
		return llm, pCfg.Model, nil
	default:
		return nil, "", fmt.Errorf("provider %s is not supported", pName)
	}
}

func newLimiter(cfg *config.Config) *rate.Limiter {
	rl := cfg.LLMRateLimit
	if rl.RequestsPerMinute <= 0 {
		return nil
	}
	burst := rl.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Duration(float64(time.Minute)/rl.RequestsPerMinute)), burst)
}

func newSink(cfg *config.Config) (artifacts.Sink, error) {
	if cfg.Storage.Type == "minio" {
		return artifacts.NewMinioSink(cfg.Storage.Minio)
	}
	return artifacts.NewLocalSink(cfg.Storage.Dir), nil
}

func newPolicy(cfg *config.Config) (*governance.DefaultPolicyEngine, error) {
	gov := governance.NewDefaultPolicyEngine()
	for _, action := range cfg.Policy.DenyActions {
		gov.DenyAction(action)
	}
	for _, pattern := range cfg.Policy.DenyPatterns {
		if err := gov.DenyArguments(pattern); err != nil {
			return nil, fmt.Errorf("policy pattern %q: %w", pattern, err)
		}
	}
	gov.AllowHosts(cfg.Policy.AllowHosts...)
	return gov, nil
}

// newRunner builds the full browser stack. The caller closes the driver.
func newRunner(cfg *config.Config, logger *observability.Logger) (*runner.Runner, *driver.ChromeDriver, error) {
	model, modelName, err := newModel(cfg)
	if err != nil {
		return nil, nil, err
	}
	sink, err := newSink(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("screenshot storage: %w", err)
	}
	gov, err := newPolicy(cfg)
	if err != nil {
		return nil, nil, err
	}

	brain := agent.NewBrain(model, modelName, agent.NewPromptManager(cfg.App.PromptsDir), logger, newLimiter(cfg))
	drv := driver.NewChromeDriver(brain, sink, driver.ChromeOptions{
		Headless:      cfg.Browser.Headless,
		ActionTimeout: cfg.Browser.ActionTimeout(),
		PollInterval:  cfg.Browser.PollInterval(),
	})

	r := runner.New(drv)
	r.Policy = gov
	r.Logger = logger
	return r, drv, nil
}
