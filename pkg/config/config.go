package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rahul/casepilot/internal/artifacts"
)

type Config struct {
	App          AppConfig                 `json:"app"`
	Gateways     map[string]GatewayConfig  `json:"gateways"`
	Providers    map[string]ProviderConfig `json:"providers"`
	Browser      BrowserConfig             `json:"browser"`
	Database     DatabaseConfig            `json:"database"`
	Storage      StorageConfig             `json:"storage"`
	Runner       RunnerConfig              `json:"runner"`
	Policy       PolicyConfig              `json:"policy"`
	LLMRateLimit RateLimitConfig           `json:"llm_rate_limit"`
}

type AppConfig struct {
	Name       string `json:"name"`
	PromptsDir string `json:"prompts_dir"`
	LLMLog     string `json:"llm_log"`
}

type GatewayConfig struct {
	Token        string  `json:"token"`
	Enabled      bool    `json:"enabled"`
	AllowedChats []int64 `json:"allowed_chats,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url,omitempty"`
	Enabled bool   `json:"enabled"`
}

type BrowserConfig struct {
	Headless             bool `json:"headless"`
	ActionTimeoutSeconds int  `json:"action_timeout_seconds"`
	PollIntervalMS       int  `json:"poll_interval_ms"`
}

func (b BrowserConfig) ActionTimeout() time.Duration {
	return time.Duration(b.ActionTimeoutSeconds) * time.Second
}

func (b BrowserConfig) PollInterval() time.Duration {
	return time.Duration(b.PollIntervalMS) * time.Millisecond
}

type DatabaseConfig struct {
	Driver string `json:"driver"` // sqlite or pgx
	DSN    string `json:"dsn"`
}

type StorageConfig struct {
	Type  string                `json:"type"` // local or minio
	Dir   string                `json:"dir"`
	Minio artifacts.MinioConfig `json:"minio"`
}

type RunnerConfig struct {
	ScheduleIntervalSeconds int `json:"schedule_interval_seconds"`
}

type PolicyConfig struct {
	DenyActions  []string `json:"deny_actions"`
	DenyPatterns []string `json:"deny_patterns"`
	AllowHosts   []string `json:"allow_hosts"`
}

type RateLimitConfig struct {
	RequestsPerMinute float64 `json:"requests_per_minute"`
	Burst             int     `json:"burst"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:       "casepilot",
			PromptsDir: "./prompts",
			LLMLog:     "logs/llm.jsonl",
		},
		Gateways:  map[string]GatewayConfig{},
		Providers: map[string]ProviderConfig{},
		Browser: BrowserConfig{
			Headless:             true,
			ActionTimeoutSeconds: 60,
			PollIntervalMS:       1000,
		},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "data/casepilot.db"},
		Storage:  StorageConfig{Type: "local", Dir: "screenshots"},
		Runner:   RunnerConfig{ScheduleIntervalSeconds: 30},
		Policy: PolicyConfig{
			DenyPatterns: []string{`file://`, `chrome://`},
		},
		LLMRateLimit: RateLimitConfig{RequestsPerMinute: 60, Burst: 5},
	}
}

// Load reads a JSON config file over the defaults and applies environment
// fallbacks. An empty path loads the defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		decoder := json.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv fills secrets left empty in the file from the environment.
func (c *Config) applyEnv() {
	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}
	if c.Gateways == nil {
		c.Gateways = map[string]GatewayConfig{}
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		p, ok := c.Providers["openai"]
		if !ok {
			p = ProviderConfig{Model: "gpt-4o-mini", Enabled: true}
		}
		if p.APIKey == "" {
			p.APIKey = key
		}
		c.Providers["openai"] = p
	}
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		if p, ok := c.Providers["openrouter"]; ok && p.APIKey == "" {
			p.APIKey = key
			c.Providers["openrouter"] = p
		}
	}
	for name, env := range map[string]string{"telegram": "TELEGRAM_BOT_TOKEN", "discord": "DISCORD_BOT_TOKEN"} {
		if g, ok := c.Gateways[name]; ok && g.Token == "" {
			g.Token = os.Getenv(env)
			c.Gateways[name] = g
		}
	}
	if dsn := os.Getenv("CASEPILOT_DATABASE_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if driver := os.Getenv("CASEPILOT_DATABASE_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if secret := os.Getenv("CASEPILOT_MINIO_SECRET_KEY"); secret != "" && c.Storage.Minio.SecretKey == "" {
		c.Storage.Minio.SecretKey = secret
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "pgx", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or pgx, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	switch c.Storage.Type {
	case "local":
	case "minio":
		if err := c.Storage.Minio.Validate(); err != nil {
			return fmt.Errorf("storage.minio: %w", err)
		}
	default:
		return fmt.Errorf("storage.type must be local or minio, got %q", c.Storage.Type)
	}
	if c.Browser.ActionTimeoutSeconds <= 0 {
		return errors.New("browser.action_timeout_seconds must be positive")
	}
	if c.LLMRateLimit.RequestsPerMinute < 0 || c.LLMRateLimit.Burst < 0 {
		return errors.New("llm_rate_limit values must not be negative")
	}
	return nil
}

// GetDefaultProvider returns the first enabled provider by name.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if p := c.Providers[name]; p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetTelegramConfig returns telegram config if enabled
func (c *Config) GetTelegramConfig() (GatewayConfig, bool) {
	return c.gateway("telegram")
}

// GetDiscordConfig returns discord config if enabled
func (c *Config) GetDiscordConfig() (GatewayConfig, bool) {
	return c.gateway("discord")
}

func (c *Config) gateway(name string) (GatewayConfig, bool) {
	g, ok := c.Gateways[name]
	if ok && g.Enabled && g.Token != "" {
		return g, true
	}
	return GatewayConfig{}, false
}
