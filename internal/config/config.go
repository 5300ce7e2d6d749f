// Package config loads tabula settings from defaults, an optional YAML file and
// TABULA_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override. Nested keys use underscores:
// engine.max_steps is TABULA_ENGINE_MAX_STEPS.
const EnvPrefix = "TABULA"

// Config is the complete configuration.
type Config struct {
	LogLevel  string          `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string          `mapstructure:"log_format" yaml:"log_format"`
	Anthropic AnthropicConfig `mapstructure:"anthropic" yaml:"anthropic"`
	Engine    EngineConfig    `mapstructure:"engine" yaml:"engine"`
	Source    SourceConfig    `mapstructure:"source" yaml:"source"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
}

// AnthropicConfig configures the Messages API consultant.
type AnthropicConfig struct {
	APIKey      string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL     string `mapstructure:"base_url" yaml:"base_url"`
	Model       string `mapstructure:"model" yaml:"model"`
	MaxTokens   int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	TimeoutSec  int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
	MaxAttempts int    `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelayMs int    `mapstructure:"base_delay_ms" yaml:"base_delay_ms"`
	MaxDelayMs  int    `mapstructure:"max_delay_ms" yaml:"max_delay_ms"`
}

// EngineConfig configures rendering and the run loop.
type EngineConfig struct {
	PreviewRows   int     `mapstructure:"preview_rows" yaml:"preview_rows"`
	WorkspaceEcho bool    `mapstructure:"workspace_echo" yaml:"workspace_echo"`
	ChartWidth    float64 `mapstructure:"chart_width" yaml:"chart_width"`
	ChartHeight   float64 `mapstructure:"chart_height" yaml:"chart_height"`
	MaxSteps      int     `mapstructure:"max_steps" yaml:"max_steps"`
}

// SourceConfig configures the CSV loader.
type SourceConfig struct {
	Delimiter string `mapstructure:"delimiter" yaml:"delimiter,omitempty"`
	MaxRows   int    `mapstructure:"max_rows" yaml:"max_rows"`
}

// StoreConfig selects the session store.
type StoreConfig struct {
	// Backend is memory, file or redis.
	Backend     string `mapstructure:"backend" yaml:"backend"`
	Dir         string `mapstructure:"dir" yaml:"dir"`
	RedisAddr   string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPrefix string `mapstructure:"redis_prefix" yaml:"redis_prefix"`
	TTLSec      int    `mapstructure:"ttl_sec" yaml:"ttl_sec"`
	LockTTLSec  int    `mapstructure:"lock_ttl_sec" yaml:"lock_ttl_sec"`

	// EncryptionKey is a base64 AES-256 key. Sessions are encrypted at rest when set.
	EncryptionKey string   `mapstructure:"encryption_key" yaml:"encryption_key,omitempty"`
	FallbackKeys  []string `mapstructure:"fallback_keys" yaml:"fallback_keys,omitempty"`
}

// ServerConfig configures the HTTP and MCP transports.
type ServerConfig struct {
	Port    int `mapstructure:"port" yaml:"port"`
	MCPPort int `mapstructure:"mcp_port" yaml:"mcp_port"`
}

// Timeout returns the API timeout.
func (a AnthropicConfig) Timeout() time.Duration { return time.Duration(a.TimeoutSec) * time.Second }

// TTL returns the session expiry; zero means sessions never expire.
func (s StoreConfig) TTL() time.Duration { return time.Duration(s.TTLSec) * time.Second }

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "text")

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.base_url", "https://api.anthropic.com")
	v.SetDefault("anthropic.model", "claude-3-5-sonnet-20240620")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.timeout_sec", 120)
	v.SetDefault("anthropic.max_attempts", 3)
	v.SetDefault("anthropic.base_delay_ms", 500)
	v.SetDefault("anthropic.max_delay_ms", 8000)

	v.SetDefault("engine.preview_rows", 5)
	v.SetDefault("engine.workspace_echo", false)
	v.SetDefault("engine.chart_width", 6.0)
	v.SetDefault("engine.chart_height", 4.0)
	v.SetDefault("engine.max_steps", 25)

	v.SetDefault("source.delimiter", "")
	v.SetDefault("source.max_rows", 0)

	v.SetDefault("store.backend", "file")
	v.SetDefault("store.dir", ".tabula/sessions")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_prefix", "tabula:session:")
	v.SetDefault("store.ttl_sec", 0)
	v.SetDefault("store.lock_ttl_sec", 30)
	v.SetDefault("store.encryption_key", "")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mcp_port", 8081)
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. An explicit cfgFile must exist; otherwise
// ./tabula.yaml and ~/.tabula/config.yaml are tried.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("anthropic.api_key", EnvPrefix+"_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind api key: %w", err)
	}
	setDefaults(v)

	if cfgFile == "" {
		cfgFile = discover()
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, c.Validate()
}

// discover returns the first existing default config file, or "".
func discover() string {
	candidates := []string{"tabula.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".tabula", "config.yaml"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("unknown store backend %q (want memory, file or redis)", c.Store.Backend)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat)
	}
	if c.Engine.MaxSteps < 0 {
		return fmt.Errorf("engine.max_steps must not be negative")
	}
	return nil
}

// Save writes c to path as YAML, creating the directory if needed. The API key and
// the store keys are never written.
func Save(c *Config, path string) error {
	out := *c
	out.Anthropic.APIKey = ""
	out.Store.EncryptionKey = ""
	out.Store.FallbackKeys = nil
	b, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
