package app

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Vendor       VendorConfig       `mapstructure:"vendor"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Tools        ToolsConfig        `mapstructure:"tools"`
	Gateway      GatewayConfig      `mapstructure:"gateway"`
	LogLevel     string             `mapstructure:"log_level"`
}

type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	FramesDir string `mapstructure:"frames_dir"`
}

// VendorConfig selects the model backend. Settings are free-form and
// decoded by the provider factory.
type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type OrchestratorConfig struct {
	MaxRounds       int `mapstructure:"max_rounds"`
	ToolConcurrency int `mapstructure:"tool_concurrency"`
}

type ToolsConfig struct {
	TimeoutMS int `mapstructure:"timeout_ms"`
}

func (c ToolsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

type GatewayConfig struct {
	RetryMaxAttempts int `mapstructure:"retry_max_attempts"`
	RetryBackoffMS   int `mapstructure:"retry_backoff_ms"`
	RetryMaxDelayMS  int `mapstructure:"retry_max_delay_ms"`
}

// LoadConfig reads a config file when path is non-empty; defaults alone
// are enough to run against a local Ollama.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.frames_dir", "webcam_frames")
	v.SetDefault("vendor.provider", "ollama")
	v.SetDefault("vendor.settings.model", "gemma3:12b")
	v.SetDefault("vendor.settings.temperature", 0.7)
	v.SetDefault("orchestrator.max_rounds", 8)
	v.SetDefault("orchestrator.tool_concurrency", 4)
	v.SetDefault("tools.timeout_ms", 10000)
	v.SetDefault("gateway.retry_max_attempts", 3)
	v.SetDefault("gateway.retry_backoff_ms", 200)
	v.SetDefault("gateway.retry_max_delay_ms", 2000)
	v.SetDefault("log_level", "info")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
