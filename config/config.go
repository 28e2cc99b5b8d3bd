package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/sealdice/cqsocket/adapters"
)

// EnvPrefix 环境变量前缀，例如 CQ_ACCESS_TOKEN、CQ_RECONNECTION_ATTEMPTS
const EnvPrefix = "CQ_"

// JournalConfig 消息日志配置，Path 为空时不启用
type JournalConfig struct {
	Path string        `yaml:"path" env:"PATH"`
	TTL  time.Duration `yaml:"ttl" env:"TTL"`
}

// Config 客户端程序的完整配置
type Config struct {
	Client   adapters.Options `yaml:"client"`
	LogLevel string           `yaml:"log_level" env:"LOG_LEVEL"`
	Journal  JournalConfig    `yaml:"journal" envPrefix:"JOURNAL_"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Client:   adapters.DefaultOptions(),
		LogLevel: "info",
		Journal: JournalConfig{
			TTL: 24 * time.Hour,
		},
	}
}

// Load 读取配置文件（path 为空则只用默认值），再用环境变量覆盖
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config: env overrides: %w", err)
	}
	return cfg, nil
}

// Save 写出配置，用于生成示例文件
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
