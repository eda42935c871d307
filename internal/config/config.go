// Package config handles sampler configuration loading and management.
package config

import "fmt"

// Delta mode names accepted in config files and flags.
const (
	DeltaModeAsset        = ""
	DeltaModePreSkinning  = "pre_skinning"
	DeltaModePostSkinning = "post_skinning"
)

// Eviction policy names accepted in config files and flags.
const (
	EvictionFreezeLast = "freeze_last"
	EvictionRoundRobin = "round_robin"
)

// Config holds all sampler settings.
type Config struct {
	Asset   AssetConfig   `yaml:"asset" toml:"asset"`
	Cache   CacheConfig   `yaml:"cache" toml:"cache"`
	Sampler SamplerConfig `yaml:"sampler" toml:"sampler"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// AssetConfig locates the training asset.
type AssetConfig struct {
	Manifest string `yaml:"manifest" toml:"manifest"` // Path to the asset manifest
}

// CacheConfig holds training frame cache settings.
type CacheConfig struct {
	MemoryBudgetMB float64 `yaml:"memory_budget_mb" toml:"memory_budget_mb"`
	DeltaMode      string  `yaml:"delta_mode" toml:"delta_mode"` // empty: use the asset's mode
	Eviction       string  `yaml:"eviction" toml:"eviction"`
}

// MemoryBudgetBytes converts the budget to bytes.
func (c CacheConfig) MemoryBudgetBytes() int64 {
	if c.MemoryBudgetMB <= 0 {
		return 0
	}
	return int64(c.MemoryBudgetMB * 1024 * 1024)
}

// SamplerConfig holds sampler settings.
type SamplerConfig struct {
	DebugVectors bool `yaml:"debug_vectors" toml:"debug_vectors"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level"`
	LogFile string `yaml:"log_file" toml:"log_file"`
	JSON    bool   `yaml:"json" toml:"json"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			MemoryBudgetMB: 512,
			DeltaMode:      DeltaModeAsset,
			Eviction:       EvictionFreezeLast,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Cache.DeltaMode {
	case DeltaModeAsset, DeltaModePreSkinning, DeltaModePostSkinning:
	default:
		return fmt.Errorf("cache.delta_mode: unknown mode %q", c.Cache.DeltaMode)
	}
	switch c.Cache.Eviction {
	case EvictionFreezeLast, EvictionRoundRobin:
	default:
		return fmt.Errorf("cache.eviction: unknown policy %q", c.Cache.Eviction)
	}
	if c.Cache.MemoryBudgetMB < 0 {
		return fmt.Errorf("cache.memory_budget_mb: must not be negative, got %v", c.Cache.MemoryBudgetMB)
	}
	return nil
}
