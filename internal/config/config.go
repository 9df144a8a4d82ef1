// Package config is the single source of truth for the resolver's gate
// thresholds and vendor-cache constants. It loads layered config
// (defaults/file/env) through viper and enforces the cross-field
// invariants at load time.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the full set of gate thresholds and vendor-subsystem
// constants.
type Config struct {
	// Gate thresholds.
	AutoAccept      float64 `mapstructure:"auto_accept" yaml:"auto_accept"`
	Review          float64 `mapstructure:"review" yaml:"review"`
	DisagreementCap float64 `mapstructure:"disagreement_cap" yaml:"disagreement_cap"`
	MarginThreshold float64 `mapstructure:"margin_threshold" yaml:"margin_threshold"`
	OODThreshold    float64 `mapstructure:"ood_threshold" yaml:"ood_threshold"`

	// Vendor subsystem.
	EnableVendorCache    bool    `mapstructure:"enable_vendor_cache" yaml:"enable_vendor_cache"`
	VendorBoost          float64 `mapstructure:"vendor_boost" yaml:"vendor_boost"`
	DecayWindowDays      int     `mapstructure:"decay_window_days" yaml:"decay_window_days"`
	DecayLambda          float64 `mapstructure:"decay_lambda" yaml:"decay_lambda"`
	DecayFloor           float64 `mapstructure:"decay_floor" yaml:"decay_floor"`
	MinConfirmations     int     `mapstructure:"min_confirmations" yaml:"min_confirmations"`
	MaxCollisionCount    int     `mapstructure:"max_collision_count" yaml:"max_collision_count"`
	UnstableCooldownDays int     `mapstructure:"unstable_cooldown_days" yaml:"unstable_cooldown_days"`

	// Learning loop.
	DualGateMargin          float64 `mapstructure:"dual_gate_margin" yaml:"dual_gate_margin"`
	MaxGlobalSynonymsPerDay int     `mapstructure:"max_global_synonyms_per_day" yaml:"max_global_synonyms_per_day"`

	// Fuzzy matcher.
	FuzzyTopK            int     `mapstructure:"fuzzy_top_k" yaml:"fuzzy_top_k"`
	FuzzyThreshold       float64 `mapstructure:"fuzzy_threshold" yaml:"fuzzy_threshold"`
	FuzzyDisagreementGap float64 `mapstructure:"fuzzy_disagreement_gap" yaml:"fuzzy_disagreement_gap"`

	// Semantic matcher.
	SemanticTopK       int `mapstructure:"semantic_top_k" yaml:"semantic_top_k"`
	SemanticFlushEvery int `mapstructure:"semantic_flush_every" yaml:"semantic_flush_every"`

	// Unknown-term clustering.
	ClusterThreshold float64 `mapstructure:"cluster_threshold" yaml:"cluster_threshold"`
}

// Default returns the shipped default configuration. Every threshold here
// must satisfy Validate; this is asserted by a test so the defaults never
// silently drift out of invariant.
func Default() Config {
	return Config{
		AutoAccept:      0.90,
		Review:          0.70,
		DisagreementCap: 0.84,
		MarginThreshold: 0.05,
		OODThreshold:    0.50,

		EnableVendorCache:    true,
		VendorBoost:          0.02,
		DecayWindowDays:      90,
		DecayLambda:          0.5,
		DecayFloor:           0.60,
		MinConfirmations:     3,
		MaxCollisionCount:    2,
		UnstableCooldownDays: 7,

		DualGateMargin:          0.06,
		MaxGlobalSynonymsPerDay: 20,

		FuzzyTopK:            5,
		FuzzyThreshold:       0.55,
		FuzzyDisagreementGap: 0.05,

		SemanticTopK:       5,
		SemanticFlushEvery: 100,

		ClusterThreshold: 0.85,
	}
}

// Load reads config from the built-in defaults, the given file path (if
// non-empty), and environment variables prefixed RESOLVECTL_, then
// validates the result. A config that violates
// invariants A/B/C fails closed with ConfigInvariantViolation.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("resolvectl")
	v.AutomaticEnv()

	cfg := Default()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var out Config
	if err := v.Unmarshal(&out); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(out); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfigInvariantViolation, err)
	}

	return out, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("auto_accept", cfg.AutoAccept)
	v.SetDefault("review", cfg.Review)
	v.SetDefault("disagreement_cap", cfg.DisagreementCap)
	v.SetDefault("margin_threshold", cfg.MarginThreshold)
	v.SetDefault("ood_threshold", cfg.OODThreshold)
	v.SetDefault("enable_vendor_cache", cfg.EnableVendorCache)
	v.SetDefault("vendor_boost", cfg.VendorBoost)
	v.SetDefault("decay_window_days", cfg.DecayWindowDays)
	v.SetDefault("decay_lambda", cfg.DecayLambda)
	v.SetDefault("decay_floor", cfg.DecayFloor)
	v.SetDefault("min_confirmations", cfg.MinConfirmations)
	v.SetDefault("max_collision_count", cfg.MaxCollisionCount)
	v.SetDefault("unstable_cooldown_days", cfg.UnstableCooldownDays)
	v.SetDefault("dual_gate_margin", cfg.DualGateMargin)
	v.SetDefault("max_global_synonyms_per_day", cfg.MaxGlobalSynonymsPerDay)
	v.SetDefault("fuzzy_top_k", cfg.FuzzyTopK)
	v.SetDefault("fuzzy_threshold", cfg.FuzzyThreshold)
	v.SetDefault("fuzzy_disagreement_gap", cfg.FuzzyDisagreementGap)
	v.SetDefault("semantic_top_k", cfg.SemanticTopK)
	v.SetDefault("semantic_flush_every", cfg.SemanticFlushEvery)
	v.SetDefault("cluster_threshold", cfg.ClusterThreshold)
}

// WriteYAML serializes cfg to the given path.
func WriteYAML(cfg Config, path string) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
