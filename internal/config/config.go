package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// configPtr holds the current config for thread-safe access.
var configPtr atomic.Pointer[Config]

// loadedConfigFile stores the path of the config file used by the last successful Load.
var loadedConfigFile atomic.Value

// Get returns the current Config. It is safe for concurrent use.
// If no config has been loaded yet, it returns the default config.
func Get() *Config {
	if c := configPtr.Load(); c != nil {
		return c
	}
	d := DefaultConfig()
	configPtr.Store(d)
	return d
}

// set stores a new Config atomically.
func set(cfg *Config) {
	configPtr.Store(cfg)
}

// Config is the top-level configuration for the Engram core.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    toml:"server"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"  toml:"pipeline"`
	Safety    SafetyConfig    `mapstructure:"safety"    toml:"safety"`
	Dedup     DedupConfig     `mapstructure:"dedup"     toml:"dedup"`
	Embedding EmbeddingConfig `mapstructure:"embedding" toml:"embedding"`
	Search    SearchConfig    `mapstructure:"search"    toml:"search"`
	Storage   StorageConfig   `mapstructure:"storage"   toml:"storage"`
	Retention RetentionConfig `mapstructure:"retention" toml:"retention"`
	Events    EventsConfig    `mapstructure:"events"    toml:"events"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   toml:"metrics"`
}

// ServerConfig holds process-level settings: where the daemon keeps its
// state and how verbosely it logs.
type ServerConfig struct {
	DataDir  string `mapstructure:"data_dir"  toml:"data_dir"`
	LogLevel string `mapstructure:"log_level" toml:"log_level"`
}

// PipelineConfig controls the intake queue and the embedding batcher
// (spec §4.1, §4.4): how many drafts may wait per source kind, and how the
// embedder groups them into batches.
type PipelineConfig struct {
	QueueCapacity  int `mapstructure:"queue_capacity"   toml:"queue_capacity"`
	BatchMax       int `mapstructure:"batch_max"        toml:"batch_max"`
	BatchTimeoutMs int `mapstructure:"batch_timeout_ms" toml:"batch_timeout_ms"`
}

// SafetyConfig controls the PII redaction gate (§4.2).
type SafetyConfig struct {
	RedactPII    bool     `mapstructure:"redact_pii"    toml:"redact_pii"`
	LuhnRequired bool     `mapstructure:"luhn_required" toml:"luhn_required"`
	KindsEnabled []string `mapstructure:"kinds_enabled" toml:"kinds_enabled"`
}

// DedupConfig controls the dedup filter's exact-match window and
// near-duplicate ring buffer size (§4.3).
type DedupConfig struct {
	ExactWindowSecs int `mapstructure:"exact_window_secs" toml:"exact_window_secs"`
	NearRingSize    int `mapstructure:"near_ring_size"     toml:"near_ring_size"`
}

// EmbeddingConfig binds the embedder's model identity and batch sizing
// (§4.4).
type EmbeddingConfig struct {
	Dim      int    `mapstructure:"dim"       toml:"dim"`
	ModelID  string `mapstructure:"model_id"  toml:"model_id"`
	BatchMax int    `mapstructure:"batch_max" toml:"batch_max"`
}

// SearchConfig controls the near-dup similarity threshold and the hybrid
// ranker's blend weight and BM25 normalizer (§4.3, §4.8).
type SearchConfig struct {
	DedupThreshold   float64 `mapstructure:"dedup_threshold"    toml:"dedup_threshold"`
	SemanticWeight   float64 `mapstructure:"semantic_weight"    toml:"semantic_weight"`
	FTSNormalizerTau float64 `mapstructure:"fts_normalizer_tau" toml:"fts_normalizer_tau"`
}

// StorageConfig sets the day-thresholds that bound the hot/warm/cold tiers
// consumed by the retention sweeper (§4.9).
type StorageConfig struct {
	HotDays       int `mapstructure:"hot_days"       toml:"hot_days"`
	WarmDays      int `mapstructure:"warm_days"      toml:"warm_days"`
	RetentionDays int `mapstructure:"retention_days" toml:"retention_days"`
}

// RetentionConfig controls the sweeper's run cadence (§4.9).
type RetentionConfig struct {
	SweepIntervalSecs int  `mapstructure:"sweep_interval_secs" toml:"sweep_interval_secs"`
	DryRun            bool `mapstructure:"dry_run"             toml:"dry_run"`
}

// EventsConfig controls the event bus's per-subscriber buffer depth
// (§4.10).
type EventsConfig struct {
	SubscriberBuffer int `mapstructure:"subscriber_buffer" toml:"subscriber_buffer"`
}

// MetricsConfig controls the Prometheus exposition surface.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" toml:"enabled"`
	Port    int  `mapstructure:"port"    toml:"port"`
}

// Load reads configuration from disk with the following precedence:
//  1. Environment variables (ENGRAM_ prefix, _ as separator)
//  2. The file at explicitPath if non-empty
//  3. ~/.engram/config.toml
//  4. ./config.toml
//  5. Built-in defaults
//
// The loaded config is validated and stored in the global atomic pointer.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	// Set all defaults from the default config so viper knows every key.
	setViperDefaults(v)

	// Environment variable overlay: ENGRAM_SERVER_LOG_LEVEL etc.
	v.SetEnvPrefix("ENGRAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Determine which file(s) to read.
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".engram"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		// If no config file exists we still proceed with defaults + env.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Store the resolved config file path.
	if cf := v.ConfigFileUsed(); cf != "" {
		loadedConfigFile.Store(cf)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Expand ~ in data_dir.
	cfg.Server.DataDir = expandHome(cfg.Server.DataDir)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	set(cfg)
	return cfg, nil
}

// InitConfig writes the default configuration file to ~/.engram/config.toml.
// If the file already exists it is not overwritten.
func InitConfig() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("determining home directory: %w", err)
	}

	dir := filepath.Join(homeDir, ".engram")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dir, DefaultConfigFilename)
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists: %s\n", path)
		return nil
	}

	cfg := DefaultConfig()
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Config written to %s\n", path)
	return nil
}

// ExportConfig writes the current config to the given path in TOML format.
func ExportConfig(path string) error {
	cfg := Get()
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ImportConfig reads a TOML config file and replaces the current config.
// The imported config is also persisted to the active config file so changes
// survive restarts.
func ImportConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return err
	}
	set(cfg)

	// Persist to the active config file so changes survive restart.
	if dest := ConfigFilePath(); dest != "" {
		out, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshalling config for persistence: %w", err)
		}
		if err := os.WriteFile(dest, out, 0o600); err != nil {
			return fmt.Errorf("persisting imported config: %w", err)
		}
	}

	return nil
}

// ConfigFilePath returns the path of the config file that was loaded, or
// empty if no file was found.
func ConfigFilePath() string {
	if v, ok := loadedConfigFile.Load().(string); ok {
		return v
	}
	return ""
}

// setViperDefaults registers every known key with viper so that env var binding
// works for all fields even when no config file is present.
func setViperDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("server.data_dir", d.Server.DataDir)
	v.SetDefault("server.log_level", d.Server.LogLevel)

	v.SetDefault("pipeline.queue_capacity", d.Pipeline.QueueCapacity)
	v.SetDefault("pipeline.batch_max", d.Pipeline.BatchMax)
	v.SetDefault("pipeline.batch_timeout_ms", d.Pipeline.BatchTimeoutMs)

	v.SetDefault("safety.redact_pii", d.Safety.RedactPII)
	v.SetDefault("safety.luhn_required", d.Safety.LuhnRequired)
	v.SetDefault("safety.kinds_enabled", d.Safety.KindsEnabled)

	v.SetDefault("dedup.exact_window_secs", d.Dedup.ExactWindowSecs)
	v.SetDefault("dedup.near_ring_size", d.Dedup.NearRingSize)

	v.SetDefault("embedding.dim", d.Embedding.Dim)
	v.SetDefault("embedding.model_id", d.Embedding.ModelID)
	v.SetDefault("embedding.batch_max", d.Embedding.BatchMax)

	v.SetDefault("search.dedup_threshold", d.Search.DedupThreshold)
	v.SetDefault("search.semantic_weight", d.Search.SemanticWeight)
	v.SetDefault("search.fts_normalizer_tau", d.Search.FTSNormalizerTau)

	v.SetDefault("storage.hot_days", d.Storage.HotDays)
	v.SetDefault("storage.warm_days", d.Storage.WarmDays)
	v.SetDefault("storage.retention_days", d.Storage.RetentionDays)

	v.SetDefault("retention.sweep_interval_secs", d.Retention.SweepIntervalSecs)
	v.SetDefault("retention.dry_run", d.Retention.DryRun)

	v.SetDefault("events.subscriber_buffer", d.Events.SubscriberBuffer)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.port", d.Metrics.Port)
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
