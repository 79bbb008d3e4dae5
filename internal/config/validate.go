package config

import (
	"fmt"
	"strings"
)

// validate checks the Config for invalid or out-of-range values.
// It returns a combined error if any checks fail.
func validate(cfg *Config) error {
	var errs []string

	if !isValidEnum(cfg.Server.LogLevel, ValidLogLevels) {
		errs = append(errs, fmt.Sprintf("server.log_level must be one of %v, got %q", ValidLogLevels, cfg.Server.LogLevel))
	}
	if cfg.Server.DataDir == "" {
		errs = append(errs, "server.data_dir must not be empty")
	}

	if cfg.Pipeline.QueueCapacity < 1 {
		errs = append(errs, fmt.Sprintf("pipeline.queue_capacity must be at least 1, got %d", cfg.Pipeline.QueueCapacity))
	}
	if cfg.Pipeline.BatchMax < 1 {
		errs = append(errs, fmt.Sprintf("pipeline.batch_max must be at least 1, got %d", cfg.Pipeline.BatchMax))
	}
	if cfg.Pipeline.BatchTimeoutMs < 1 {
		errs = append(errs, fmt.Sprintf("pipeline.batch_timeout_ms must be at least 1, got %d", cfg.Pipeline.BatchTimeoutMs))
	}

	for _, k := range cfg.Safety.KindsEnabled {
		if !isValidEnum(k, ValidPIIKinds) {
			errs = append(errs, fmt.Sprintf("safety.kinds_enabled contains unknown kind %q, allowed %v", k, ValidPIIKinds))
		}
	}

	if cfg.Dedup.ExactWindowSecs < 0 {
		errs = append(errs, fmt.Sprintf("dedup.exact_window_secs must be non-negative, got %d", cfg.Dedup.ExactWindowSecs))
	}
	if cfg.Dedup.NearRingSize < 0 {
		errs = append(errs, fmt.Sprintf("dedup.near_ring_size must be non-negative, got %d", cfg.Dedup.NearRingSize))
	}

	if cfg.Embedding.Dim < 1 {
		errs = append(errs, fmt.Sprintf("embedding.dim must be at least 1, got %d", cfg.Embedding.Dim))
	}
	if cfg.Embedding.ModelID == "" {
		errs = append(errs, "embedding.model_id must not be empty")
	}
	if cfg.Embedding.BatchMax < 1 {
		errs = append(errs, fmt.Sprintf("embedding.batch_max must be at least 1, got %d", cfg.Embedding.BatchMax))
	}

	if cfg.Search.DedupThreshold < 0 || cfg.Search.DedupThreshold > 1 {
		errs = append(errs, fmt.Sprintf("search.dedup_threshold must be between 0 and 1, got %f", cfg.Search.DedupThreshold))
	}
	if cfg.Search.SemanticWeight < 0 || cfg.Search.SemanticWeight > 1 {
		errs = append(errs, fmt.Sprintf("search.semantic_weight must be between 0 and 1, got %f", cfg.Search.SemanticWeight))
	}
	if cfg.Search.FTSNormalizerTau <= 0 {
		errs = append(errs, fmt.Sprintf("search.fts_normalizer_tau must be positive, got %f", cfg.Search.FTSNormalizerTau))
	}

	if cfg.Storage.HotDays < 0 {
		errs = append(errs, fmt.Sprintf("storage.hot_days must be non-negative, got %d", cfg.Storage.HotDays))
	}
	if cfg.Storage.WarmDays < cfg.Storage.HotDays {
		errs = append(errs, fmt.Sprintf("storage.warm_days (%d) must be >= storage.hot_days (%d)", cfg.Storage.WarmDays, cfg.Storage.HotDays))
	}
	if cfg.Storage.RetentionDays < cfg.Storage.WarmDays {
		errs = append(errs, fmt.Sprintf("storage.retention_days (%d) must be >= storage.warm_days (%d)", cfg.Storage.RetentionDays, cfg.Storage.WarmDays))
	}

	if cfg.Retention.SweepIntervalSecs < 1 {
		errs = append(errs, fmt.Sprintf("retention.sweep_interval_secs must be at least 1, got %d", cfg.Retention.SweepIntervalSecs))
	}

	if cfg.Events.SubscriberBuffer < 1 {
		errs = append(errs, fmt.Sprintf("events.subscriber_buffer must be at least 1, got %d", cfg.Events.SubscriberBuffer))
	}

	if cfg.Metrics.Enabled && (cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535) {
		errs = append(errs, fmt.Sprintf("metrics.port must be between 1 and 65535, got %d", cfg.Metrics.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// isValidEnum returns true if val is in the allowed list (case-insensitive).
func isValidEnum(val string, allowed []string) bool {
	lower := strings.ToLower(val)
	for _, a := range allowed {
		if strings.ToLower(a) == lower {
			return true
		}
	}
	return false
}
