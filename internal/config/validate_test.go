package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Server.DataDir = "/tmp/test"
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := validate(cfg); err != nil {
		t.Fatalf("validate valid config: %v", err)
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Server.LogLevel = "verbose"

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level: %v", err)
	}
}

func TestValidate_EmptyDataDir(t *testing.T) {
	cfg := validConfig()
	cfg.Server.DataDir = ""

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for empty data_dir")
	}
}

func TestValidate_BadQueueCapacity(t *testing.T) {
	cfg := validConfig()
	cfg.Pipeline.QueueCapacity = 0

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for zero queue_capacity")
	}
	if !strings.Contains(err.Error(), "queue_capacity") {
		t.Errorf("error should mention queue_capacity: %v", err)
	}
}

func TestValidate_UnknownPIIKind(t *testing.T) {
	cfg := validConfig()
	cfg.Safety.KindsEnabled = []string{"bitcoin_address"}

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for unknown PII kind")
	}
	if !strings.Contains(err.Error(), "kinds_enabled") {
		t.Errorf("error should mention kinds_enabled: %v", err)
	}
}

func TestValidate_NegativeExactWindow(t *testing.T) {
	cfg := validConfig()
	cfg.Dedup.ExactWindowSecs = -1

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for negative exact_window_secs")
	}
}

func TestValidate_BadEmbeddingDim(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Dim = 0

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for zero embedding dim")
	}
}

func TestValidate_EmptyModelID(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.ModelID = ""

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for empty model_id")
	}
}

func TestValidate_DedupThresholdOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.Search.DedupThreshold = 1.5

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for dedup_threshold > 1")
	}
}

func TestValidate_SemanticWeightOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.Search.SemanticWeight = -0.1

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for negative semantic_weight")
	}
}

func TestValidate_ZeroFTSNormalizerTau(t *testing.T) {
	cfg := validConfig()
	cfg.Search.FTSNormalizerTau = 0

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for zero fts_normalizer_tau")
	}
}

func TestValidate_TierOrderingViolation(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.HotDays = 30
	cfg.Storage.WarmDays = 7

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for warm_days < hot_days")
	}
}

func TestValidate_RetentionBelowWarm(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.WarmDays = 30
	cfg.Storage.RetentionDays = 10

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for retention_days < warm_days")
	}
}

func TestValidate_ZeroSweepInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Retention.SweepIntervalSecs = 0

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for zero sweep_interval_secs")
	}
}

func TestValidate_ZeroSubscriberBuffer(t *testing.T) {
	cfg := validConfig()
	cfg.Events.SubscriberBuffer = 0

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for zero subscriber_buffer")
	}
}

func TestValidate_BadMetricsPort(t *testing.T) {
	cfg := validConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = 70000

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for out-of-range metrics port")
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.LogLevel = "bad"
	cfg.Pipeline.QueueCapacity = 0

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected multiple validation errors")
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") || !strings.Contains(errStr, "queue_capacity") {
		t.Errorf("error should mention multiple fields: %v", err)
	}
}

func TestIsValidEnum(t *testing.T) {
	if !isValidEnum("INFO", ValidLogLevels) {
		t.Error("INFO should be valid (case-insensitive)")
	}
	if isValidEnum("verbose", ValidLogLevels) {
		t.Error("verbose should not be valid")
	}
}
