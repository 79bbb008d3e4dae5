package config

// DefaultLogLevel is the default log level.
const DefaultLogLevel = "info"

// DefaultDataDir is the default data directory (before tilde expansion).
const DefaultDataDir = "~/.engram"

// DefaultConfigFilename is the name of the config file.
const DefaultConfigFilename = "config.toml"

// DefaultQueueCapacity is the default per-source-kind intake queue depth.
const DefaultQueueCapacity = 256

// DefaultBatchMax is the default maximum embedding batch size.
const DefaultBatchMax = 32

// DefaultBatchTimeoutMs is the default embedding batch flush interval.
const DefaultBatchTimeoutMs = 200

// DefaultExactWindowSecs is the default exact-dup suppression window.
const DefaultExactWindowSecs = 60

// DefaultNearRingSize is the default near-dup ring buffer size.
const DefaultNearRingSize = 32

// DefaultEmbeddingDim is the default embedding vector dimensionality.
const DefaultEmbeddingDim = 384

// DefaultModelID is the default embedding model identity.
const DefaultModelID = "local-v1"

// DefaultDedupThreshold is the default near-dup cosine similarity
// threshold.
const DefaultDedupThreshold = 0.95

// DefaultSemanticWeight is the default hybrid ranker blend weight (w in
// w*cos + (1-w)*fts_norm).
const DefaultSemanticWeight = 0.7

// DefaultFTSNormalizerTau is the default BM25-to-[0,1] normalizer scale.
const DefaultFTSNormalizerTau = 4.0

// DefaultHotDays is the default age boundary between hot and warm tiers.
const DefaultHotDays = 7

// DefaultWarmDays is the default age boundary between warm and cold tiers.
const DefaultWarmDays = 30

// DefaultRetentionDays is the default age at which records are deleted.
const DefaultRetentionDays = 365

// DefaultSweepIntervalSecs is the default interval between retention
// sweeps.
const DefaultSweepIntervalSecs = 3600

// DefaultSubscriberBuffer is the default per-subscriber event bus buffer
// depth.
const DefaultSubscriberBuffer = 256

// DefaultMetricsPort is the default Prometheus exposition port.
const DefaultMetricsPort = 9477

// ValidLogLevels lists the allowed log level values.
var ValidLogLevels = []string{"trace", "debug", "info", "warn", "error", "fatal"}

// ValidPIIKinds lists the allowed safety.kinds_enabled values.
var ValidPIIKinds = []string{"credit_card", "ssn", "email", "phone"}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			DataDir:  DefaultDataDir,
			LogLevel: DefaultLogLevel,
		},
		Pipeline: PipelineConfig{
			QueueCapacity:  DefaultQueueCapacity,
			BatchMax:       DefaultBatchMax,
			BatchTimeoutMs: DefaultBatchTimeoutMs,
		},
		Safety: SafetyConfig{
			RedactPII:    true,
			LuhnRequired: true,
			KindsEnabled: append([]string(nil), ValidPIIKinds...),
		},
		Dedup: DedupConfig{
			ExactWindowSecs: DefaultExactWindowSecs,
			NearRingSize:    DefaultNearRingSize,
		},
		Embedding: EmbeddingConfig{
			Dim:      DefaultEmbeddingDim,
			ModelID:  DefaultModelID,
			BatchMax: DefaultBatchMax,
		},
		Search: SearchConfig{
			DedupThreshold:   DefaultDedupThreshold,
			SemanticWeight:   DefaultSemanticWeight,
			FTSNormalizerTau: DefaultFTSNormalizerTau,
		},
		Storage: StorageConfig{
			HotDays:       DefaultHotDays,
			WarmDays:      DefaultWarmDays,
			RetentionDays: DefaultRetentionDays,
		},
		Retention: RetentionConfig{
			SweepIntervalSecs: DefaultSweepIntervalSecs,
			DryRun:            false,
		},
		Events: EventsConfig{
			SubscriberBuffer: DefaultSubscriberBuffer,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    DefaultMetricsPort,
		},
	}
}
