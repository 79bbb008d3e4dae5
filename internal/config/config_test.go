package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_WithExplicitFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "test.toml")

	content := `
[server]
log_level = "debug"
data_dir = "` + dir + `"

[embedding]
model_id = "test-model"
dim = 8

[safety]
kinds_enabled = ["email", "phone"]
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.LogLevel != "debug" {
		t.Errorf("LogLevel: got %q, want %q", cfg.Server.LogLevel, "debug")
	}
	if cfg.Embedding.ModelID != "test-model" {
		t.Errorf("ModelID: got %q, want %q", cfg.Embedding.ModelID, "test-model")
	}
	if cfg.Embedding.Dim != 8 {
		t.Errorf("Dim: got %d, want 8", cfg.Embedding.Dim)
	}
	if len(cfg.Safety.KindsEnabled) != 2 {
		t.Errorf("KindsEnabled: got %v, want 2 entries", cfg.Safety.KindsEnabled)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "test.toml")

	content := `
[server]
log_level = "info"
data_dir = "` + dir + `"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv("ENGRAM_SERVER_LOG_LEVEL", "warn")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.LogLevel != "warn" {
		t.Errorf("LogLevel with env override: got %q, want %q", cfg.Server.LogLevel, "warn")
	}
}

func TestLoad_ValidationFailure_BadLogLevel(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.toml")

	content := `
[server]
log_level = "shout"
data_dir = "` + dir + `"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected validation error for bad log level")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel: got %q, want %q", cfg.Server.LogLevel, DefaultLogLevel)
	}
	if cfg.Embedding.Dim != DefaultEmbeddingDim {
		t.Errorf("Embedding.Dim: got %d, want %d", cfg.Embedding.Dim, DefaultEmbeddingDim)
	}
	if cfg.Dedup.NearRingSize != DefaultNearRingSize {
		t.Errorf("Dedup.NearRingSize: got %d, want %d", cfg.Dedup.NearRingSize, DefaultNearRingSize)
	}
	if cfg.Search.SemanticWeight != DefaultSemanticWeight {
		t.Errorf("Search.SemanticWeight: got %f, want %f", cfg.Search.SemanticWeight, DefaultSemanticWeight)
	}
}

func TestConfigFilePath_BeforeLoad(t *testing.T) {
	loadedConfigFile.Store("")
	path := ConfigFilePath()
	if path != "" {
		t.Errorf("ConfigFilePath before load: got %q, want empty", path)
	}
}

func TestExportConfig(t *testing.T) {
	dir := t.TempDir()
	exportPath := filepath.Join(dir, "exported.toml")

	cfg := DefaultConfig()
	set(cfg)

	if err := ExportConfig(exportPath); err != nil {
		t.Fatalf("ExportConfig: %v", err)
	}

	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Error("exported config is empty")
	}
}

func TestImportConfig(t *testing.T) {
	dir := t.TempDir()
	importPath := filepath.Join(dir, "import.toml")

	content := `
[server]
log_level = "warn"
data_dir = "` + dir + `"
`
	if err := os.WriteFile(importPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := ImportConfig(importPath); err != nil {
		t.Fatalf("ImportConfig: %v", err)
	}

	cfg := Get()
	if cfg.Server.LogLevel != "warn" {
		t.Errorf("LogLevel after import: got %q, want %q", cfg.Server.LogLevel, "warn")
	}

	// Reset to default to not affect other tests.
	set(DefaultConfig())
}
