package vectorindex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// manifest records the index generation: dim/model_id are fixed for the
// life of a generation (spec §3 VectorEntry), and a model_id change means
// a new generation entirely rather than an in-place schema change.
type manifest struct {
	Generation  int64  `json:"generation"`
	ModelID     string `json:"model_id"`
	Dim         int    `json:"dim"`
	NextVID     int64  `json:"next_vid"`
	SnapshotSeq int64  `json:"snapshot_seq"`
}

func manifestPath(dir string) string {
	return filepath.Join(dir, "manifest.json")
}

func loadManifest(dir string) (*manifest, error) {
	b, err := os.ReadFile(manifestPath(dir))
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("vectorindex: decode manifest: %w", err)
	}
	return &m, nil
}

func (m *manifest) save(dir string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("vectorindex: encode manifest: %w", err)
	}
	tmp := manifestPath(dir) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("vectorindex: write manifest: %w", err)
	}
	return os.Rename(tmp, manifestPath(dir))
}
