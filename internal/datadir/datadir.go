// Package datadir manages the on-disk layout described in spec §6.3: a
// single directory holding the record store, the vector index, a
// generated API token placeholder, and the config file, all under
// owner-only permissions.
package datadir

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

const (
	dbFilename     = "engram.db"
	vectorsDirname = "vectors"
	tokenFilename  = ".api_token"

	dirPerm   = 0o700
	filePerm  = 0o600
	tokenSize = 32 // bytes, hex-encoded to a 64-char token
)

// Layout resolves the fixed set of paths that live under one data
// directory.
type Layout struct {
	Root string
}

// New ensures root exists with owner-only permissions and returns its
// Layout. It does not open the store or vector index; callers pass
// DBPath/VectorsDir to store.Open/vectorindex.Open themselves.
func New(root string) (*Layout, error) {
	if root == "" {
		return nil, fmt.Errorf("datadir: empty root")
	}
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("datadir: creating %s: %w", root, err)
	}
	if err := os.Chmod(root, dirPerm); err != nil {
		return nil, fmt.Errorf("datadir: chmod %s: %w", root, err)
	}
	return &Layout{Root: root}, nil
}

// DBPath is the record store's database file, opened with store.Open.
func (l *Layout) DBPath() string {
	return filepath.Join(l.Root, dbFilename)
}

// VectorsDir is the directory vectorindex.Open manages (snapshot files
// plus its op-log).
func (l *Layout) VectorsDir() string {
	return filepath.Join(l.Root, vectorsDirname)
}

// VectorsGenerationDir is a scratch directory for an offline re-embedding
// migration (spec §6.3): a new generation's index is built here, beside
// the live vectors/ directory, before CutoverVectors swaps it in.
func (l *Layout) VectorsGenerationDir(generation int64) string {
	return filepath.Join(l.Root, fmt.Sprintf("vectors-gen-%d", generation))
}

// CutoverVectors atomically replaces the live vectors/ directory with
// newDir, per spec §6.3's "cutover is an atomic manifest swap": the old
// generation is preserved alongside (renamed, not deleted) so a failed
// migration never destroys a working index.
func (l *Layout) CutoverVectors(newDir string) error {
	live := l.VectorsDir()
	if _, err := os.Stat(live); err == nil {
		retired := live + ".prev"
		os.RemoveAll(retired)
		if err := os.Rename(live, retired); err != nil {
			return fmt.Errorf("datadir: retiring previous vectors dir: %w", err)
		}
	}
	if err := os.Rename(newDir, live); err != nil {
		return fmt.Errorf("datadir: cutting over vectors dir: %w", err)
	}
	return nil
}

// ConfigPath is the default config.toml location when none is specified
// explicitly on the command line.
func (l *Layout) ConfigPath() string {
	return filepath.Join(l.Root, "config.toml")
}

// TokenPath is the owner-readable API token file. The core creates it
// (EnsureToken) with the right permissions but never reads the token
// back; consuming it is the HTTP surface's concern.
func (l *Layout) TokenPath() string {
	return filepath.Join(l.Root, tokenFilename)
}

// EnsureToken creates TokenPath with a fresh random token if it doesn't
// already exist. It is idempotent: a token written by a previous run is
// left untouched so restarting the daemon doesn't invalidate clients
// that already have it.
func (l *Layout) EnsureToken() error {
	path := l.TokenPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("datadir: stat %s: %w", path, err)
	}

	buf := make([]byte, tokenSize)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("datadir: generating token: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := os.WriteFile(path, []byte(token), filePerm); err != nil {
		return fmt.Errorf("datadir: writing %s: %w", path, err)
	}
	return nil
}
