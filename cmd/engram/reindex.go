package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"
	"github.com/schollz/progressbar/v3"

	"github.com/engramhq/engram/internal/config"
	"github.com/engramhq/engram/internal/daemon"
	"github.com/engramhq/engram/internal/datadir"
	"github.com/engramhq/engram/internal/embedding"
	"github.com/engramhq/engram/internal/migration"
	"github.com/engramhq/engram/internal/store"
	"github.com/engramhq/engram/internal/vectorindex"
)

func expandHomeDir(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// cmdReindex runs the offline re-embedding migration (spec §6.3): with the
// daemon stopped, every capture carrying an embedding is re-embedded under
// a new model_id/dim into a fresh vector-index generation, then the
// generation is cut over atomically. This is the non-live counterpart to
// spec §4.4's "online re-embedding ... is a Non-goal" — the daemon must be
// restarted afterward to pick up the new generation.
func cmdReindex(args []string) {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	modelID := fs.String("model-id", "", "new embedding.model_id to migrate to (required)")
	dim := fs.Int("dim", 0, "new embedding dimensionality (defaults to the current config's dim)")
	batchSize := fs.Int("batch-size", 32, "captures re-embedded per batch")
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	if *modelID == "" {
		fail("--model-id is required, e.g. 'engram reindex --model-id local-v2'")
	}

	cfg, err := config.Load("")
	if err != nil {
		fail("loading config: %v", err)
	}
	if *dim <= 0 {
		*dim = cfg.Embedding.Dim
	}

	dataDir := expandHomeDir(cfg.Server.DataDir)
	if daemon.IsRunning(dataDir) {
		fail("engram is running; stop it first with 'engram stop' before reindexing")
	}

	layout, err := datadir.New(dataDir)
	if err != nil {
		fail("opening data directory: %v", err)
	}

	st, err := store.Open(layout.DBPath())
	if err != nil {
		fail("opening store: %v", err)
	}
	defer st.Close()

	genDir := layout.VectorsGenerationDir(nowGeneration())
	_ = os.RemoveAll(genDir)
	newIndex, err := vectorindex.Open(genDir, *dim, *modelID)
	if err != nil {
		fail("opening new vector index generation: %v", err)
	}

	newEmbedder := embedding.NewDeterministicEmbedder(*dim, *modelID)

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(fmt.Sprintf("re-embedding into %s", *modelID)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	migrated, err := migration.Plan(context.Background(), st, newIndex, newEmbedder, *batchSize, func(current, total int) {
		if bar.GetMax() != total {
			_ = bar.ChangeMax(total)
		}
		_ = bar.Set(current)
	})
	_ = bar.Finish()
	closeErr := newIndex.Close()

	if err != nil {
		fail("reindex failed partway through (%d captures migrated): %v", migrated, err)
	}
	if closeErr != nil {
		fail("closing new index: %v", closeErr)
	}

	if err := layout.CutoverVectors(genDir); err != nil {
		fail("cutting over to new generation: %v", err)
	}

	cfg.Embedding.ModelID = *modelID
	cfg.Embedding.Dim = *dim
	if dest := config.ConfigFilePath(); dest != "" {
		_ = config.ExportConfig(dest)
	}

	fmt.Println(colorGood(fmt.Sprintf("reindex complete: %d captures migrated to %s (dim=%d)", migrated, *modelID, *dim)))
	fmt.Println("Run 'engram start' to resume the daemon under the new generation.")
}

// nowGeneration names the scratch migration directory. It only needs to be
// unique among concurrent/leftover migration attempts, not monotonic
// against the vector index's own internal generation counter (the index's
// manifest assigns the real generation number on Open).
func nowGeneration() int64 {
	return int64(os.Getpid())
}
