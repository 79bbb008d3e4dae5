// Package daemon is the main orchestrator: it wires the datadir layout,
// the record store, the vector index, the event bus, the ingestion
// pipeline, the dual-write committer, the query planner, the retention
// sweeper, and the metrics collector into one running process, following
// the teacher's internal/daemon/daemon.go shape (zerolog setup, PID file,
// config watcher, signal-driven graceful shutdown).
package daemon

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/engramhq/engram/internal/bus"
	"github.com/engramhq/engram/internal/committer"
	"github.com/engramhq/engram/internal/config"
	"github.com/engramhq/engram/internal/datadir"
	"github.com/engramhq/engram/internal/dedup"
	"github.com/engramhq/engram/internal/embedding"
	"github.com/engramhq/engram/internal/metrics"
	"github.com/engramhq/engram/internal/pipeline"
	"github.com/engramhq/engram/internal/query"
	"github.com/engramhq/engram/internal/retention"
	"github.com/engramhq/engram/internal/safety"
	"github.com/engramhq/engram/internal/store"
	"github.com/engramhq/engram/internal/vectorindex"
	"github.com/engramhq/engram/internal/version"
)

// Engine bundles every wired subsystem so that external collaborators
// (the Capture Source drivers, the out-of-scope HTTP/SSE surface) can
// reach the two contracts spec §6 promises: Push (via Pipeline, which
// implements capture.Source) and the Query Planner's search/recent/get/
// stats/purge methods.
type Engine struct {
	Pipeline *pipeline.Pipeline
	Query    *query.Planner
	Bus      *bus.Bus

	store     *store.Store
	index     vectorindex.Index
	collector *metrics.Collector
	sweeper   *retention.Sweeper
	watcher   *config.Watcher
	dataDir   string
}

// Run is the main daemon orchestrator. It initializes every subsystem,
// starts the background workers, and blocks until a shutdown signal is
// received or a worker fails fatally.
func Run(cfg *config.Config, foreground bool) error {
	dataDir := expandHome(cfg.Server.DataDir)
	layout, err := datadir.New(dataDir)
	if err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	if err := layout.EnsureToken(); err != nil {
		return fmt.Errorf("daemon: %w", err)
	}

	setupLogger(dataDir, cfg.Server.LogLevel, foreground)

	log.Info().
		Str("version", version.Version).
		Str("data_dir", dataDir).
		Bool("foreground", foreground).
		Msg("engram starting")

	if IsRunning(dataDir) {
		return fmt.Errorf("engram is already running (PID file exists at %s)", filepath.Join(dataDir, pidFilename))
	}

	engine, err := build(layout, cfg)
	if err != nil {
		return fmt.Errorf("daemon: building engine: %w", err)
	}
	defer engine.close()

	if err := WritePID(dataDir); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer func() {
		if err := RemovePID(dataDir); err != nil {
			log.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	configFile := config.ConfigFilePath()
	if configFile == "" {
		configFile = layout.ConfigPath()
	}
	if _, statErr := os.Stat(configFile); statErr == nil {
		w, watchErr := config.Watch(configFile)
		if watchErr != nil {
			log.Warn().Err(watchErr).Msg("failed to start config watcher; continuing without hot-reload")
		} else {
			engine.watcher = w
			w.OnChange(func(old, newCfg *config.Config) {
				log.Info().Msg("configuration reloaded")
				zerolog.SetGlobalLevel(parseLogLevel(newCfg.Server.LogLevel))
			})
			log.Info().Str("file", configFile).Msg("config watcher started")
		}
	}
	if engine.watcher != nil {
		defer engine.watcher.Close()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := engine.Pipeline.Run(runCtx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("pipeline: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := engine.sweeper.Run(runCtx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("retention: %w", err)
		}
	}()

	if cfg.Metrics.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			if err := engine.collector.Serve(runCtx, addr); err != nil {
				errCh <- fmt.Errorf("metrics: %w", err)
			}
		}()
		log.Info().Int("port", cfg.Metrics.Port).Msg("metrics exposition started")
	}

	log.Info().Msg("engram is ready")
	if foreground {
		fmt.Println("\n  Engram is running.")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("fatal worker error")
		cancel()
		wg.Wait()
		return err
	}

	cancel()
	wg.Wait()

	log.Info().Msg("engram stopped")
	return nil
}

// build opens the store and vector index, wires every stage together,
// and runs crash recovery before accepting new drafts (spec §4.5: a live
// intent row would otherwise block a fresh Step A insert).
func build(layout *datadir.Layout, cfg *config.Config) (*Engine, error) {
	st, err := store.Open(layout.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	inner := embedding.NewDeterministicEmbedder(cfg.Embedding.Dim, cfg.Embedding.ModelID)
	idx, err := vectorindex.Open(layout.VectorsDir(), inner.Dim(), inner.ModelID())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("opening vector index: %w", err)
	}

	evBus := bus.New()
	collector := metrics.NewCollector()
	ctr := committer.New(st, idx, evBus, inner, collector)

	log.Info().Msg("running startup intent recovery")
	resolved, err := ctr.Recover(context.Background())
	if err != nil {
		idx.Close()
		st.Close()
		return nil, fmt.Errorf("recovering orphan intents: %w", err)
	}
	if resolved > 0 {
		log.Info().Int("resolved", resolved).Msg("startup intent recovery finished")
	}

	gate := safety.New(cfg.Safety)
	exact := dedup.NewExactFilter(st, time.Duration(cfg.Dedup.ExactWindowSecs)*time.Second)
	near, err := dedup.NewNearFilter(cfg.Dedup.NearRingSize, cfg.Search.DedupThreshold)
	if err != nil {
		idx.Close()
		st.Close()
		return nil, fmt.Errorf("building near-dup filter: %w", err)
	}
	batched := embedding.NewBatchingEmbedder(inner, cfg.Embedding.BatchMax, time.Duration(cfg.Pipeline.BatchTimeoutMs)*time.Millisecond)

	q := pipeline.NewQueue(cfg.Pipeline.QueueCapacity, evBus)
	pipelineCfg := func() config.PipelineConfig { return config.Get().Pipeline }
	pl := pipeline.New(q, gate, exact, near, batched, ctr, evBus, pipelineCfg, collector)

	searchCfg := func() config.SearchConfig { return config.Get().Search }
	planner := query.New(st, idx, inner, searchCfg, collector)

	retentionCfg := func() (config.StorageConfig, config.RetentionConfig) {
		c := config.Get()
		return c.Storage, c.Retention
	}
	sweeper := retention.New(st, idx, evBus, retentionCfg, collector)

	return &Engine{
		Pipeline:  pl,
		Query:     planner,
		Bus:       evBus,
		store:     st,
		index:     idx,
		collector: collector,
		sweeper:   sweeper,
		dataDir:   layout.Root,
	}, nil
}

func (e *Engine) close() {
	if err := e.Pipeline.Close(); err != nil {
		log.Error().Err(err).Msg("pipeline close error")
	}
	if err := e.index.Close(); err != nil {
		log.Error().Err(err).Msg("vector index close error")
	}
	if err := e.store.Close(); err != nil {
		log.Error().Err(err).Msg("store close error")
	}
}

// Stop reads the PID file and sends SIGTERM to the running daemon.
func Stop() error {
	dataDir := expandHome(config.Get().Server.DataDir)

	pid, err := ReadPID(dataDir)
	if err != nil {
		return fmt.Errorf("engram does not appear to be running: %w", err)
	}
	if !isProcessAlive(pid) {
		if rmErr := RemovePID(dataDir); rmErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to remove stale PID file: %v\n", rmErr)
		}
		return fmt.Errorf("engram is not running (stale PID file removed)")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sending SIGTERM to process %d: %w", pid, err)
	}
	fmt.Printf("Sent SIGTERM to engram (PID %d)\n", pid)

	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if !isProcessAlive(pid) {
			return nil
		}
	}
	return nil
}

// Status reports whether the daemon is running.
func Status() error {
	dataDir := expandHome(config.Get().Server.DataDir)
	if !IsRunning(dataDir) {
		fmt.Println("engram is not running")
		return nil
	}
	pid, _ := ReadPID(dataDir)
	fmt.Printf("engram is running (PID %d)\n", pid)
	return nil
}

func setupLogger(dataDir, logLevel string, foreground bool) {
	zerolog.SetGlobalLevel(parseLogLevel(logLevel))

	var writers []io.Writer
	logPath := filepath.Join(dataDir, "engram.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err == nil {
		writers = append(writers, logFile)
	}
	if foreground {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	multi := zerolog.MultiLevelWriter(writers...)
	log.Logger = zerolog.New(multi).With().Timestamp().Str("service", "engram").Logger()
}

func parseLogLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}

func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
