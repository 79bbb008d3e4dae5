// Package retention implements the Retention Sweeper (spec §4.9): a
// background worker that retags captures into hot/warm/cold tiers by age
// and deletes captures past the retention cutoff from both indexes.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/engramhq/engram/internal/bus"
	"github.com/engramhq/engram/internal/config"
	"github.com/engramhq/engram/internal/metrics"
	"github.com/engramhq/engram/internal/store"
	"github.com/engramhq/engram/internal/types"
	"github.com/engramhq/engram/internal/vectorindex"
)

// DeletedEvent is the payload of a bus.KindCaptureDeleted event.
type DeletedEvent struct {
	ID types.ID
}

// TierTransitionedEvent is the payload of a bus.KindTierTransitioned
// event, published once per sweep with the aggregate counts rather than
// per row, since a sweep can retag thousands of rows at once.
type TierTransitionedEvent struct {
	Hot, Warm, Cold int64
}

// Result summarizes one sweep pass.
type Result struct {
	Hot, Warm, Cold int64 // rows retagged into each tier
	Expired         int   // rows matched for deletion
	Deleted         int   // rows actually deleted (0 when dry_run)
}

// Sweeper runs RetagTiers and the expired-capture purge on a fixed
// interval, publishing bus events for observability and for any
// subscriber that wants to react to deletions.
type Sweeper struct {
	store   *store.Store
	index   vectorindex.Index
	bus     *bus.Bus
	cfg     func() (config.StorageConfig, config.RetentionConfig)
	metrics *metrics.Collector
}

// New returns a Sweeper. cfg is called at the start of every sweep so
// config hot-reloads (spec §6.4) take effect on the next tick without
// restarting the worker. collector may be nil.
func New(st *store.Store, idx vectorindex.Index, evBus *bus.Bus, cfg func() (config.StorageConfig, config.RetentionConfig), collector *metrics.Collector) *Sweeper {
	return &Sweeper{store: st, index: idx, bus: evBus, cfg: cfg, metrics: collector}
}

// Run ticks every retention.sweep_interval_secs until ctx is cancelled.
// It returns ctx's error when ctx is done, or the wrapped error of the
// first sweep that fails; it does not retry a failed sweep or recover a
// panic inside one.
func (s *Sweeper) Run(ctx context.Context) error {
	_, retCfg := s.cfg()
	interval := time.Duration(retCfg.SweepIntervalSecs) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_, retCfg := s.cfg()
			if _, err := s.Sweep(time.Now(), retCfg.DryRun); err != nil {
				return fmt.Errorf("retention: sweep: %w", err)
			}
		}
	}
}

// Sweep retags tiers and deletes expired captures. With dryRun=true it
// only counts what would be deleted, per spec §4.9's dry_run variant.
func (s *Sweeper) Sweep(now time.Time, dryRun bool) (Result, error) {
	storageCfg, _ := s.cfg()

	hot, warm, cold, err := s.store.RetagTiers(now, storageCfg.HotDays, storageCfg.WarmDays)
	if err != nil {
		return Result{}, fmt.Errorf("retention: retag tiers: %w", err)
	}
	if s.bus != nil && (hot > 0 || warm > 0 || cold > 0) {
		s.bus.Publish(bus.KindTierTransitioned, TierTransitionedEvent{Hot: hot, Warm: warm, Cold: cold})
	}

	cutoff := now.AddDate(0, 0, -storageCfg.RetentionDays)
	expired, err := s.store.ListExpiredCaptures(cutoff)
	if err != nil {
		return Result{}, fmt.Errorf("retention: list expired: %w", err)
	}

	result := Result{Hot: hot, Warm: warm, Cold: cold, Expired: len(expired)}
	if dryRun {
		return result, nil
	}

	for _, cand := range expired {
		if err := s.store.DeleteCapture(cand.CaptureID); err != nil {
			return result, fmt.Errorf("retention: delete capture %s: %w", cand.CaptureID, err)
		}
		if cand.EmbeddingRef != nil {
			if err := s.index.Delete(*cand.EmbeddingRef); err != nil {
				return result, fmt.Errorf("retention: delete vector %d: %w", *cand.EmbeddingRef, err)
			}
		}
		result.Deleted++
		if s.bus != nil {
			s.bus.Publish(bus.KindCaptureDeleted, DeletedEvent{ID: cand.CaptureID})
		}
	}

	if s.metrics != nil {
		s.metrics.RecordSweep()
		if stats, statErr := s.store.Stats(); statErr == nil {
			s.metrics.SetTierCounts(stats.HotCount, stats.WarmCount, stats.ColdCount)
			s.metrics.SetStoreBytes(stats.DBSizeB)
		}
		s.metrics.SetVectorCount(s.index.Len())
	}
	return result, nil
}
