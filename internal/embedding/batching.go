package embedding

import (
	"context"
	"time"

	"github.com/joeycumines/go-microbatch"
)

// job is one pending Embed call's slot in a shared batch; the processor
// fills Vector/Err in place, matching microbatch's by-reference result
// convention (JobResult.Job is never reassigned).
type job struct {
	text   string
	vector []float32
	err    error
}

// BatchingEmbedder decouples callers of Embed from the underlying
// Embedder's batch shape: concurrent Embed calls are coalesced into
// EmbedBatch calls of up to BatchMax texts, flushed after
// BatchTimeoutMs of accumulated waiting, exactly as spec §4.4 requires.
// It runs its flush goroutine independent of any caller's goroutine, so
// the embedder worker (spec §5) is decoupled from intake/commit latency.
type BatchingEmbedder struct {
	inner   Embedder
	batcher *microbatch.Batcher[*job]
}

// NewBatchingEmbedder wraps inner with microbatch batching. maxSize and
// flushInterval follow spec defaults (16, 200ms) when zero.
func NewBatchingEmbedder(inner Embedder, maxSize int, flushInterval time.Duration) *BatchingEmbedder {
	be := &BatchingEmbedder{inner: inner}
	be.batcher = microbatch.NewBatcher(&microbatch.BatcherConfig{
		MaxSize:       maxSize,
		FlushInterval: flushInterval,
	}, be.process)
	return be
}

func (be *BatchingEmbedder) process(ctx context.Context, jobs []*job) error {
	texts := make([]string, len(jobs))
	for i, j := range jobs {
		texts[i] = j.text
	}
	vectors, err := be.inner.EmbedBatch(ctx, texts)
	if err != nil {
		for _, j := range jobs {
			j.err = err
		}
		return err
	}
	for i, j := range jobs {
		j.vector = vectors[i]
	}
	return nil
}

// Embed schedules text into the current (or next) batch and blocks until
// that batch has been processed.
func (be *BatchingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	j := &job{text: text}
	result, err := be.batcher.Submit(ctx, j)
	if err != nil {
		return nil, err
	}
	if err := result.Wait(ctx); err != nil {
		return nil, err
	}
	if j.err != nil {
		return nil, j.err
	}
	return j.vector, nil
}

func (be *BatchingEmbedder) Dim() int        { return be.inner.Dim() }
func (be *BatchingEmbedder) ModelID() string { return be.inner.ModelID() }

// Close stops accepting new work and waits for in-flight batches to
// finish.
func (be *BatchingEmbedder) Close() error {
	return be.batcher.Close()
}
