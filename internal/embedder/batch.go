package embedder

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/cambium-dev/docqa-go/internal/rag"
)

// Result is the outcome of embedding one input text: a vector or the error
// that terminally rejected it. Exactly one of the two is set.
type Result struct {
	Vector []float32
	Err    error
}

// BatchConfig tunes the batching and retry layer.
type BatchConfig struct {
	// BatchSize is the maximum texts per remote request (default 16).
	BatchSize int

	// RequestsPerSecond rate-limits outbound requests. Zero disables
	// limiting.
	RequestsPerSecond float64

	// MaxAttempts bounds retries per request for transient failures
	// (default 4, i.e. one call plus three retries).
	MaxAttempts int

	// Parallelism bounds how many batches are in flight at once
	// (default 2).
	Parallelism int
}

// Batcher drives a rag.Embedder in rate-limited, retried batches and
// surfaces per-item outcomes, so one rejected text does not discard the
// rest of a document's embeddings. Safe for concurrent use.
type Batcher struct {
	inner   rag.Embedder
	cfg     BatchConfig
	limiter *rate.Limiter

	// sleep is swapped out by tests to avoid real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewBatcher wraps inner with batching, rate limiting, and bounded retry.
func NewBatcher(inner rag.Embedder, cfg BatchConfig) (*Batcher, error) {
	if inner == nil {
		return nil, fmt.Errorf("embedder: inner embedder must not be nil")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 2
	}
	b := &Batcher{inner: inner, cfg: cfg, sleep: sleepCtx}
	if cfg.RequestsPerSecond > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return b, nil
}

// EmbedAll embeds texts and returns one Result per input, in input order.
// Transient failures are retried with exponential backoff up to the
// configured bound; when a whole batch is terminally rejected, its items are
// re-tried individually so a single oversized text surfaces as one indexed
// error instead of failing its batchmates.
func (b *Batcher) EmbedAll(ctx context.Context, texts []string) ([]Result, error) {
	results := make([]Result, len(texts))
	if len(texts) == 0 {
		return results, nil
	}

	type batch struct {
		start int
		texts []string
	}
	var batches []batch
	for i := 0; i < len(texts); i += b.cfg.BatchSize {
		end := i + b.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, batch{start: i, texts: texts[i:end]})
	}

	sem := make(chan struct{}, b.cfg.Parallelism)
	var wg sync.WaitGroup
	for _, bt := range batches {
		wg.Add(1)
		sem <- struct{}{}
		go func(bt batch) {
			defer wg.Done()
			defer func() { <-sem }()
			b.embedBatch(ctx, bt.texts, results[bt.start:bt.start+len(bt.texts)])
		}(bt)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Embed implements rag.Embedder for callers that need all-or-nothing
// semantics (query embedding). Any per-item failure fails the whole call.
func (b *Batcher) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	results, err := b.EmbedAll(ctx, texts)
	if err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(results))
	for i, r := range results {
		if r.Err != nil {
			return nil, fmt.Errorf("embedder: item %d: %w", i, r.Err)
		}
		vectors[i] = r.Vector
	}
	return vectors, nil
}

// embedBatch fills out with the batch's outcomes.
func (b *Batcher) embedBatch(ctx context.Context, texts []string, out []Result) {
	vectors, err := b.callWithRetry(ctx, texts)
	if err == nil {
		for i := range out {
			out[i] = Result{Vector: vectors[i]}
		}
		return
	}
	if len(texts) == 1 {
		out[0] = Result{Err: err}
		return
	}

	// The backends reject a whole batch when any item is bad. Retry items
	// one by one to pin the failure on the offending inputs.
	for i, t := range texts {
		v, itemErr := b.callWithRetry(ctx, []string{t})
		if itemErr != nil {
			out[i] = Result{Err: itemErr}
			continue
		}
		out[i] = Result{Vector: v[0]}
	}
}

// callWithRetry performs one embedding call with rate limiting and
// exponential backoff on transient failures.
func (b *Batcher) callWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < b.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := b.sleep(ctx, backoff(attempt)); err != nil {
				return nil, lastErr
			}
		}
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		vectors, err := b.inner.Embed(ctx, texts)
		if err == nil {
			if len(vectors) != len(texts) {
				return nil, fmt.Errorf("embedder: expected %d vectors, got %d", len(texts), len(vectors))
			}
			return vectors, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("embedder: giving up after %d attempts: %w", b.cfg.MaxAttempts, lastErr)
}

// backoff returns the delay before the given retry attempt: 500ms doubling
// per attempt with up to 20% jitter, capped at 30s.
func backoff(attempt int) time.Duration {
	d := 500 * time.Millisecond << (attempt - 1)
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 5))
	return d + jitter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
