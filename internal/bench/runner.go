// Package bench samples generated records and times one verification query
// per enabled layout for each sample.
package bench

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	bencherr "github.com/arkilian/membench/internal/errors"
	"github.com/arkilian/membench/internal/layout"
	"github.com/arkilian/membench/internal/observability"
	"github.com/arkilian/membench/internal/storage"
	"github.com/arkilian/membench/pkg/types"
)

// Options configures a Runner.
type Options struct {
	// Layouts selects which layouts are queried per sample.
	Layouts layout.Set
	// Rand picks samples. Nil uses a time-seeded source.
	Rand *rand.Rand
	// Logger receives start and finish lines. Nil uses log.Default().
	Logger *log.Logger
}

// LayoutResult is the outcome for one layout.
type LayoutResult struct {
	Name        string
	Description string
	Stats       observability.LatencySnapshot
}

// Results is the outcome of a completed run.
type Results struct {
	// Requested is the configured sample count.
	Requested int
	// Samples is the number of records actually drawn.
	Samples int
	Layouts []LayoutResult
	Elapsed time.Duration
}

// Layout returns the result for the named layout.
func (r *Results) Layout(name string) (LayoutResult, bool) {
	for _, l := range r.Layouts {
		if l.Name == name {
			return l, true
		}
	}
	return LayoutResult{}, false
}

// Runner executes the read phase against a single adapter.
type Runner struct {
	adapter storage.Adapter
	layouts layout.Set
	rng     *rand.Rand
	logger  *log.Logger
	now     func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(adapter storage.Adapter, opts Options) *Runner {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 1))
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		adapter: adapter,
		layouts: opts.Layouts,
		rng:     rng,
		logger:  logger,
		now:     time.Now,
	}
}

// Run draws sampleCount records uniformly with replacement from index and,
// for each, times exactly one verification call per enabled layout.
//
// Semantic mismatches are counted. Any adapter error aborts the run and the
// partial statistics are discarded: the returned Results is nil.
func (r *Runner) Run(ctx context.Context, sampleCount int, index *types.SampleIndex) (*Results, error) {
	if sampleCount < 0 {
		return nil, bencherr.NewValidationError(bencherr.CodeInvalidRange,
			fmt.Sprintf("sample count must be >= 0, got %d", sampleCount))
	}
	if index == nil || (index.Len() == 0 && sampleCount > 0) {
		return nil, bencherr.NewValidationError(bencherr.CodeEmptyIndex, "cannot sample from an empty index")
	}
	if !index.Frozen() {
		return nil, bencherr.NewInternalError("sample index is still being written", nil)
	}

	enabled := r.layouts.Enabled()
	stats := make([]*observability.LatencyStats, len(enabled))
	for i, l := range enabled {
		stats[i] = observability.NewLatencyStats(l.Name(), sampleCount)
	}

	r.logger.Printf("Benchmark: %d samples over %d records, %d layout(s)", sampleCount, index.Len(), len(enabled))
	start := r.now()
	samples := 0

	for i := 0; i < sampleCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := index.At(r.rng.IntN(index.Len()))

		for k, l := range enabled {
			t0 := r.now()
			ok, err := l.Verify(ctx, r.adapter, rec)
			elapsed := r.now().Sub(t0)
			if err != nil {
				return nil, bencherr.NewReadError(fmt.Sprintf("lookup in %s failed", l.Name()), err).
					WithDetails(map[string]interface{}{
						"layout": l.Name(),
						"sample": i,
					})
			}
			stats[k].Record(elapsed)
			if !ok {
				stats[k].RecordMismatch()
			}
		}
		samples++
	}

	results := &Results{
		Requested: sampleCount,
		Samples:   samples,
		Layouts:   make([]LayoutResult, len(enabled)),
		Elapsed:   r.now().Sub(start),
	}
	for k, l := range enabled {
		results.Layouts[k] = LayoutResult{
			Name:        l.Name(),
			Description: l.Description(),
			Stats:       stats[k].Snapshot(),
		}
	}
	r.logger.Printf("Benchmark finished in %v", results.Elapsed)
	return results, nil
}
