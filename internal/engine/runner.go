package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultConcurrency is the worker pool size when none is configured.
const DefaultConcurrency = 3

// Sink receives each finished target exactly once, including skipped
// ones. Implementations must be safe for concurrent use.
type Sink interface {
	Record(ctx context.Context, r TargetResult) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r TargetResult) error

// Record calls f.
func (f SinkFunc) Record(ctx context.Context, r TargetResult) error {
	return f(ctx, r)
}

// Config configures a Runner.
type Config struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`

	// TargetsPerSecond throttles how fast targets start. Zero disables
	// throttling.
	TargetsPerSecond float64 `yaml:"targets_per_second" mapstructure:"targets_per_second"`
}

// Runner processes targets concurrently.
type Runner struct {
	components  Components
	concurrency int
	limiter     *rate.Limiter
	sink        Sink
}

// Option configures a Runner.
type Option func(*Runner)

// WithSink sets the sink that receives every finished target.
func WithSink(s Sink) Option {
	return func(r *Runner) { r.sink = s }
}

// NewRunner creates a Runner. A non-positive concurrency falls back to
// DefaultConcurrency.
func NewRunner(components Components, cfg Config, opts ...Option) *Runner {
	r := &Runner{components: components, concurrency: cfg.Concurrency}
	if r.concurrency <= 0 {
		r.concurrency = DefaultConcurrency
	}
	if cfg.TargetsPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.TargetsPerSecond), 1)
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Concurrency returns the worker pool size.
func (r *Runner) Concurrency() int {
	return r.concurrency
}

// Run processes every target and returns one result per target, in input
// order. Targets not started before ctx is cancelled come back with
// Skipped set and no content. The error is ctx's error when the run was
// cancelled, or a summary of sink failures; results are returned either
// way.
func (r *Runner) Run(ctx context.Context, targets []Target) ([]TargetResult, error) {
	results := make([]TargetResult, len(targets))
	if len(targets) == 0 {
		return results, nil
	}

	zap.L().Info("engine: run starting",
		zap.Int("targets", len(targets)),
		zap.Int("concurrency", r.concurrency),
	)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	var completed, skipped, sinkFailed atomic.Int64

	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			log := zap.L().With(zap.String("target", t.ID))

			res, ok := r.process(gctx, t)
			if ok {
				completed.Add(1)
				log.Debug("engine: target complete",
					zap.Int("consensus", len(res.Consensus)),
					zap.Int("entities", len(res.Entities)),
					zap.Int("issues", len(res.Issues)),
				)
			} else {
				skipped.Add(1)
				log.Debug("engine: target skipped")
			}
			results[i] = res

			if r.sink != nil {
				if err := r.sink.Record(context.WithoutCancel(gctx), res); err != nil {
					sinkFailed.Add(1)
					log.Warn("engine: sink failed", zap.Error(err))
				}
			}
			return nil
		})
	}

	// Workers never return errors; failures are counted instead.
	_ = g.Wait()

	zap.L().Info("engine: run complete",
		zap.Int64("completed", completed.Load()),
		zap.Int64("skipped", skipped.Load()),
		zap.Int64("sink_failed", sinkFailed.Load()),
		zap.Duration("elapsed", time.Since(start)),
	)

	if err := ctx.Err(); err != nil {
		return results, eris.Wrap(err, "engine: run cancelled")
	}
	if n := sinkFailed.Load(); n > 0 {
		return results, eris.Errorf("engine: %d of %d results not recorded", n, len(targets))
	}
	return results, nil
}

// process runs one target unless the run was cancelled first.
func (r *Runner) process(ctx context.Context, t Target) (TargetResult, bool) {
	if ctx.Err() != nil {
		return TargetResult{TargetID: t.ID, Skipped: true}, false
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return TargetResult{TargetID: t.ID, Skipped: true}, false
		}
	}
	return r.components.Process(t), true
}
