package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/your-org/credguard/internal/domain"
	"github.com/your-org/credguard/internal/service/metrics"
	"github.com/your-org/credguard/pkg/errors"
	"github.com/your-org/credguard/pkg/logger"
	"github.com/your-org/credguard/pkg/stats"
)

// Sampler defaults.
const (
	DefaultSampleSize    = 7
	DefaultSampleWorkers = 1
	DefaultSampleTimeout = 5 * time.Second
)

// Sampler measures verification latency per identity.
type Sampler struct {
	oracle     Oracle
	sampleSize int
	workers    int
	timeout    time.Duration
	metrics    *metrics.Metrics
}

// SamplerOption configures a Sampler.
type SamplerOption func(*Sampler)

// WithSampleSize sets the number of measurements per identity.
func WithSampleSize(n int) SamplerOption {
	return func(s *Sampler) {
		if n > 0 {
			s.sampleSize = n
		}
	}
}

// WithSamplerWorkers bounds the identities measured concurrently.
func WithSamplerWorkers(n int) SamplerOption {
	return func(s *Sampler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithSampleTimeout sets the per-request timeout.
func WithSampleTimeout(d time.Duration) SamplerOption {
	return func(s *Sampler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSamplerMetrics sets the metrics sink.
func WithSamplerMetrics(m *metrics.Metrics) SamplerOption {
	return func(s *Sampler) {
		s.metrics = m
	}
}

// NewSampler creates a Sampler.
func NewSampler(oracle Oracle, opts ...SamplerOption) *Sampler {
	s := &Sampler{
		oracle:     oracle,
		sampleSize: DefaultSampleSize,
		workers:    DefaultSampleWorkers,
		timeout:    DefaultSampleTimeout,
		metrics:    metrics.DefaultMetrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sample takes the configured number of measurements for one identity.
// Measurements run one after another; a failed measurement is logged and
// left out rather than counted as zero.
func (s *Sampler) Sample(ctx context.Context, id domain.Identity, secret string) (domain.TimingSample, error) {
	sample := domain.TimingSample{
		Identity: id,
		Elapsed:  make([]time.Duration, 0, s.sampleSize),
	}

	for i := 0; i < s.sampleSize; i++ {
		if err := ctx.Err(); err != nil {
			return sample, err
		}

		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		out, err := s.oracle.Attempt(callCtx, id, secret)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return sample, ctx.Err()
			}
			sample.Failed++
			s.metrics.RecordSample(false)
			logger.WithContext(ctx).Warn("measurement failed",
				logger.Int64("user_id", int64(id)),
				logger.Int("attempt", i+1),
				logger.Err(err),
			)
			continue
		}

		sample.Elapsed = append(sample.Elapsed, out.Elapsed)
		s.metrics.RecordSample(true)
	}

	if len(sample.Elapsed) == 0 {
		return sample, fmt.Errorf("identity %d: %w", id, errors.ErrNoSamples)
	}
	return sample, nil
}

// Measure returns the median latency for one identity in seconds.
func (s *Sampler) Measure(ctx context.Context, id domain.Identity, secret string) (float64, error) {
	sample, err := s.Sample(ctx, id, secret)
	if err != nil {
		return 0, err
	}
	median, _ := stats.MedianDuration(sample.Elapsed)
	return median.Seconds(), nil
}

// Profile measures every identity and returns the complete profile.
// Identities whose every measurement failed are left out. The profile is
// only returned once all identities are done.
func (s *Sampler) Profile(ctx context.Context, ids []domain.Identity, secret string) (domain.TimingProfile, error) {
	var (
		mu      sync.Mutex
		profile = make(domain.TimingProfile, len(ids))
		failed  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, id := range ids {
		g.Go(func() error {
			median, err := s.Measure(gctx, id, secret)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.WithContext(ctx).Warn("identity dropped from profile",
					logger.Int64("user_id", int64(id)),
					logger.Err(err),
				)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			profile[id] = median
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.WithContext(ctx).Info("timing profile complete",
		logger.Int("identities", len(ids)),
		logger.Int("measured", len(profile)),
		logger.Int("dropped", failed),
	)

	if len(profile) == 0 {
		return nil, errors.New(errors.CodeInsufficientData, "no identity produced a measurement", errors.ErrInsufficientData).
			WithDetail("identities", len(ids))
	}
	return profile, nil
}
