package probe

import (
	"context"
	"fmt"
	"iter"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/your-org/credguard/internal/domain"
	"github.com/your-org/credguard/internal/service/metrics"
	"github.com/your-org/credguard/pkg/logger"
)

// Searcher defaults.
const (
	DefaultPinLength     = 8
	DefaultWorkers       = 10
	DefaultSearchTimeout = 3 * time.Second
	DefaultBatchSize     = 1000
	MaxPinLength         = 12
)

// DefaultCommonSecrets are tried before the exhaustive space.
var DefaultCommonSecrets = []string{
	"00000000", "11111111", "12345678", "87654321", "99999999", "00000001",
}

// Candidate outcomes recorded in metrics.
const (
	candidateAccepted = "accepted"
	candidateRejected = "rejected"
	candidateFailed   = "failed"
)

// Searcher enumerates candidate secrets for one identity until the target
// accepts one.
type Searcher struct {
	oracle    Oracle
	pinLength int
	common    []string
	workers   int
	retries   int
	batchSize int
	timeout   time.Duration
	metrics   *metrics.Metrics
}

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher)

// WithPinLength sets the length of the numeric space.
func WithPinLength(n int) SearcherOption {
	return func(s *Searcher) {
		if n > 0 && n <= MaxPinLength {
			s.pinLength = n
		}
	}
}

// WithCommonSecrets replaces the curated list tried first.
func WithCommonSecrets(secrets []string) SearcherOption {
	return func(s *Searcher) {
		if secrets != nil {
			s.common = secrets
		}
	}
}

// WithSearchWorkers bounds the candidates in flight.
func WithSearchWorkers(n int) SearcherOption {
	return func(s *Searcher) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithRetries sets how many times a failed candidate is retried.
func WithRetries(n int) SearcherOption {
	return func(s *Searcher) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// WithBatchSize sets how many candidates are dispatched between progress
// reports.
func WithBatchSize(n int) SearcherOption {
	return func(s *Searcher) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithSearchTimeout sets the per-request timeout.
func WithSearchTimeout(d time.Duration) SearcherOption {
	return func(s *Searcher) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSearcherMetrics sets the metrics sink.
func WithSearcherMetrics(m *metrics.Metrics) SearcherOption {
	return func(s *Searcher) {
		s.metrics = m
	}
}

// NewSearcher creates a Searcher.
func NewSearcher(oracle Oracle, opts ...SearcherOption) *Searcher {
	s := &Searcher{
		oracle:    oracle,
		pinLength: DefaultPinLength,
		common:    DefaultCommonSecrets,
		workers:   DefaultWorkers,
		retries:   1,
		batchSize: DefaultBatchSize,
		timeout:   DefaultSearchTimeout,
		metrics:   metrics.DefaultMetrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Candidates yields the curated list, the identity's own trailing digits,
// and then every zero-padded number of the configured length in ascending
// order. Each value is yielded once.
func (s *Searcher) Candidates(id domain.Identity) iter.Seq[string] {
	return func(yield func(string) bool) {
		seen := make(map[string]struct{}, len(s.common)+1)

		first := append(append([]string(nil), s.common...), s.identitySecret(id))
		for _, c := range first {
			if len(c) != s.pinLength {
				continue
			}
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			if !yield(c) {
				return
			}
		}

		total := uint64(math.Pow10(s.pinLength))
		for i := uint64(0); i < total; i++ {
			c := s.format(i)
			if _, dup := seen[c]; dup {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}

// identitySecret is the last pinLength digits of the identity, zero padded.
func (s *Searcher) identitySecret(id domain.Identity) string {
	n := uint64(id)
	if id < 0 {
		n = uint64(-id)
	}
	return s.format(n % uint64(math.Pow10(s.pinLength)))
}

func (s *Searcher) format(i uint64) string {
	return fmt.Sprintf("%0*d", s.pinLength, i)
}

// Search dispatches candidates to a bounded set of workers and stops at the
// first accepted one. Requests still in flight at that point are cancelled
// and whatever they return is ignored. Candidates that fail every retry are
// queued for one more pass once the space is drained. An exhausted space
// yields Found == false with a nil error, and Incomplete is set when some
// candidates were never answered. A cancelled ctx yields ctx.Err().
func (s *Searcher) Search(ctx context.Context, id domain.Identity) (domain.SearchResult, error) {
	start := time.Now()
	result := domain.SearchResult{Identity: id}

	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	run := &searchRun{id: id, cancel: cancel}
	failed := s.dispatch(ctx, searchCtx, run, s.Candidates(id))
	if len(failed) > 0 && !run.found() && ctx.Err() == nil {
		logger.WithContext(ctx).Info("retrying failed candidates",
			logger.Int64("user_id", int64(id)),
			logger.Int("count", len(failed)),
		)
		failed = s.dispatch(ctx, searchCtx, run, slices.Values(failed))
	}

	result.Attempts = int(run.attempts.Load())
	result.Failed = len(failed)
	result.Duration = time.Since(start)

	if run.found() {
		result.Secret = run.secret
		result.Found = true
		logger.WithContext(ctx).Info("secret recovered",
			logger.Int64("user_id", int64(id)),
			logger.Secret("pin", run.secret),
			logger.Int("attempts", result.Attempts),
			logger.Duration("duration", result.Duration),
		)
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	for range failed {
		s.metrics.RecordCandidate(candidateFailed)
	}
	if result.Failed > 0 {
		result.Incomplete = true
		logger.WithContext(ctx).Warn("search incomplete",
			logger.Int64("user_id", int64(id)),
			logger.Int("attempts", result.Attempts),
			logger.Int("abandoned", result.Failed),
		)
		return result, nil
	}

	logger.WithContext(ctx).Info("candidate space exhausted",
		logger.Int64("user_id", int64(id)),
		logger.Int("attempts", result.Attempts),
	)
	return result, nil
}

// searchRun is the state shared by the passes of one search.
type searchRun struct {
	id       domain.Identity
	cancel   context.CancelFunc
	once     sync.Once
	secret   string
	attempts atomic.Int64
	hit      atomic.Bool
}

func (r *searchRun) accept(c string) {
	r.once.Do(func() {
		r.secret = c
		r.hit.Store(true)
		r.cancel()
	})
}

func (r *searchRun) found() bool {
	return r.hit.Load()
}

// dispatch feeds candidates to the workers until they run out or one is
// accepted, and returns the candidates that failed every try.
func (s *Searcher) dispatch(ctx, searchCtx context.Context, run *searchRun, candidates iter.Seq[string]) []string {
	var (
		mu     sync.Mutex
		failed []string
	)

	jobs := make(chan string)
	g, gctx := errgroup.WithContext(searchCtx)

	// Dispatcher
	g.Go(func() error {
		defer close(jobs)
		dispatched := 0
		for c := range candidates {
			if gctx.Err() != nil {
				return nil
			}
			select {
			case jobs <- c:
			case <-gctx.Done():
				return nil
			}
			dispatched++
			if dispatched%s.batchSize == 0 {
				logger.WithContext(ctx).Debug("search progress",
					logger.Int64("user_id", int64(run.id)),
					logger.Int("dispatched", dispatched),
					logger.Int64("completed", run.attempts.Load()),
				)
			}
		}
		return nil
	})

	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			for c := range jobs {
				if gctx.Err() != nil {
					continue
				}
				accepted, ok := s.try(gctx, run.id, c)
				if !ok {
					if gctx.Err() == nil {
						mu.Lock()
						failed = append(failed, c)
						mu.Unlock()
					}
					continue
				}
				run.attempts.Add(1)
				if !accepted {
					s.metrics.RecordCandidate(candidateRejected)
					continue
				}
				s.metrics.RecordCandidate(candidateAccepted)
				run.accept(c)
			}
			return nil
		})
	}

	_ = g.Wait()
	return failed
}

// try verifies one candidate, retrying transport failures. ok is false
// when every try failed.
func (s *Searcher) try(ctx context.Context, id domain.Identity, candidate string) (accepted, ok bool) {
	for i := 0; i <= s.retries; i++ {
		if ctx.Err() != nil {
			return false, false
		}

		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		out, err := s.oracle.Attempt(callCtx, id, candidate)
		cancel()
		if err == nil {
			return out.Accepted, true
		}

		if ctx.Err() == nil {
			logger.WithContext(ctx).Debug("candidate attempt failed",
				logger.Int64("user_id", int64(id)),
				logger.Int("try", i+1),
				logger.Err(err),
			)
		}
	}
	return false, false
}
