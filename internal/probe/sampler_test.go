package probe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/credguard/internal/domain"
	pkgerrors "github.com/your-org/credguard/pkg/errors"
)

// scriptedOracle returns the elapsed values of its script in order per
// identity; a zero entry is a failed measurement.
type scriptedOracle struct {
	mu     sync.Mutex
	script map[domain.Identity][]time.Duration
	calls  map[domain.Identity]int
}

func newScriptedOracle(script map[domain.Identity][]time.Duration) *scriptedOracle {
	return &scriptedOracle{script: script, calls: make(map[domain.Identity]int)}
}

func (o *scriptedOracle) Attempt(_ context.Context, id domain.Identity, _ string) (Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	i := o.calls[id]
	o.calls[id]++

	steps := o.script[id]
	if len(steps) == 0 {
		return Outcome{}, errors.New("connection refused")
	}
	d := steps[i%len(steps)]
	if d == 0 {
		return Outcome{}, errors.New("timeout")
	}
	return Outcome{Elapsed: d}, nil
}

func ms(v ...int) []time.Duration {
	out := make([]time.Duration, len(v))
	for i, x := range v {
		out[i] = time.Duration(x) * time.Millisecond
	}
	return out
}

func TestSampler_MeasureUsesMedian(t *testing.T) {
	o := newScriptedOracle(map[domain.Identity][]time.Duration{
		1001: ms(10, 11, 500, 9, 10, 12, 10),
	})
	s := NewSampler(o, WithSampleSize(7))

	median, err := s.Measure(context.Background(), 1001, "00000000")
	require.NoError(t, err)
	assert.InDelta(t, 0.010, median, 1e-9)
}

func TestSampler_FailedSamplesExcluded(t *testing.T) {
	o := newScriptedOracle(map[domain.Identity][]time.Duration{
		1001: ms(10, 0, 30, 0, 20, 0, 0),
	})
	s := NewSampler(o, WithSampleSize(7))

	sample, err := s.Sample(context.Background(), 1001, "00000000")
	require.NoError(t, err)
	assert.Equal(t, 4, sample.Failed)
	assert.Equal(t, ms(10, 30, 20), sample.Elapsed)

	median, err := s.Measure(context.Background(), 1001, "00000000")
	require.NoError(t, err)
	assert.InDelta(t, 0.020, median, 1e-9)
}

func TestSampler_AllFailed(t *testing.T) {
	o := newScriptedOracle(nil)
	s := NewSampler(o, WithSampleSize(3))

	_, err := s.Measure(context.Background(), 1001, "00000000")
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrNoSamples))
}

func TestSampler_TimeoutIsMissingSample(t *testing.T) {
	var calls atomic.Int32
	o := OracleFunc(func(ctx context.Context, id domain.Identity, secret string) (Outcome, error) {
		if calls.Add(1) == 2 {
			<-ctx.Done()
			return Outcome{}, ctx.Err()
		}
		return Outcome{Elapsed: 5 * time.Millisecond}, nil
	})
	s := NewSampler(o, WithSampleSize(3), WithSampleTimeout(20*time.Millisecond))

	sample, err := s.Sample(context.Background(), 1001, "00000000")
	require.NoError(t, err)
	assert.Equal(t, 1, sample.Failed)
	assert.Len(t, sample.Elapsed, 2)
}

func TestSampler_ProfileDropsFailedIdentities(t *testing.T) {
	o := newScriptedOracle(map[domain.Identity][]time.Duration{
		1000: ms(10),
		1001: ms(40),
		// 1002 always fails
	})
	s := NewSampler(o, WithSampleSize(3), WithSamplerWorkers(2))

	p, err := s.Profile(context.Background(), []domain.Identity{1000, 1001, 1002}, "00000000")
	require.NoError(t, err)

	assert.Len(t, p, 2)
	assert.InDelta(t, 0.010, p[1000], 1e-9)
	assert.InDelta(t, 0.040, p[1001], 1e-9)
	assert.NotContains(t, p, domain.Identity(1002))
}

func TestSampler_EmptyProfile(t *testing.T) {
	s := NewSampler(newScriptedOracle(nil), WithSampleSize(1))

	_, err := s.Profile(context.Background(), []domain.Identity{1, 2, 3}, "00000000")
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrInsufficientData))

	var structured *pkgerrors.Error
	require.True(t, pkgerrors.As(err, &structured))
	assert.Equal(t, pkgerrors.CodeInsufficientData, structured.Code)
}

func TestSampler_Concurrency(t *testing.T) {
	const workers = 3

	var (
		mu          sync.Mutex
		perIdentity = make(map[domain.Identity]int)
		inFlight    int
		maxInFlight int
		serialBreak bool
	)

	o := OracleFunc(func(ctx context.Context, id domain.Identity, secret string) (Outcome, error) {
		mu.Lock()
		perIdentity[id]++
		if perIdentity[id] > 1 {
			serialBreak = true
		}
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(2 * time.Millisecond)

		mu.Lock()
		perIdentity[id]--
		inFlight--
		mu.Unlock()
		return Outcome{Elapsed: time.Millisecond}, nil
	})

	ids := make([]domain.Identity, 12)
	for i := range ids {
		ids[i] = domain.Identity(1000 + i)
	}

	s := NewSampler(o, WithSampleSize(3), WithSamplerWorkers(workers))
	p, err := s.Profile(context.Background(), ids, "00000000")
	require.NoError(t, err)

	assert.Len(t, p, len(ids))
	assert.False(t, serialBreak, "samples of one identity overlapped")
	assert.LessOrEqual(t, maxInFlight, workers)
}

func TestSampler_DefaultIsSerial(t *testing.T) {
	var inFlight, maxInFlight atomic.Int64
	o := OracleFunc(func(ctx context.Context, id domain.Identity, secret string) (Outcome, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		time.Sleep(time.Millisecond)
		return Outcome{Elapsed: time.Millisecond}, nil
	})

	ids := []domain.Identity{1, 2, 3, 4, 5, 6}
	_, err := NewSampler(o, WithSampleSize(3)).Profile(context.Background(), ids, "00000000")
	require.NoError(t, err)
	assert.Equal(t, int64(1), maxInFlight.Load())
}

func TestSampler_ProfileCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSampler(newScriptedOracle(map[domain.Identity][]time.Duration{1: ms(1)}))
	_, err := s.Profile(ctx, []domain.Identity{1}, "00000000")
	assert.ErrorIs(t, err, context.Canceled)
}
