package verifier

import (
	"crypto/rand"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/credguard/internal/domain"
	"github.com/your-org/credguard/internal/service/credstore"
	"github.com/your-org/credguard/internal/service/kdf"
	"github.com/your-org/credguard/pkg/stats"
)

// recordingReader captures every salt drawn by the deriver.
type recordingReader struct {
	mu    sync.Mutex
	src   io.Reader
	draws [][]byte
}

func (r *recordingReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	r.mu.Lock()
	r.draws = append(r.draws, append([]byte(nil), p[:n]...))
	r.mu.Unlock()
	return n, err
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("no entropy")
}

func newStore(t *testing.T, iterations int, opts ...kdf.Option) (*credstore.Store, *kdf.Deriver) {
	t.Helper()
	d, err := kdf.New(kdf.Params{Iterations: iterations, KeyLength: 32, SaltLength: 16}, opts...)
	require.NoError(t, err)
	s, err := credstore.New(d, credstore.DefaultSeeds())
	require.NoError(t, err)
	return s, d
}

func req(id domain.Identity, secret string) domain.VerificationRequest {
	return domain.VerificationRequest{Identity: id, Secret: secret, WellFormed: true}
}

// =============================================================================
// Correctness Tests
// =============================================================================

func TestVerifiers_Correctness(t *testing.T) {
	store, d := newStore(t, 50)

	verifiers := map[string]Verifier{
		ModeHardened: NewHardened(store, d, ""),
		ModeLegacy:   NewLegacy(store, d),
	}

	tests := []struct {
		name     string
		req      domain.VerificationRequest
		expected domain.Outcome
	}{
		{"1001 correct", req(1001, "12345678"), domain.Accepted},
		{"1002 correct", req(1002, "87654321"), domain.Accepted},
		{"1001 wrong", req(1001, "87654321"), domain.Rejected},
		{"1002 prefix", req(1002, "8765432"), domain.Rejected},
		{"unknown", req(9999, "12345678"), domain.Rejected},
		{"unknown with dummy secret", req(9999, DefaultDummySecret), domain.Rejected},
		{"empty secret", req(1001, ""), domain.Rejected},
		{"malformed", domain.VerificationRequest{Identity: 1001, Secret: "12345678"}, domain.Rejected},
	}

	for mode, v := range verifiers {
		for _, tt := range tests {
			t.Run(mode+"/"+tt.name, func(t *testing.T) {
				assert.Equal(t, tt.expected, v.Verify(tt.req).Outcome)
			})
		}
	}
}

func TestNew_Modes(t *testing.T) {
	store, d := newStore(t, 1)

	v, err := New(Config{}, store, d)
	require.NoError(t, err)
	assert.Equal(t, ModeHardened, v.Mode())

	v, err = New(Config{Mode: ModeLegacy}, store, d)
	require.NoError(t, err)
	assert.Equal(t, ModeLegacy, v.Mode())

	_, err = New(Config{Mode: "lenient"}, store, d)
	assert.Error(t, err)
}

func TestHardened_FollowsSnapshotSwap(t *testing.T) {
	store, d := newStore(t, 10)
	v := NewHardened(store, d, "")

	require.True(t, v.Verify(req(1001, "12345678")).Outcome.IsAccepted())

	next, err := credstore.Build(d, "rotated", []credstore.Seed{{Identity: 1001, Secret: "11111111"}})
	require.NoError(t, err)
	store.Swap(next)

	assert.False(t, v.Verify(req(1001, "12345678")).Outcome.IsAccepted())
	assert.True(t, v.Verify(req(1001, "11111111")).Outcome.IsAccepted())
}

// =============================================================================
// Decoy Tests
// =============================================================================

func TestHardened_FreshDecoySaltPerRequest(t *testing.T) {
	src := &recordingReader{src: rand.Reader}
	store, d := newStore(t, 10)

	// Provision with the default source, then draw decoys from the recorder.
	decoyDeriver, err := kdf.New(d.Params(), kdf.WithRandom(src))
	require.NoError(t, err)
	v := NewHardened(store, decoyDeriver, "")

	for _, id := range []domain.Identity{9999, 9999, 1001, 1002, 9999} {
		v.Verify(req(id, "00000000"))
	}

	require.Len(t, src.draws, 5, "one decoy salt per request, known or unknown")
	seen := make(map[string]bool)
	for _, salt := range src.draws {
		assert.Len(t, salt, 16)
		assert.False(t, seen[string(salt)], "decoy salt reused")
		seen[string(salt)] = true
	}

	for _, id := range store.Snapshot().Identities() {
		rec, _ := store.Snapshot().Lookup(id)
		assert.False(t, seen[string(rec.Salt)], "decoy salt equals a record salt")
	}
}

func TestHardened_EntropyFailureRejects(t *testing.T) {
	store, d := newStore(t, 10)
	broken, err := kdf.New(d.Params(), kdf.WithRandom(failingReader{}))
	require.NoError(t, err)

	v := NewHardened(store, broken, "")

	assert.False(t, v.Verify(req(1001, "12345678")).Outcome.IsAccepted())
}

// =============================================================================
// Timing Tests
// =============================================================================

const timingIterations = 20000

func medianLatency(v Verifier, r domain.VerificationRequest, n int) float64 {
	samples := make([]float64, n)
	for i := range samples {
		start := time.Now()
		v.Verify(r)
		samples[i] = float64(time.Since(start))
	}
	return stats.Median(samples)
}

// interleaved measures a and b alternately so drift affects both equally.
func interleaved(v Verifier, a, b domain.VerificationRequest, rounds int) (float64, float64) {
	var as, bs []float64
	for range rounds {
		as = append(as, medianLatency(v, a, 3))
		bs = append(bs, medianLatency(v, b, 3))
	}
	return stats.Median(as), stats.Median(bs)
}

func relDiff(a, b float64) float64 {
	return math.Abs(a-b) / math.Max(a, b)
}

func TestHardened_TimingInvariance(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	store, d := newStore(t, timingIterations)
	v := NewHardened(store, d, "")
	v.Verify(req(1001, "warmup"))

	valid, unknown := interleaved(v, req(1001, "00000000"), req(9999, "00000000"), 9)

	assert.Less(t, relDiff(valid, unknown), 0.25,
		"valid=%v unknown=%v", time.Duration(valid), time.Duration(unknown))
}

func TestHardened_MalformedCostsFullPath(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	store, d := newStore(t, timingIterations)
	v := NewHardened(store, d, "")
	v.Verify(req(1001, "warmup"))

	malformed := domain.VerificationRequest{Identity: 0}
	valid, bad := interleaved(v, req(1001, "00000000"), malformed, 9)

	assert.Less(t, relDiff(valid, bad), 0.25,
		"valid=%v malformed=%v", time.Duration(valid), time.Duration(bad))
}

func TestLegacy_LeaksIdentity(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	store, d := newStore(t, timingIterations)
	v := NewLegacy(store, d)
	v.Verify(req(1001, "warmup"))

	valid, unknown := interleaved(v, req(1001, "00000000"), req(9999, "00000000"), 9)

	// The same tolerance the hardened verifier meets must fail here.
	assert.Greater(t, relDiff(valid, unknown), 0.25)
	assert.Greater(t, valid, 10*unknown)
}

func TestDecoyCostParity(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	_, d := newStore(t, timingIterations)
	salt, err := d.RandomSalt()
	require.NoError(t, err)
	decoySalt, err := d.RandomSalt()
	require.NoError(t, err)

	measure := func(secret string, salt []byte) float64 {
		samples := make([]float64, 15)
		for i := range samples {
			start := time.Now()
			d.Derive([]byte(secret), salt)
			samples[i] = float64(time.Since(start))
		}
		return stats.Median(samples)
	}

	realCost := measure("12345678", salt)
	decoy := measure(DefaultDummySecret, decoySalt)

	assert.Less(t, relDiff(realCost, decoy), 0.25)
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkHardened_Known(b *testing.B) {
	d, _ := kdf.New(kdf.DefaultParams())
	store, _ := credstore.New(d, nil)
	v := NewHardened(store, d, "")
	r := req(1001, "00000000")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v.Verify(r)
	}
}

func BenchmarkHardened_Unknown(b *testing.B) {
	d, _ := kdf.New(kdf.DefaultParams())
	store, _ := credstore.New(d, nil)
	v := NewHardened(store, d, "")
	r := req(9999, "00000000")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v.Verify(r)
	}
}
