package probe

import (
	"cmp"
	"math"
	"slices"

	"github.com/your-org/credguard/internal/domain"
	"github.com/your-org/credguard/pkg/errors"
	"github.com/your-org/credguard/pkg/stats"
)

// DefaultSpreadMultiplier is the number of MADs above the baseline an
// identity must reach to be flagged.
const DefaultSpreadMultiplier = 1.5

type detectOptions struct {
	minEffect float64
}

// DetectOption configures Detect.
type DetectOption func(*detectOptions)

// WithMinEffect additionally requires a flagged value to exceed
// baseline*(1+f). Zero disables the gate.
func WithMinEffect(f float64) DetectOption {
	return func(o *detectOptions) {
		if f > 0 {
			o.minEffect = f
		}
	}
}

// Detect flags identities whose statistic is above baseline + k*MAD, where
// baseline is the profile median. Flagged identities are ordered by
// descending excess, then ascending identity.
//
// When every value is identical the spread is zero and nothing is flagged.
func Detect(profile domain.TimingProfile, k float64, opts ...DetectOption) (domain.Detection, error) {
	if len(profile) == 0 {
		return domain.Detection{}, errors.ErrInsufficientData
	}

	var o detectOptions
	for _, opt := range opts {
		opt(&o)
	}

	values := profile.Values()
	baseline := stats.Median(values)
	spread := stats.MAD(values, baseline)
	threshold := baseline + k*spread
	floor := math.Inf(-1)
	if o.minEffect > 0 {
		floor = baseline * (1 + o.minEffect)
	}

	d := domain.Detection{
		Baseline:  baseline,
		Spread:    spread,
		Threshold: threshold,
		Flagged:   []domain.Anomaly{},
	}

	for _, id := range profile.Identities() {
		v := profile[id]
		if v > threshold && v > floor {
			d.Flagged = append(d.Flagged, domain.Anomaly{
				Identity: id,
				Value:    v,
				Delta:    v - baseline,
			})
		}
	}

	slices.SortStableFunc(d.Flagged, func(a, b domain.Anomaly) int {
		if c := cmp.Compare(b.Delta, a.Delta); c != 0 {
			return c
		}
		return cmp.Compare(a.Identity, b.Identity)
	})

	return d, nil
}
