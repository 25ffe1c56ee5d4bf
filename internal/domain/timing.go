package domain

import (
	"slices"
	"time"
)

// TimingSample holds the raw measurements for one identity. It is reduced
// to a single statistic and then discarded.
type TimingSample struct {
	Identity Identity
	Elapsed  []time.Duration

	// Failed counts measurements that timed out or errored. They are not
	// part of Elapsed.
	Failed int
}

// TimingProfile maps identity to its robust timing statistic in seconds.
// It is only handed to analysis once every identity has been sampled.
type TimingProfile map[Identity]float64

// Identities returns the profile keys in ascending order.
func (p TimingProfile) Identities() []Identity {
	ids := make([]Identity, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Values returns the statistics in ascending identity order.
func (p TimingProfile) Values() []float64 {
	ids := p.Identities()
	values := make([]float64, len(ids))
	for i, id := range ids {
		values[i] = p[id]
	}
	return values
}

// Anomaly is an identity flagged by the detector.
type Anomaly struct {
	Identity Identity `json:"user_id" yaml:"user_id"`
	Value    float64  `json:"value" yaml:"value"`
	// Delta is Value minus the baseline
	Delta float64 `json:"delta" yaml:"delta"`
}

// Detection is the outcome of one anomaly analysis. Flagged is ordered best
// candidate first.
type Detection struct {
	Baseline  float64   `json:"baseline" yaml:"baseline"`
	Spread    float64   `json:"spread" yaml:"spread"`
	Threshold float64   `json:"threshold" yaml:"threshold"`
	Flagged   []Anomaly `json:"flagged" yaml:"flagged"`
}

// Best returns the highest-ranked flagged identity.
func (d Detection) Best() (Identity, bool) {
	if len(d.Flagged) == 0 {
		return 0, false
	}
	return d.Flagged[0].Identity, true
}

// IsFlagged reports whether id was flagged.
func (d Detection) IsFlagged(id Identity) bool {
	return slices.ContainsFunc(d.Flagged, func(a Anomaly) bool { return a.Identity == id })
}

// FlaggedIdentities returns the flagged identities in rank order.
func (d Detection) FlaggedIdentities() []Identity {
	ids := make([]Identity, len(d.Flagged))
	for i, a := range d.Flagged {
		ids[i] = a.Identity
	}
	return ids
}
