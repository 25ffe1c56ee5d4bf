package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the verifier service and the
// timing probe.
type Metrics struct {
	// Verification metrics
	VerificationsTotal   *prometheus.CounterVec
	VerificationDuration *prometheus.HistogramVec

	// Credential store metrics
	SnapshotReloadsTotal *prometheus.CounterVec
	CredentialRecords    prometheus.Gauge

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Probe metrics
	ProbeSamplesTotal    *prometheus.CounterVec
	ProbeCandidatesTotal *prometheus.CounterVec
	ProbePhaseDuration   *prometheus.HistogramVec
	ProbeFlagged         prometheus.Gauge
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics *Metrics

func init() {
	DefaultMetrics = NewMetrics()
}

// NewMetrics creates and registers all metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Verification metrics
		VerificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "credguard",
				Name:      "verifications_total",
				Help:      "Total number of credential verifications",
			},
			[]string{"mode", "outcome"},
		),
		VerificationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "credguard",
				Name:      "verification_duration_seconds",
				Help:      "Credential verification duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"mode"},
		),

		// Credential store metrics
		SnapshotReloadsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "credguard",
				Subsystem: "credstore",
				Name:      "reloads_total",
				Help:      "Total number of credential snapshot reloads",
			},
			[]string{"result"},
		),
		CredentialRecords: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "credguard",
				Subsystem: "credstore",
				Name:      "records",
				Help:      "Number of records in the current credential snapshot",
			},
		),

		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "credguard",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "credguard",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Probe metrics
		ProbeSamplesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "credguard",
				Subsystem: "probe",
				Name:      "samples_total",
				Help:      "Total number of timing samples taken",
			},
			[]string{"result"},
		),
		ProbeCandidatesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "credguard",
				Subsystem: "probe",
				Name:      "candidates_total",
				Help:      "Total number of secret candidates tried",
			},
			[]string{"result"},
		),
		ProbePhaseDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "credguard",
				Subsystem: "probe",
				Name:      "phase_duration_seconds",
				Help:      "Campaign phase duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
			},
			[]string{"phase"},
		),
		ProbeFlagged: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "credguard",
				Subsystem: "probe",
				Name:      "flagged_identities",
				Help:      "Number of identities flagged by the last detection",
			},
		),
	}
}

// RecordVerification records one verification outcome.
func (m *Metrics) RecordVerification(mode, outcome string, d time.Duration) {
	m.VerificationsTotal.WithLabelValues(mode, outcome).Inc()
	m.VerificationDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// RecordSnapshotReload records a credential reload and the new table size.
func (m *Metrics) RecordSnapshotReload(success bool, records int) {
	result := "failure"
	if success {
		result = "success"
		m.CredentialRecords.Set(float64(records))
	}
	m.SnapshotReloadsTotal.WithLabelValues(result).Inc()
}

// RecordSample records one timing measurement.
func (m *Metrics) RecordSample(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.ProbeSamplesTotal.WithLabelValues(result).Inc()
}

// RecordCandidate records one candidate attempt; result is accepted,
// rejected or failed.
func (m *Metrics) RecordCandidate(result string) {
	m.ProbeCandidatesTotal.WithLabelValues(result).Inc()
}

// RecordPhase records how long a campaign phase took.
func (m *Metrics) RecordPhase(phase string, d time.Duration) {
	m.ProbePhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// SetFlagged records the size of the last flagged set.
func (m *Metrics) SetFlagged(n int) {
	m.ProbeFlagged.Set(float64(n))
}
