package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/your-org/credguard/internal/domain"
	"github.com/your-org/credguard/pkg/errors"
)

// MaxPinLength bounds the exhaustive candidate space at 10^12.
const MaxPinLength = 12

// MaxIdentityRange bounds identity_from..identity_to.
const MaxIdentityRange = 1 << 20

// ValidationError contains detailed information about a validation error.
type ValidationError struct {
	Field   string
	Message string
	Details []string
}

func (e ValidationError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("%s: %s\n    - %s", e.Field, e.Message, strings.Join(e.Details, "\n    - "))
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString("  ")
		sb.WriteString(err.Error())
		sb.WriteString("\n")
	}
	return sb.String()
}

// Unwrap lets callers match errors.ErrConfigInvalid.
func (e ValidationErrors) Unwrap() error {
	return errors.ErrConfigInvalid
}

// ConfigValidator validates configuration.
type ConfigValidator struct {
	errors ValidationErrors
}

// NewConfigValidator creates a new ConfigValidator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

func (v *ConfigValidator) add(field, format string, args ...any) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *ConfigValidator) result() error {
	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// ValidateServer validates the verifier service sections.
func (v *ConfigValidator) ValidateServer(cfg *Config) error {
	v.errors = nil

	switch cfg.Verifier.Mode {
	case "hardened", "legacy":
	default:
		v.add("verifier.mode", "must be hardened or legacy, got %q", cfg.Verifier.Mode)
	}
	if err := cfg.Verifier.KDF.Validate(); err != nil {
		v.add("verifier.kdf", "%v", err)
	}
	if cfg.Verifier.ResponseFloor < 0 {
		v.add("verifier.response_floor", "must not be negative")
	}
	if cfg.Credentials.Watch && cfg.Credentials.SeedsFile == "" {
		v.add("credentials.watch", "requires credentials.seeds_file")
	}
	if !strings.HasPrefix(cfg.Endpoints.Auth, "/") {
		v.add("endpoints.auth", "must start with /, got %q", cfg.Endpoints.Auth)
	}
	if cfg.RateLimit.Enabled {
		switch cfg.RateLimit.Store {
		case "memory", "redis":
		default:
			v.add("rate_limit.store", "must be memory or redis, got %q", cfg.RateLimit.Store)
		}
	}

	return v.result()
}

// ValidateProbe validates the timing probe section.
func (v *ConfigValidator) ValidateProbe(cfg *ProbeConfig) error {
	v.errors = nil

	if u, err := url.Parse(cfg.TargetURL); err != nil || u.Scheme == "" || u.Host == "" {
		v.add("probe.target_url", "must be an absolute URL, got %q", cfg.TargetURL)
	}
	switch domain.Phase(cfg.Phase) {
	case domain.PhaseIdentify, domain.PhaseExtract, domain.PhaseAll:
	default:
		v.add("probe.phase", "must be identify, extract or all, got %q", cfg.Phase)
	}
	if domain.Phase(cfg.Phase) == domain.PhaseExtract && cfg.Identity == 0 {
		v.add("probe.identity", "required when phase is extract")
	}
	if cfg.Identity == 0 {
		if cfg.IdentityFrom > cfg.IdentityTo {
			v.add("probe.identity_from", "must not exceed identity_to (%d > %d)", cfg.IdentityFrom, cfg.IdentityTo)
		} else if width := uint64(cfg.IdentityTo) - uint64(cfg.IdentityFrom); width >= MaxIdentityRange {
			v.add("probe.identity_to", "must be less than %d above identity_from, got %d", MaxIdentityRange, width)
		}
	}
	if cfg.SampleSize <= 0 || cfg.SampleSize%2 == 0 {
		v.add("probe.sample_size", "must be a positive odd number, got %d", cfg.SampleSize)
	}
	if cfg.SampleWorkers <= 0 {
		v.add("probe.sample_workers", "must be positive, got %d", cfg.SampleWorkers)
	}
	if cfg.Workers <= 0 {
		v.add("probe.workers", "must be positive, got %d", cfg.Workers)
	}
	if cfg.SampleTimeout <= 0 {
		v.add("probe.sample_timeout", "must be positive")
	}
	if cfg.SearchTimeout <= 0 {
		v.add("probe.search_timeout", "must be positive")
	}
	if cfg.Retries < 0 {
		v.add("probe.retries", "must not be negative")
	}
	if cfg.SpreadMultiplier < 0 {
		v.add("probe.spread_multiplier", "must not be negative")
	}
	if cfg.MinEffect < 0 {
		v.add("probe.min_effect", "must not be negative")
	}
	if cfg.PinLength < 1 || cfg.PinLength > MaxPinLength {
		v.add("probe.pin_length", "must be between 1 and %d, got %d", MaxPinLength, cfg.PinLength)
	}
	if cfg.BatchSize <= 0 {
		v.add("probe.batch_size", "must be positive, got %d", cfg.BatchSize)
	}
	if cfg.Sinks.File.Enabled && cfg.Sinks.File.Path == "" {
		v.add("probe.sinks.file.path", "required when the file sink is enabled")
	}
	if cfg.Sinks.Redis.Enabled && cfg.Sinks.Redis.Redis.Address == "" {
		v.add("probe.sinks.redis.redis.address", "required when the redis sink is enabled")
	}

	return v.result()
}
