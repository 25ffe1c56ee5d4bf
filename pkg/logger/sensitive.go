package logger

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

// SensitiveDataConfig configures masking of secrets and tokens in logs.
type SensitiveDataConfig struct {
	Enabled     bool              `mapstructure:"enabled"`
	MaskValue   string            `mapstructure:"mask_value"`
	PartialMask PartialMaskConfig `mapstructure:"partial_mask"`
}

// PartialMaskConfig configures partial masking behavior.
type PartialMaskConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	ShowFirst int  `mapstructure:"show_first"`
	ShowLast  int  `mapstructure:"show_last"`
	MinLength int  `mapstructure:"min_length"`
}

// SensitiveMasker masks secret values before they are logged.
type SensitiveMasker struct {
	cfg SensitiveDataConfig
}

var globalMasker atomic.Pointer[SensitiveMasker]

// InitMasker installs the global masker.
func InitMasker(cfg SensitiveDataConfig) {
	globalMasker.Store(NewSensitiveMasker(cfg))
}

// NewSensitiveMasker creates a new masker.
func NewSensitiveMasker(cfg SensitiveDataConfig) *SensitiveMasker {
	if cfg.MaskValue == "" {
		cfg.MaskValue = "***"
	}
	return &SensitiveMasker{cfg: cfg}
}

// MaskString masks a sensitive string value.
func (m *SensitiveMasker) MaskString(value string) string {
	if !m.cfg.Enabled || value == "" {
		return value
	}

	if m.cfg.PartialMask.Enabled && len(value) >= m.cfg.PartialMask.MinLength {
		return m.partialMask(value)
	}

	return m.cfg.MaskValue
}

func (m *SensitiveMasker) partialMask(value string) string {
	showFirst := m.cfg.PartialMask.ShowFirst
	showLast := m.cfg.PartialMask.ShowLast

	if showFirst+showLast >= len(value) {
		return m.cfg.MaskValue
	}

	return value[:showFirst] + m.cfg.MaskValue + value[len(value)-showLast:]
}

// MaskJWT keeps the JWT header readable and masks claims and signature.
func (m *SensitiveMasker) MaskJWT(token string) string {
	if !m.cfg.Enabled || token == "" {
		return token
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return m.cfg.MaskValue
	}

	return parts[0] + "." + m.cfg.MaskValue + "." + m.cfg.MaskValue
}

// MaskString masks value with the global masker. Without a masker the
// value is fully replaced.
func MaskString(value string) string {
	m := globalMasker.Load()
	if m == nil {
		if value == "" {
			return value
		}
		return "***"
	}
	return m.MaskString(value)
}

// Token creates a zap field for a token, applying JWT masking when the
// value looks like a JWT.
func Token(key, value string) zap.Field {
	m := globalMasker.Load()
	if m == nil {
		return zap.String(key, MaskString(value))
	}
	if strings.Count(value, ".") == 2 {
		return zap.String(key, m.MaskJWT(value))
	}
	return zap.String(key, m.MaskString(value))
}
