package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/your-org/credguard/internal/service/credstore"
	"github.com/your-org/credguard/internal/service/kdf"
	"github.com/your-org/credguard/internal/service/token"
	"github.com/your-org/credguard/pkg/logger"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// CREDGUARD_VERIFIER_MODE=legacy.
const EnvPrefix = "CREDGUARD"

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Endpoints   EndpointsConfig   `mapstructure:"endpoints"`
	Verifier    VerifierConfig    `mapstructure:"verifier"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Token       token.Config      `mapstructure:"token"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Logging     logger.Config     `mapstructure:"logging"`
	Probe       ProbeConfig       `mapstructure:"probe"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	HTTP HTTPServerConfig `mapstructure:"http"`
}

// HTTPServerConfig holds HTTP server settings.
type HTTPServerConfig struct {
	Addr           string        `mapstructure:"addr" jsonschema:"description=Listen address,default=:5000"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" jsonschema:"description=Per-request handler timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes" jsonschema:"description=Largest accepted request body"`

	// TrustProxyHeaders takes the client address from X-Forwarded-For or
	// X-Real-IP. Enable only behind a proxy that sets them.
	TrustProxyHeaders bool `mapstructure:"trust_proxy_headers"`
}

// EndpointsConfig holds configurable endpoint paths.
type EndpointsConfig struct {
	Auth    string `mapstructure:"auth"`
	Health  string `mapstructure:"health"`
	Ready   string `mapstructure:"ready"`
	Live    string `mapstructure:"live"`
	Metrics string `mapstructure:"metrics"`
}

// VerifierConfig holds credential verification settings.
type VerifierConfig struct {
	// Mode is hardened or legacy. Legacy leaks identity validity through
	// latency and exists only as a measurement baseline.
	Mode        string     `mapstructure:"mode" jsonschema:"enum=hardened,enum=legacy,default=hardened"`
	DummySecret string     `mapstructure:"dummy_secret" jsonschema:"default=00000000"`
	KDF         kdf.Params `mapstructure:"kdf"`

	// ResponseFloor pads every verification response to at least this
	// duration. Zero disables padding.
	ResponseFloor time.Duration `mapstructure:"response_floor"`
}

// CredentialsConfig holds credential provisioning settings.
type CredentialsConfig struct {
	// SeedsFile is a YAML file of seeds; it takes precedence over Seeds.
	SeedsFile string           `mapstructure:"seeds_file"`
	Seeds     []credstore.Seed `mapstructure:"seeds"`

	// Watch reloads SeedsFile on change.
	Watch         bool          `mapstructure:"watch"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address   string `mapstructure:"address" jsonschema:"default=localhost:6379"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// RateLimitConfig holds rate limiting for the verification route. Limits
// are keyed by client address, never by identity.
type RateLimitConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Rate    string      `mapstructure:"rate" jsonschema:"description=ulule/limiter formatted rate e.g. 100-S,default=100-S"`
	Store   string      `mapstructure:"store" jsonschema:"enum=memory,enum=redis,default=memory"`
	Redis   RedisConfig `mapstructure:"redis"`
	Headers bool        `mapstructure:"headers" jsonschema:"description=Send X-RateLimit-* headers,default=true"`
}

// CircuitBreakerConfig guards the harness's calls to the target.
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled" jsonschema:"default=true"`
	FailureThreshold int           `mapstructure:"failure_threshold" jsonschema:"description=Consecutive failures that open the breaker,default=20"`
	MaxRequests      uint32        `mapstructure:"max_requests" jsonschema:"description=Requests allowed while half-open,default=1"`
	Interval         time.Duration `mapstructure:"interval" jsonschema:"description=Closed-state count reset period (0 keeps counts)"`
	Timeout          time.Duration `mapstructure:"timeout" jsonschema:"description=Open-state duration,default=10s"`
	LogStateChanges  bool          `mapstructure:"log_state_changes" jsonschema:"default=true"`
}

// ProbeConfig holds timing probe settings.
type ProbeConfig struct {
	TargetURL string `mapstructure:"target_url" jsonschema:"default=http://localhost:5000"`
	AuthPath  string `mapstructure:"auth_path" jsonschema:"default=/auth"`

	// Phase is identify, extract or all.
	Phase string `mapstructure:"phase" jsonschema:"enum=identify,enum=extract,enum=all,default=all"`

	// Identity skips identification when non-zero.
	Identity int64 `mapstructure:"identity"`

	IdentityFrom    int64   `mapstructure:"identity_from" jsonschema:"default=1000"`
	IdentityTo      int64   `mapstructure:"identity_to" jsonschema:"default=2000"`
	ExtraIdentities []int64 `mapstructure:"extra_identities"`

	ProbeSecret      string        `mapstructure:"probe_secret" jsonschema:"default=00000000"`
	SampleSize       int           `mapstructure:"sample_size" jsonschema:"description=Samples per identity (odd),default=7"`
	SampleWorkers    int           `mapstructure:"sample_workers" jsonschema:"description=Identities measured concurrently during identification,default=1"`
	Workers          int           `mapstructure:"workers" jsonschema:"description=Concurrent candidate attempts during search,default=10"`
	SampleTimeout    time.Duration `mapstructure:"sample_timeout" jsonschema:"default=5s"`
	SearchTimeout    time.Duration `mapstructure:"search_timeout" jsonschema:"default=3s"`
	Retries          int           `mapstructure:"retries" jsonschema:"description=Retries per candidate"`
	SpreadMultiplier float64       `mapstructure:"spread_multiplier" jsonschema:"default=1.5"`
	MinEffect        float64       `mapstructure:"min_effect" jsonschema:"description=Minimum relative excess over the baseline,default=0.5"`

	PinLength     int      `mapstructure:"pin_length" jsonschema:"default=8,minimum=1,maximum=12"`
	CommonSecrets []string `mapstructure:"common_secrets"`
	BatchSize     int      `mapstructure:"batch_size" jsonschema:"default=1000"`

	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Report         ReportConfig         `mapstructure:"report"`
	Sinks          SinksConfig          `mapstructure:"sinks"`
}

// ReportConfig controls the campaign report.
type ReportConfig struct {
	// Path is written as YAML for .yaml/.yml and JSON otherwise. Empty
	// disables the report.
	Path string `mapstructure:"path"`
}

// SinksConfig selects where extraction results go.
type SinksConfig struct {
	File  FileSinkConfig  `mapstructure:"file"`
	Redis RedisSinkConfig `mapstructure:"redis"`
	Log   LogSinkConfig   `mapstructure:"log"`
}

// FileSinkConfig writes the result as a JSON document.
type FileSinkConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" jsonschema:"default=timing_attack_results.json"`
}

// RedisSinkConfig stores the result under a Redis key.
type RedisSinkConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Redis   RedisConfig   `mapstructure:"redis"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// LogSinkConfig logs the result.
type LogSinkConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load loads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/credguard")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	// Read environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration produced by the defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Defaults are static and always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http.addr", ":5000")
	v.SetDefault("server.http.read_timeout", "10s")
	v.SetDefault("server.http.write_timeout", "10s")
	v.SetDefault("server.http.idle_timeout", "120s")
	v.SetDefault("server.http.request_timeout", "30s")
	v.SetDefault("server.http.max_header_bytes", 1<<20) // 1MB
	v.SetDefault("server.http.max_body_bytes", 4<<10)   // 4KB

	// Endpoints defaults
	v.SetDefault("endpoints.auth", "/auth")
	v.SetDefault("endpoints.health", "/health")
	v.SetDefault("endpoints.ready", "/ready")
	v.SetDefault("endpoints.live", "/live")
	v.SetDefault("endpoints.metrics", "/metrics")

	// Verifier defaults
	v.SetDefault("verifier.mode", "hardened")
	v.SetDefault("verifier.dummy_secret", "00000000")
	v.SetDefault("verifier.kdf.iterations", kdf.DefaultIterations)
	v.SetDefault("verifier.kdf.key_length", kdf.DefaultKeyLength)
	v.SetDefault("verifier.kdf.salt_length", kdf.DefaultSaltLength)
	v.SetDefault("verifier.response_floor", "0s")

	// Credentials defaults
	v.SetDefault("credentials.watch", false)
	v.SetDefault("credentials.watch_debounce", "200ms")

	// Token defaults
	v.SetDefault("token.issuer", "credguard")
	v.SetDefault("token.ttl", "15m")

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.rate", "100-S")
	v.SetDefault("rate_limit.store", "memory")
	v.SetDefault("rate_limit.redis.address", "localhost:6379")
	v.SetDefault("rate_limit.redis.key_prefix", "credguard:ratelimit:")
	v.SetDefault("rate_limit.headers", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_caller", true)
	v.SetDefault("logging.mask_secrets", true)

	// Probe defaults
	v.SetDefault("probe.target_url", "http://localhost:5000")
	v.SetDefault("probe.auth_path", "/auth")
	v.SetDefault("probe.phase", "all")
	v.SetDefault("probe.identity_from", 1000)
	v.SetDefault("probe.identity_to", 2000)
	v.SetDefault("probe.probe_secret", "00000000")
	v.SetDefault("probe.sample_size", 7)
	v.SetDefault("probe.sample_workers", 1)
	v.SetDefault("probe.workers", 10)
	v.SetDefault("probe.sample_timeout", "5s")
	v.SetDefault("probe.search_timeout", "3s")
	v.SetDefault("probe.retries", 1)
	v.SetDefault("probe.spread_multiplier", 1.5)
	v.SetDefault("probe.min_effect", 0.5)
	v.SetDefault("probe.pin_length", 8)
	v.SetDefault("probe.common_secrets", []string{
		"00000000", "11111111", "12345678", "87654321", "99999999", "00000001",
	})
	v.SetDefault("probe.batch_size", 1000)
	v.SetDefault("probe.circuit_breaker.enabled", true)
	v.SetDefault("probe.circuit_breaker.max_requests", 1)
	v.SetDefault("probe.circuit_breaker.interval", "0s")
	v.SetDefault("probe.circuit_breaker.timeout", "10s")
	v.SetDefault("probe.circuit_breaker.failure_threshold", 20)
	v.SetDefault("probe.circuit_breaker.log_state_changes", true)
	v.SetDefault("probe.sinks.file.enabled", true)
	v.SetDefault("probe.sinks.file.path", "timing_attack_results.json")
	v.SetDefault("probe.sinks.redis.enabled", false)
	v.SetDefault("probe.sinks.redis.redis.address", "localhost:6379")
	v.SetDefault("probe.sinks.redis.redis.key_prefix", "credguard:results:")
	v.SetDefault("probe.sinks.redis.ttl", "0s")
	v.SetDefault("probe.sinks.log.enabled", true)
}
