// Package config loads the process configuration once at startup. Values are
// resolved in priority order: OS environment, then a dotenv file, then AWS SSM
// Parameter Store for variables that carry an _SSM_PARAM pointer.
package config

import (
	"time"

	"aquaplan/internal/anomaly"
	"aquaplan/internal/demand"
	"aquaplan/internal/optimizer"
	"aquaplan/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Config is the top-level configuration. Components receive only the
// sub-struct they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"aquaplan"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	TariffFeed    TariffFeedConfig
	Security      SecurityConfig
	Observability ObservabilityConfig
	Engine        EngineConfig

	// Injected via ldflags, not env.
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s" validate:"gt=0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
}

// DatabaseConfig holds the run store connection. An empty URL disables
// persistence.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"omitempty,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10" validate:"min=1"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"1" validate:"min=0,ltefield=MaxConns"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// Enabled reports whether a database URL was configured.
func (d DatabaseConfig) Enabled() bool {
	return d.URL.IsSet()
}

// AWSConfig holds AWS resource identifiers.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// OptimizationQueueURL receives asynchronous optimization jobs. Empty
	// disables the jobs endpoint.
	OptimizationQueueURL string `envconfig:"SQS_OPTIMIZATION_JOBS" validate:"omitempty,url"`

	// LocalStack support; empty in prod.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// TariffFeedConfig points at the utility's day-ahead tariff endpoint.
type TariffFeedConfig struct {
	URL        string        `envconfig:"TARIFF_FEED_URL" validate:"omitempty,url"`
	APIKey     SecretString  `envconfig:"TARIFF_FEED_API_KEY"`
	Timeout    time.Duration `envconfig:"TARIFF_FEED_TIMEOUT" default:"5s" validate:"gt=0"`
	MaxRetries int           `envconfig:"TARIFF_FEED_MAX_RETRIES" default:"3" validate:"min=0,max=10"`

	// AllowPrivateNetworks disables the egress guard so a feed stub on
	// localhost or inside the VPC can be reached. Intended for local only.
	AllowPrivateNetworks bool `envconfig:"TARIFF_FEED_ALLOW_PRIVATE" default:"false"`
}

// SecurityConfig holds API authentication and CORS settings.
type SecurityConfig struct {
	// APIKeyHash is the bcrypt hash of the shared API key. Required outside
	// local.
	APIKeyHash         SecretString `envconfig:"API_KEY_HASH"`
	CorsAllowedOrigins []string     `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// ObservabilityConfig holds CloudWatch settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"AquaPlan"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// EngineConfig holds process-wide engine defaults. Requests may override
// any of them.
type EngineConfig struct {
	// Seed is used when a request carries none. 0 draws a fresh seed per
	// request.
	Seed uint64 `envconfig:"ENGINE_SEED" default:"0"`

	PopulationSize         int     `envconfig:"ENGINE_POPULATION_SIZE" default:"50" validate:"min=2,max=5000"`
	Generations            int     `envconfig:"ENGINE_GENERATIONS" default:"20" validate:"min=0,max=5000"`
	CrossoverRate          float64 `envconfig:"ENGINE_CROSSOVER_RATE" default:"0.9" validate:"gte=0,lte=1"`
	MutationRate           float64 `envconfig:"ENGINE_MUTATION_RATE" default:"0.1" validate:"gte=0,lte=1"`
	EliteCount             int     `envconfig:"ENGINE_ELITE_COUNT" default:"5" validate:"min=0,ltefield=PopulationSize"`
	ReservoirCapacity      float64 `envconfig:"ENGINE_RESERVOIR_CAPACITY" default:"1000" validate:"gt=0"`
	OffPeakTariffThreshold float64 `envconfig:"ENGINE_OFF_PEAK_TARIFF_THRESHOLD" default:"0.5" validate:"gte=0"`

	NEstimators      int     `envconfig:"ENGINE_N_ESTIMATORS" default:"50" validate:"min=1,max=1000"`
	MaxSamples       int     `envconfig:"ENGINE_MAX_SAMPLES" default:"256" validate:"min=2,max=65536"`
	AnomalyThreshold float64 `envconfig:"ENGINE_ANOMALY_THRESHOLD" default:"0.15" validate:"gte=0,lte=1"`
	Contamination    float64 `envconfig:"ENGINE_CONTAMINATION" default:"0.1" validate:"gte=0,lte=0.5"`

	BaseDemand float64 `envconfig:"ENGINE_BASE_DEMAND" default:"100" validate:"gte=0"`
}

// OptimizerOptions overlays the configured values on optimizer.DefaultOptions.
func (e EngineConfig) OptimizerOptions() optimizer.Options {
	o := optimizer.DefaultOptions()
	o.PopulationSize = e.PopulationSize
	o.Generations = e.Generations
	o.CrossoverRate = e.CrossoverRate
	o.MutationRate = e.MutationRate
	o.EliteCount = e.EliteCount
	o.ReservoirCapacity = e.ReservoirCapacity
	o.OffPeakTariffThreshold = e.OffPeakTariffThreshold
	return o
}

// AnomalyOptions overlays the configured values on anomaly.DefaultOptions.
func (e EngineConfig) AnomalyOptions() anomaly.Options {
	o := anomaly.DefaultOptions()
	o.NEstimators = e.NEstimators
	o.MaxSamples = e.MaxSamples
	o.AnomalyThreshold = e.AnomalyThreshold
	o.Contamination = e.Contamination
	return o
}

// DemandOptions overlays the configured values on demand.DefaultOptions.
func (e EngineConfig) DemandOptions() demand.Options {
	o := demand.DefaultOptions()
	o.DefaultBaseDemand = e.BaseDemand
	return o
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
