// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Catalog      CatalogConfig           `mapstructure:"catalog"`
	Collaborator CollaboratorConfig      `mapstructure:"collaborator"`
	Engine       EngineConfig            `mapstructure:"engine"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	Logging      LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CatalogConfig controls the rule catalog read path.
type CatalogConfig struct {
	CacheTTL     int `mapstructure:"cache_ttl"`     // seconds
	QueryTimeout int `mapstructure:"query_timeout"` // milliseconds
}

// CollaboratorConfig configures the external text-generation service.
type CollaboratorConfig struct {
	BaseURL          string  `mapstructure:"base_url"`
	APIKey           string  `mapstructure:"api_key"`
	Model            string  `mapstructure:"model"`
	Timeout          int     `mapstructure:"timeout"`            // milliseconds
	MaxResponseBytes int64   `mapstructure:"max_response_bytes"` // hard cap on body size
	MaxTokens        int     `mapstructure:"max_tokens"`
	Temperature      float64 `mapstructure:"temperature"`
}

// EngineConfig carries the tunable derivation thresholds. The label cut
// points are configuration rather than code: the ordering low < borderline <
// sufficient < strong is fixed, the exact values are not.
type EngineConfig struct {
	Thresholds         ThresholdConfig    `mapstructure:"thresholds"`
	FundsPerDay        map[string]float64 `mapstructure:"funds_per_day"` // country code -> per-day estimate
	DefaultFundsPerDay float64            `mapstructure:"default_funds_per_day"`
	MinStayDays        int                `mapstructure:"min_stay_days"`
}

type ThresholdConfig struct {
	FinancialBorderline float64 `mapstructure:"financial_borderline"` // ratio below this is "low"
	FinancialSufficient float64 `mapstructure:"financial_sufficient"`
	FinancialStrong     float64 `mapstructure:"financial_strong"`
	TiesModerate        float64 `mapstructure:"ties_moderate"` // score below this is "weak"
	TiesStrong          float64 `mapstructure:"ties_strong"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
