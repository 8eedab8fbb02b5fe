// Package config loads ballotd's runtime configuration.
//
// Sources, lowest precedence first:
//
//  1. Built-in defaults (LoadDefaults).
//  2. Optional YAML file (--config / -c).
//  3. Optional .env file, then the environment, prefix BALLOT
//     (e.g. BALLOT_GRPC_ADDR, BALLOT_TOKEN_SECRET).
//  4. Command-line flags that were explicitly set.
package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/dbx"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/identity"
)

// EnvPrefix namespaces every environment variable the server reads.
const EnvPrefix = "BALLOT"

type Config struct {
	GRPCAddr    string `yaml:"grpc_addr"    envconfig:"GRPC_ADDR"`
	MetricsAddr string `yaml:"metrics_addr" envconfig:"METRICS_ADDR"`

	DatabaseDriver string        `yaml:"database_driver" envconfig:"DATABASE_DRIVER"`
	DatabaseDSN    string        `yaml:"database_dsn"    envconfig:"DATABASE_DSN"`
	DatabaseWait   time.Duration `yaml:"database_wait"   envconfig:"DATABASE_WAIT"`

	// FingerprintSecret keys voter fingerprints and vote integrity hashes.
	// Changing it orphans every recorded fingerprint.
	FingerprintSecret string        `yaml:"fingerprint_secret" envconfig:"FINGERPRINT_SECRET"`
	TokenSecret       string        `yaml:"token_secret"       envconfig:"TOKEN_SECRET"`
	TokenValidity     time.Duration `yaml:"token_validity"     envconfig:"TOKEN_VALIDITY"`

	CastTimeout            time.Duration `yaml:"cast_timeout"             envconfig:"CAST_TIMEOUT"`
	SessionTTL             time.Duration `yaml:"session_ttl"              envconfig:"SESSION_TTL"`
	TallyReconcileInterval time.Duration `yaml:"tally_reconcile_interval" envconfig:"TALLY_RECONCILE_INTERVAL"`

	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`

	// The S3 audit archive is disabled while S3Bucket is empty.
	S3Bucket    string `yaml:"s3_bucket"     envconfig:"S3_BUCKET"`
	S3Region    string `yaml:"s3_region"     envconfig:"S3_REGION"`
	S3Endpoint  string `yaml:"s3_endpoint"   envconfig:"S3_ENDPOINT"`
	S3AccessKey string `yaml:"s3_access_key" envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `yaml:"s3_secret_key" envconfig:"S3_SECRET_KEY"`
}

// LoadDefaults populates c with development defaults. Secrets have no
// default and must be configured.
func (c *Config) LoadDefaults() {
	c.GRPCAddr = ":50051"
	c.MetricsAddr = ":9102"
	c.DatabaseDriver = "sqlite"
	c.DatabaseDSN = "file:ballot.db"
	c.DatabaseWait = 30 * time.Second
	c.TokenValidity = 12 * time.Hour
	c.CastTimeout = 5 * time.Second
	c.SessionTTL = 15 * time.Minute
	c.TallyReconcileInterval = 30 * time.Second
	c.LogLevel = "info"
	c.S3Region = "us-east-1"
}

// Validate reports every problem with c at once.
func (c *Config) Validate() error {
	var errs []error
	if c.GRPCAddr == "" {
		errs = append(errs, errors.New("grpc_addr is required"))
	}
	if _, err := dbx.DialectForDriver(c.DatabaseDriver); err != nil {
		errs = append(errs, fmt.Errorf("database_driver: %w", err))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database_dsn is required"))
	}
	if len(c.FingerprintSecret) < identity.MinSecretLen {
		errs = append(errs, fmt.Errorf("fingerprint_secret must be at least %d bytes", identity.MinSecretLen))
	}
	if c.TokenSecret == "" {
		errs = append(errs, errors.New("token_secret is required"))
	}
	if c.TokenValidity <= 0 {
		errs = append(errs, errors.New("token_validity must be positive"))
	}
	if c.CastTimeout <= 0 {
		errs = append(errs, errors.New("cast_timeout must be positive"))
	}
	if c.SessionTTL < 0 {
		errs = append(errs, errors.New("session_ttl must not be negative"))
	}
	if c.TallyReconcileInterval <= 0 {
		errs = append(errs, errors.New("tally_reconcile_interval must be positive"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	return errors.Join(errs...)
}

// ArchiveEnabled reports whether audit entries are archived to S3.
func (c *Config) ArchiveEnabled() bool {
	return c.S3Bucket != ""
}

type contextKey struct{}

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}
