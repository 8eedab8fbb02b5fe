package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

type flagField struct {
	name  string
	short string
	usage string
	str   func(c *Config) *string
	dur   func(c *Config) *time.Duration
}

var flagFields = []flagField{
	{name: "grpc-addr", short: "a", usage: "gRPC listen address", str: func(c *Config) *string { return &c.GRPCAddr }},
	{name: "metrics-addr", usage: "Prometheus /metrics listen address (empty disables)", str: func(c *Config) *string { return &c.MetricsAddr }},
	{name: "db-driver", usage: "database driver: pgx or sqlite", str: func(c *Config) *string { return &c.DatabaseDriver }},
	{name: "db-dsn", short: "d", usage: "database DSN", str: func(c *Config) *string { return &c.DatabaseDSN }},
	{name: "db-wait", usage: "how long to wait for the database at startup", dur: func(c *Config) *time.Duration { return &c.DatabaseWait }},
	{name: "fingerprint-secret", usage: "secret keying voter fingerprints", str: func(c *Config) *string { return &c.FingerprintSecret }},
	{name: "token-secret", short: "s", usage: "HMAC secret for station tokens", str: func(c *Config) *string { return &c.TokenSecret }},
	{name: "token-validity", short: "t", usage: "station token lifetime", dur: func(c *Config) *time.Duration { return &c.TokenValidity }},
	{name: "cast-timeout", usage: "deadline for a single cast", dur: func(c *Config) *time.Duration { return &c.CastTimeout }},
	{name: "session-ttl", usage: "abandon active sessions older than this (0 disables)", dur: func(c *Config) *time.Duration { return &c.SessionTTL }},
	{name: "reconcile-interval", usage: "tally reconciliation interval", dur: func(c *Config) *time.Duration { return &c.TallyReconcileInterval }},
	{name: "log-level", usage: "debug, info, warn or error", str: func(c *Config) *string { return &c.LogLevel }},
	{name: "s3-bucket", short: "b", usage: "S3 bucket for the audit archive (empty disables)", str: func(c *Config) *string { return &c.S3Bucket }},
	{name: "s3-region", short: "g", usage: "S3 region", str: func(c *Config) *string { return &c.S3Region }},
	{name: "s3-endpoint", short: "e", usage: "S3-compatible endpoint URL", str: func(c *Config) *string { return &c.S3Endpoint }},
	{name: "s3-access-key", short: "u", usage: "S3 access key", str: func(c *Config) *string { return &c.S3AccessKey }},
	{name: "s3-secret-key", short: "p", usage: "S3 secret key", str: func(c *Config) *string { return &c.S3SecretKey }},
}

// RegisterFlags adds one flag per setting to fs, showing defaults in help.
func RegisterFlags(fs *pflag.FlagSet) {
	var def Config
	def.LoadDefaults()
	for _, f := range flagFields {
		if f.str != nil {
			fs.StringP(f.name, f.short, *f.str(&def), f.usage)
		} else {
			fs.DurationP(f.name, f.short, *f.dur(&def), f.usage)
		}
	}
}

// ApplyFlags copies every explicitly set flag in fs onto cfg.
func ApplyFlags(fs *pflag.FlagSet, cfg *Config) error {
	byName := make(map[string]flagField, len(flagFields))
	for _, f := range flagFields {
		byName[f.name] = f
	}

	var err error
	fs.Visit(func(fl *pflag.Flag) {
		f, ok := byName[fl.Name]
		if !ok || err != nil {
			return
		}
		if f.str != nil {
			*f.str(cfg) = fl.Value.String()
			return
		}
		d, perr := time.ParseDuration(fl.Value.String())
		if perr != nil {
			err = fmt.Errorf("flag --%s: %w", fl.Name, perr)
			return
		}
		*f.dur(cfg) = d
	})
	return err
}
