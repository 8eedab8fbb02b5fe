// Package config loads the voting station's settings.
//
// Sources, lowest precedence first: defaults, a YAML file (-c / -config),
// the environment (prefix STATION, e.g. STATION_TOKEN), then the station's
// own flags (-a, -t, -o, -i). Flags meant for other components are ignored.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/flagx"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "STATION"

type Config struct {
	ServerAddr string `yaml:"server_addr" envconfig:"SERVER_ADDR"`
	// Token is the station JWT issued by `ballotd token`.
	Token string `yaml:"token" envconfig:"TOKEN"`
	// Origin labels the votes cast here, e.g. the polling room.
	Origin       string        `yaml:"origin"        envconfig:"ORIGIN"`
	PingInterval time.Duration `yaml:"ping_interval" envconfig:"PING_INTERVAL"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerAddr = "127.0.0.1:50051"
	c.PingInterval = 5 * time.Second
}

func (c *Config) Validate() error {
	var errs []error
	if c.ServerAddr == "" {
		errs = append(errs, errors.New("server address is required"))
	}
	if c.Token == "" {
		errs = append(errs, errors.New("station token is required (-t or STATION_TOKEN)"))
	}
	if c.PingInterval <= 0 {
		errs = append(errs, errors.New("ping interval must be positive"))
	}
	return errors.Join(errs...)
}

// LoadConfig builds a Config from args (usually os.Args[1:]).
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path := flagx.ConfigFileFlag(args); path != "" {
		if err := parseYAML(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	return nil
}

// parseFlags applies the station flags found in args:
//
//	-a string   address and port of the ballot server
//	-t string   station token
//	-o string   origin label recorded with each vote
//	-i duration server reachability check interval
func parseFlags(cfg *Config, args []string) error {
	filtered := flagx.FilterArgs(args, []string{"-a", "-t", "-o", "-i"})

	fs := flag.NewFlagSet("station", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerAddr, "a", cfg.ServerAddr, "address and port to access server")
	fs.StringVar(&cfg.Token, "t", cfg.Token, "station token")
	fs.StringVar(&cfg.Origin, "o", cfg.Origin, "origin label for cast votes")
	fs.DurationVar(&cfg.PingInterval, "i", cfg.PingInterval, "server check interval")

	if err := fs.Parse(filtered); err != nil {
		return fmt.Errorf("error parsing flags: %w", err)
	}
	return nil
}
