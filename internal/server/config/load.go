package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Load applies defaults, the YAML file at configFile (if any), the dotenv
// file at envFile (if it exists) and the environment. Flags are applied
// separately by ApplyFlags.
func Load(configFile, envFile string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if configFile != "" {
		if err := loadYAML(cfg, configFile); err != nil {
			return nil, err
		}
	}

	if envFile != "" {
		// existing environment variables win over the file
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading env file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}
	return cfg, nil
}

func loadYAML(cfg *Config, path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	return nil
}
