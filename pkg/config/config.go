package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the settings of the cratemeta CLI
type Config struct {
	// Cargo forces the build tool executable; empty defers to $CARGO, then "cargo"
	Cargo string `mapstructure:"cargo"`
	// Strict fails when cargo exits non-zero even if it printed metadata
	Strict bool `mapstructure:"strict"`
	// Format selects the output renderer
	Format string `mapstructure:"format"`
	// EnvFile is a dotenv file whose variables overlay the process environment
	EnvFile string `mapstructure:"env_file"`
	// LogLevel is one of trace|debug|info|warn|error
	LogLevel string `mapstructure:"log_level"`
}

// Formats lists the accepted values of Config.Format
var Formats = []string{"json", "yaml", "toml", "table", "raw"}

var defaultConfig = Config{
	Format:   "json",
	LogLevel: "info",
}

// EnvPrefix is the prefix of environment variables read by Load
const EnvPrefix = "CRATEMETA"

// Load reads configuration into v from defaults, an optional file and
// CRATEMETA_* environment variables. configFile, when non-empty, must
// exist; otherwise .cratemeta.{yaml,yml,json,toml} is searched in the
// working directory and $HOME. Flags bound to v beforehand take precedence.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	v.SetDefault("cargo", defaultConfig.Cargo)
	v.SetDefault("strict", defaultConfig.Strict)
	v.SetDefault("format", defaultConfig.Format)
	v.SetDefault("env_file", defaultConfig.EnvFile)
	v.SetDefault("log_level", defaultConfig.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName(".cratemeta")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated settings
func (c *Config) Validate() error {
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	for _, f := range Formats {
		if c.Format == f {
			return nil
		}
	}
	return fmt.Errorf("unsupported format %q (expected one of %s)", c.Format, strings.Join(Formats, ", "))
}

// LookupEnv returns an environment lookup that consults EnvFile first and
// then the process environment. Without EnvFile it is os.LookupEnv.
func (c *Config) LookupEnv() (func(string) (string, bool), error) {
	if c.EnvFile == "" {
		return os.LookupEnv, nil
	}
	overlay, err := godotenv.Read(c.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("error reading env file %s: %w", c.EnvFile, err)
	}
	return func(key string) (string, bool) {
		if v, ok := overlay[key]; ok {
			return v, true
		}
		return os.LookupEnv(key)
	}, nil
}
