package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/subygan/receiver/internal/hammer"
)

// Hammer is the load helper configuration. Each field can be set by flag,
// by HAMMER_<FLAG> environment variable, or in a config file.
type Hammer struct {
	URL         string        `mapstructure:"url"`
	Requests    int           `mapstructure:"requests"`
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Payload     string        `mapstructure:"payload"`
	Expect      string        `mapstructure:"expect"`
	TUI         bool          `mapstructure:"tui"`
	NoColor     bool          `mapstructure:"no-color"`
	Debug       bool          `mapstructure:"debug"`
	Strict      bool          `mapstructure:"strict"`
}

// HammerFlags registers the load helper flags on fs.
func HammerFlags(fs *pflag.FlagSet) {
	fs.String("url", hammer.DefaultURL, "endpoint to POST to")
	fs.IntP("requests", "n", hammer.DefaultRequests, "number of requests to send")
	fs.IntP("concurrency", "c", 0, "max requests in flight (0 sends all at once)")
	fs.Duration("timeout", hammer.DefaultTimeout, "per-request timeout")
	fs.String("payload", "", "YAML or JSON body template with a top-level data mapping")
	fs.String("expect", "", `response check as <jsonpath>=<value>, e.g. "$.status=success"`)
	fs.Bool("tui", false, "show live progress")
	fs.Bool("no-color", false, "disable styled output")
	fs.Bool("debug", false, "enable debug logging")
	fs.Bool("strict", false, "exit non-zero when any request fails")
}

// LoadHammer resolves the configuration from fs, the environment and, when
// configFile is not empty, a config file.
func LoadHammer(fs *pflag.FlagSet, configFile string) (Hammer, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return Hammer{}, fmt.Errorf("bind flags: %w", err)
	}
	v.SetEnvPrefix("HAMMER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Hammer{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Hammer
	if err := v.Unmarshal(&cfg); err != nil {
		return Hammer{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Requests < 1 {
		return Hammer{}, fmt.Errorf("%w: requests must be >= 1, got %d", hammer.ErrInvalidOptions, cfg.Requests)
	}
	if cfg.Concurrency < 0 {
		return Hammer{}, fmt.Errorf("%w: concurrency must be >= 0, got %d", hammer.ErrInvalidOptions, cfg.Concurrency)
	}
	return cfg, nil
}
