// Package config loads mdextract settings from defaults, an optional YAML
// file and MDEXTRACT_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/coolbeans/mdextract/pkg/grammar"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Config holds the complete tool configuration.
type Config struct {
	Output   OutputConfig  `mapstructure:"output"`
	Grammar  GrammarConfig `mapstructure:"grammar"`
	Watch    WatchConfig   `mapstructure:"watch"`
	Warnings bool          `mapstructure:"warnings"`
	Verbose  bool          `mapstructure:"verbose"`
}

// OutputConfig controls how extracted blocks are written.
type OutputConfig struct {
	Format string `mapstructure:"format"` // json, yaml
	Indent int    `mapstructure:"indent"`
}

// GrammarConfig selects the comment dialect.
type GrammarConfig struct {
	Dialect string `mapstructure:"dialect"`
	Dir     string `mapstructure:"dir"`  // extra YAML dialects
	File    string `mapstructure:"file"` // single YAML dialect, overrides Dialect
}

// WatchConfig controls the watch command.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Format: FormatJSON,
			Indent: 2,
		},
		Grammar: GrammarConfig{
			Dialect: grammar.DefaultDialect,
			Dir:     "~/.config/mdextract/grammars",
		},
		Watch: WatchConfig{
			Debounce: 200 * time.Millisecond,
		},
	}
}

// Load reads configuration from configPath, or from mdextract.yaml in the
// working directory or $HOME/.config/mdextract when configPath is empty.
// A missing default file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MDEXTRACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("mdextract")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/mdextract")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Grammar.Dir = expandHome(cfg.Grammar.Dir)
	cfg.Grammar.File = expandHome(cfg.Grammar.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Output.Format != FormatJSON && c.Output.Format != FormatYAML {
		return fmt.Errorf("invalid output format: %s (must be json or yaml)", c.Output.Format)
	}
	if c.Output.Indent < 0 {
		return fmt.Errorf("invalid output indent: %d", c.Output.Indent)
	}
	if c.Grammar.Dialect == "" && c.Grammar.File == "" {
		return fmt.Errorf("grammar dialect is required")
	}
	if c.Watch.Debounce <= 0 {
		return fmt.Errorf("watch debounce must be positive, got %s", c.Watch.Debounce)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	defaults := Default()
	v.SetDefault("output.format", defaults.Output.Format)
	v.SetDefault("output.indent", defaults.Output.Indent)
	v.SetDefault("grammar.dialect", defaults.Grammar.Dialect)
	v.SetDefault("grammar.dir", defaults.Grammar.Dir)
	v.SetDefault("grammar.file", defaults.Grammar.File)
	v.SetDefault("watch.debounce", defaults.Watch.Debounce)
	v.SetDefault("warnings", defaults.Warnings)
	v.SetDefault("verbose", defaults.Verbose)
}

func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, path[1:])
}
