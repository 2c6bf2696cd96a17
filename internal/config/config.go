package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Source  Source  `yaml:"source"`
	Results Results `yaml:"results"`
	Shard   Shard   `yaml:"shard"`
	Plot    Plot    `yaml:"plot"`
	Publish Publish `yaml:"publish"`
	Watch   Watch   `yaml:"watch"`
}

// Source describes the tree written by genai-bench.
type Source struct {
	Dir           string `yaml:"dir"`
	MetadataFile  string `yaml:"metadata_file"`
	ResultPattern string `yaml:"result_pattern"`
}

type Results struct {
	Dir string `yaml:"dir"`
}

type Shard struct {
	SkipInvalid bool `yaml:"skip_invalid"`
}

type Plot struct {
	Mode           string        `yaml:"mode"`
	Command        []string      `yaml:"command"`
	WorkDir        string        `yaml:"work_dir"`
	Image          string        `yaml:"image"`
	OutDir         string        `yaml:"out_dir"`
	Experiment     string        `yaml:"experiment"`
	Scenarios      []string      `yaml:"scenarios"`
	Concurrencies  []int         `yaml:"concurrencies"`
	LegendFormat   string        `yaml:"legend_format"`
	LogX           bool          `yaml:"logx"`
	OnlyP95        bool          `yaml:"only_p95"`
	SkipIndividual bool          `yaml:"skip_individual"`
	Timeout        time.Duration `yaml:"timeout"`
}

type Publish struct {
	Bucket         string  `yaml:"bucket"`
	Namespace      string  `yaml:"namespace"`
	Prefix         string  `yaml:"prefix"`
	OCIConfigFile  string  `yaml:"oci_config_file"`
	Profile        string  `yaml:"profile"`
	Host           string  `yaml:"host"`
	Concurrency    int     `yaml:"concurrency"`
	RateLimit      float64 `yaml:"rate_limit"`
	IncludeFigures bool    `yaml:"include_figures"`
}

type Watch struct {
	Debounce time.Duration `yaml:"debounce"`
}

const (
	PlotModeNative = "native"
	PlotModeExec   = "exec"
	PlotModeDocker = "docker"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Source.Dir == "" {
		cfg.Source.Dir = "experiments"
	}
	if cfg.Source.MetadataFile == "" {
		cfg.Source.MetadataFile = "experiment_metadata.json"
	}
	if cfg.Source.ResultPattern == "" {
		cfg.Source.ResultPattern = "N*.json"
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
	if cfg.Plot.Mode == "" {
		cfg.Plot.Mode = PlotModeNative
	}
	if len(cfg.Plot.Command) == 0 {
		cfg.Plot.Command = []string{"python3", "plot.py"}
	}
	if cfg.Plot.WorkDir == "" {
		cfg.Plot.WorkDir = "."
	}
	if cfg.Plot.Image == "" {
		cfg.Plot.Image = "python:3.12-slim"
	}
	if cfg.Plot.OutDir == "" {
		cfg.Plot.OutDir = "figures_multi"
	}
	if cfg.Plot.LegendFormat == "" {
		cfg.Plot.LegendFormat = "{platform}-{scenario}"
	}
	if cfg.Plot.Timeout == 0 {
		cfg.Plot.Timeout = 10 * time.Minute
	}
	if cfg.Publish.OCIConfigFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Publish.OCIConfigFile = filepath.Join(home, ".oci", "config")
		}
	}
	if cfg.Publish.Profile == "" {
		cfg.Publish.Profile = "DEFAULT"
	}
	if cfg.Publish.Concurrency == 0 {
		cfg.Publish.Concurrency = 8
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 2 * time.Second
	}
}

// Validate checks fields that defaults cannot repair.
func (cfg *Config) Validate() error {
	if _, err := filepath.Match(cfg.Source.ResultPattern, ""); err != nil {
		return fmt.Errorf("source.result_pattern %q: %w", cfg.Source.ResultPattern, err)
	}
	if filepath.Base(cfg.Source.MetadataFile) != cfg.Source.MetadataFile {
		return fmt.Errorf("source.metadata_file %q must be a bare file name", cfg.Source.MetadataFile)
	}
	switch cfg.Plot.Mode {
	case PlotModeNative, PlotModeExec, PlotModeDocker:
	default:
		return fmt.Errorf("plot.mode %q: want native, exec or docker", cfg.Plot.Mode)
	}
	for _, c := range cfg.Plot.Concurrencies {
		if c < 1 {
			return fmt.Errorf("plot.concurrencies: %d is not a positive concurrency", c)
		}
	}
	if cfg.Plot.Timeout < 0 {
		return errors.New("plot.timeout must not be negative")
	}
	if cfg.Publish.Concurrency < 1 {
		return fmt.Errorf("publish.concurrency must be at least 1")
	}
	if cfg.Publish.RateLimit < 0 {
		return errors.New("publish.rate_limit must not be negative")
	}
	if cfg.Watch.Debounce < 0 {
		return errors.New("watch.debounce must not be negative")
	}
	return nil
}
