package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sdrview/pkg/spectrum"
	"github.com/spf13/viper"
)

// Config is the dashboard configuration. Values come from sdrview.toml
// (or .yaml/.json) in /etc/sdrview or the working directory, then from
// SDRVIEW_* environment variables, then from command-line flags.
type Config struct {
	Backend string `mapstructure:"backend"`
	Port    int    `mapstructure:"port"`
	SimPort int    `mapstructure:"sim_port"`

	Display DisplayConfig `mapstructure:"display"`
	Chart   ChartConfig   `mapstructure:"chart"`
	Record  RecordConfig  `mapstructure:"record"`
	Log     LogConfig     `mapstructure:"log"`
}

type DisplayConfig struct {
	CenterFreq float64            `mapstructure:"center_freq"`
	SampleRate float64            `mapstructure:"sample_rate"`
	MinY       float64            `mapstructure:"min_y"`
	MaxY       float64            `mapstructure:"max_y"`
	ThrottleMs int                `mapstructure:"throttle_ms"`
	ShowPeaks  bool               `mapstructure:"show_peaks"`
	SweepEdges map[string]float64 `mapstructure:"sweep_edges"`
}

type ChartConfig struct {
	Width            int     `mapstructure:"width"`
	Height           int     `mapstructure:"height"`
	PersistenceAlpha float64 `mapstructure:"persistence_alpha"`
	WaterfallRows    int     `mapstructure:"waterfall_rows"`
}

type RecordConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// setDefaultConfig registers the built-in defaults. They apply to any key
// the config file and environment leave unset.
func setDefaultConfig(v *viper.Viper) {
	d := spectrum.DefaultDisplaySettings()
	v.SetDefault("backend", "http://localhost:5000")
	v.SetDefault("port", 8080)
	v.SetDefault("sim_port", 5055)

	v.SetDefault("display.center_freq", d.CenterFreqHz)
	v.SetDefault("display.sample_rate", d.SampleRateHz)
	v.SetDefault("display.min_y", d.MinY)
	v.SetDefault("display.max_y", d.MaxY)
	v.SetDefault("display.throttle_ms", int(d.ThrottleInterval/time.Millisecond))
	v.SetDefault("display.show_peaks", true)
	v.SetDefault("display.sweep_edges", map[string]float64{
		"sidekiq": spectrum.SidekiqSweepEdgeHz,
	})

	v.SetDefault("chart.width", 1024)
	v.SetDefault("chart.height", 480)
	v.SetDefault("chart.persistence_alpha", 0.1)
	v.SetDefault("chart.waterfall_rows", spectrum.DefaultWaterfallRows)

	v.SetDefault("record.dir", "data")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// newConfigReader returns a viper instance wired to the config search path
// and environment. path, when set, names an explicit config file.
func newConfigReader(path string) *viper.Viper {
	v := viper.New()
	setDefaultConfig(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sdrview")
		v.AddConfigPath("/etc/sdrview")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("SDRVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig reads the config file if there is one. A missing file is not
// an error; the defaults are used.
func loadConfig(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Display.MinY >= cfg.Display.MaxY {
		return nil, fmt.Errorf("display.min_y (%g) must be below display.max_y (%g)", cfg.Display.MinY, cfg.Display.MaxY)
	}
	if cfg.Display.ThrottleMs < 0 {
		return nil, fmt.Errorf("display.throttle_ms must not be negative")
	}
	return &cfg, nil
}

// DisplaySettings converts the display section to renderer settings.
func (c *Config) DisplaySettings() spectrum.DisplaySettings {
	d := spectrum.DefaultDisplaySettings()
	d.CenterFreqHz = c.Display.CenterFreq
	d.SampleRateHz = c.Display.SampleRate
	d.BandwidthHz = c.Display.SampleRate
	d.MinY = c.Display.MinY
	d.MaxY = c.Display.MaxY
	d.ThrottleInterval = time.Duration(c.Display.ThrottleMs) * time.Millisecond
	d.ShowPeaks = c.Display.ShowPeaks
	if len(c.Display.SweepEdges) > 0 {
		d.SweepEdges = c.Display.SweepEdges
	}
	return d
}
