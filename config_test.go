package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sdrview/pkg/spectrum"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestConfigDefaults(t *testing.T) {
	cfg := testConfig(t)
	if cfg.Backend != "http://localhost:5000" || cfg.Port != 8080 || cfg.SimPort != 5055 {
		t.Errorf("config %+v", cfg)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("log %+v", cfg.Log)
	}

	d := cfg.DisplaySettings()
	want := spectrum.DefaultDisplaySettings()
	if d.CenterFreqHz != want.CenterFreqHz || d.MinY != want.MinY || d.MaxY != want.MaxY ||
		d.ThrottleInterval != want.ThrottleInterval || !d.ShowPeaks {
		t.Errorf("display %+v", d)
	}
	d.SDR = "sidekiq"
	if d.SweepEdge() != spectrum.SidekiqSweepEdgeHz {
		t.Errorf("sidekiq sweep edge %v", d.SweepEdge())
	}
}

func TestConfigFile(t *testing.T) {
	p := writeConfig(t, "sdrview.toml", `
backend = "http://radio:5000"

[display]
min_y = -100
max_y = 0
throttle_ms = 250
show_peaks = false

[display.sweep_edges]
hackrf = 10000000
`)
	cfg, err := loadConfig(newConfigReader(p))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != "http://radio:5000" || cfg.Port != 8080 {
		t.Errorf("config %+v", cfg)
	}

	d := cfg.DisplaySettings()
	if d.MinY != -100 || d.MaxY != 0 || d.ThrottleInterval != 250*time.Millisecond || d.ShowPeaks {
		t.Errorf("display %+v", d)
	}
	d.SDR = "hackrf"
	if d.SweepEdge() != 10e6 {
		t.Errorf("hackrf sweep edge %v", d.SweepEdge())
	}
}

func TestConfigRejectsInvertedRange(t *testing.T) {
	p := writeConfig(t, "sdrview.yaml", "display:\n  min_y: 10\n  max_y: -10\n")
	_, err := loadConfig(newConfigReader(p))
	if err == nil || !strings.Contains(err.Error(), "min_y") {
		t.Errorf("err = %v", err)
	}
}

func TestConfigEnvironment(t *testing.T) {
	t.Setenv("SDRVIEW_PORT", "9090")
	t.Setenv("SDRVIEW_DISPLAY_THROTTLE_MS", "0")
	cfg, err := loadConfig(newConfigReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9090 {
		t.Errorf("port %d", cfg.Port)
	}
	if d := cfg.DisplaySettings(); d.ThrottleInterval != 0 {
		t.Errorf("throttle %v", d.ThrottleInterval)
	}
}

func TestFreqFlag(t *testing.T) {
	var f freqFlag
	if err := f.Set("2400MHz"); err != nil {
		t.Fatal(err)
	}
	if f != 2.4e9 || f.String() != "2400.00 MHz" {
		t.Errorf("2400MHz = %v (%s)", float64(f), f.String())
	}
	if err := f.Set("500k"); err != nil || f != 500e3 {
		t.Errorf("500k = %v, %v", float64(f), err)
	}
	for _, bad := range []string{"", "abc", "-5M", "0"} {
		if err := f.Set(bad); err == nil {
			t.Errorf("Set(%q) accepted", bad)
		}
	}
}
