package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestAnsiColor(t *testing.T) {
	tests := []struct {
		power float64
		want  string
	}{
		{power: 3, want: "\x1b[38;2;0;255;0m"},
		{power: 0, want: "\x1b[38;2;0;255;0m"},
		{power: -5, want: "\x1b[38;2;127;255;0m"},
		{power: -10, want: "\x1b[38;2;255;255;0m"},
		{power: -15, want: "\x1b[38;2;255;127;0m"},
		{power: -20, want: "\x1b[38;2;255;0;0m"},
		{power: -60, want: "\x1b[38;2;255;0;0m"},
	}
	for _, tt := range tests {
		if got := ansiColor(tt.power); got != tt.want {
			t.Errorf("ansiColor(%v) = %q, want %q", tt.power, got, tt.want)
		}
	}
}

// useBackend points the commands at a test server answering path with body.
func useBackend(t *testing.T, routes map[string]string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	old := endpoint
	endpoint = srv.URL
	t.Cleanup(func() { endpoint = old })
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	// nil args would make cobra parse the test binary's flags
	cmd.SetArgs(append([]string{}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// tableRow returns the rendered table line whose first cell is name.
func tableRow(out, name string) string {
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "| "+name+" ") {
			return line
		}
	}
	return ""
}

func TestSettingsTable(t *testing.T) {
	useBackend(t, map[string]string{
		"/api/get_settings": `{"frequency": 102.1e6, "sampleRate": 16e6, "sdr": "hackrf", "dcSuppress": true}`,
	})
	out, err := run(t, settingsCmd())
	if err != nil {
		t.Fatal(err)
	}
	for name, want := range map[string]string{
		"SDR":               "hackrf",
		"Frequency (MHz)":   "102.100",
		"Sample rate (MHz)": "16.000",
		"DC suppress":       "true",
		"Gain (dB)":         "N/A",
		"Averaging":         "N/A",
	} {
		if row := tableRow(out, name); !strings.Contains(row, "| "+want+" ") {
			t.Errorf("%s row %q, want %s", name, row, want)
		}
	}
}

func TestSettingsSetNeedsAFlag(t *testing.T) {
	_, err := run(t, settingsCmd(), "set")
	if err == nil || !strings.Contains(err.Error(), "no settings given") {
		t.Errorf("err = %v", err)
	}
}

func TestSweepShowTable(t *testing.T) {
	useBackend(t, map[string]string{
		"/api/sweep": `{"x": [90, 98, 105, 433.5, 600], "y": [10, 40, 20, 35, 5]}`,
	})
	chart := filepath.Join(t.TempDir(), "sweep.svg")
	out, err := run(t, sweepCmd(), "show", "--bands", "FM Radio,433MHz Band,WiFi 5.8GHz", "--chart", chart)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Sweep from 90.0 to 600.0 MHz, 5 points") {
		t.Errorf("summary missing:\n%s", out)
	}

	tests := []struct {
		band  string
		cells []string
	}{
		{band: "FM Radio", cells: []string{"87.7", "107.7", "98.0", "40.0", "3"}},
		{band: "433MHz Band", cells: []string{"433.5", "35.0", "1"}},
		{band: "WiFi 5.8GHz", cells: []string{"N/A", "0"}},
	}
	for _, tt := range tests {
		row := tableRow(out, tt.band)
		if row == "" {
			t.Errorf("no row for %s:\n%s", tt.band, out)
			continue
		}
		for _, c := range tt.cells {
			if !strings.Contains(row, "| "+c+" ") {
				t.Errorf("%s row %q lacks %s", tt.band, row, c)
			}
		}
	}
	if tableRow(out, "LTE Band 2") != "" {
		t.Error("unselected band listed")
	}

	b, err := os.ReadFile(chart)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(b, []byte("<svg")) || !bytes.Contains(b, []byte("FM Radio")) {
		t.Error("chart file is not a sweep SVG")
	}
}

func TestSweepShowRejectsUnknownBand(t *testing.T) {
	useBackend(t, nil)
	if _, err := run(t, sweepCmd(), "show", "--bands", "Airband"); err == nil {
		t.Error("unknown band accepted")
	}
}

func TestSigIDTable(t *testing.T) {
	useBackend(t, map[string]string{
		"/sigid/data": `{"signals_database": {
			"pocsag": {"Signal type": "POCSAG", "Frequency": "929 MHz", "Modulation": "FSK"},
			"adsb": {"Signal type": "ADS-B", "Frequency": "1090 MHz", "Image": "iVBORw0KGgo="}
		}}`,
	})
	out, err := run(t, sigidCmd())
	if err != nil {
		t.Fatal(err)
	}
	adsb, pocsag := tableRow(out, "ADS-B"), tableRow(out, "POCSAG")
	if adsb == "" || pocsag == "" {
		t.Fatalf("rows missing:\n%s", out)
	}
	if strings.Index(out, adsb) > strings.Index(out, pocsag) {
		t.Error("rows not sorted by key")
	}
	if !strings.Contains(adsb, "| yes ") || !strings.Contains(pocsag, "| No Image ") || !strings.Contains(pocsag, "| FSK ") {
		t.Errorf("rows:\n%s\n%s", adsb, pocsag)
	}
}

func TestBackendErrorIsReturned(t *testing.T) {
	useBackend(t, nil)
	if _, err := run(t, sigidCmd()); err == nil {
		t.Error("missing endpoint did not fail")
	}
}
