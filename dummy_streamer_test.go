package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sdrview/pkg/backend"
	"github.com/sdrview/pkg/spectrum"
	"github.com/sdrview/pkg/stream"
)

func newSimClient(t *testing.T) (*Simulator, *backend.Client) {
	t.Helper()
	sim := newSimulator(nil)
	sim.interval = 5 * time.Millisecond
	srv := httptest.NewServer(sim.Handler())
	t.Cleanup(srv.Close)
	c, err := backend.New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	return sim, c
}

func TestSimulatorStream(t *testing.T) {
	_, c := newSimClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, "GET", c.StreamURL(), nil)
	resp, err := c.StreamClient().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type %q", ct)
	}

	r := stream.NewReader(resp.Body)
	for i := 0; i < 2; i++ {
		ev, err := r.Next()
		if err != nil {
			t.Fatal(err)
		}
		s, err := spectrum.DecodeSample(ev.Data)
		if err != nil {
			t.Fatal(err)
		}
		if s.Len() != simBins {
			t.Errorf("bins %d", s.Len())
		}
		if _, err := time.Parse(simTimeFormat, s.Time); err != nil {
			t.Errorf("time %q: %v", s.Time, err)
		}
	}
}

func TestSimulatorPeaks(t *testing.T) {
	sim := newSimulator(nil)
	if p := sim.peaks(simMaxPeaks); p != nil {
		t.Errorf("peaks before any sample: %v", p)
	}

	sim.nextSpectrum(time.Now())
	peaks := sim.peaks(simMaxPeaks)
	if len(peaks) == 0 || len(peaks) > simMaxPeaks {
		t.Fatalf("got %d peaks", len(peaks))
	}
	for i := 1; i < len(peaks); i++ {
		if *peaks[i].Power > *peaks[i-1].Power {
			t.Errorf("peaks not sorted: %v > %v", *peaks[i].Power, *peaks[i-1].Power)
		}
	}

	// The strongest carrier sits at a quarter of the 16 MHz span around
	// 102.1 MHz, drifting by up to 5% of it.
	top := peaks[0]
	if *top.Power < -8 {
		t.Errorf("top power %v", *top.Power)
	}
	if f := *top.Frequency; f < 97e6 || f > 99.2e6 {
		t.Errorf("top frequency %v Hz", f)
	}
	if *top.Bandwidth <= 0 {
		t.Errorf("bandwidth %v", *top.Bandwidth)
	}
}

func TestSimulatorClassifiesKnownBands(t *testing.T) {
	sim := newSimulator(nil)
	c, ok := sim.classify(102.15e6)
	if !ok || c.Label != "FM" {
		t.Errorf("102.15 MHz: %+v %v", c, ok)
	}
	if _, ok := sim.classify(300e6); ok {
		t.Error("300 MHz classified")
	}
}

func TestSimulatorSettingsAndSweep(t *testing.T) {
	_, c := newSimClient(t)
	ctx := context.Background()

	got, err := c.UpdateSettings(ctx, backend.Settings{Gain: backend.Float(12)})
	if err != nil {
		t.Fatal(err)
	}
	if *got.Gain != 12 || *got.Frequency != 102.1e6 {
		t.Errorf("settings %+v", got)
	}
	if err := c.SelectSDR(ctx, "sidekiq"); err != nil {
		t.Fatal(err)
	}

	if err := c.StartSweep(ctx, backend.SweepRequest{FrequencyStart: 200e6, FrequencyStop: 100e6}); err == nil {
		t.Error("inverted sweep accepted")
	}
	if err := c.StartSweep(ctx, backend.SweepRequest{FrequencyStart: 100e6, FrequencyStop: 200e6}); err != nil {
		t.Fatal(err)
	}

	got, err = c.GetSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if *got.SDR != "sidekiq" || !*got.SweepingEnabled || *got.FrequencyStop != 200e6 {
		t.Errorf("settings after sweep %+v", got)
	}
}

func TestSimulatorTasks(t *testing.T) {
	_, c := newSimClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.AddTask(ctx, backend.Task{Type: backend.TaskTune, Frequency: backend.Float(433.92e6)}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddTask(ctx, backend.Task{Type: backend.TaskRecord, Duration: backend.Float(1), Label: "ism"}); err != nil {
		t.Fatal(err)
	}

	var statuses []backend.TaskStatus
	if err := c.ExecuteTasks(ctx, func(st backend.TaskStatus) { statuses = append(statuses, st) }); err != nil {
		t.Fatal(err)
	}
	if len(statuses) != 5 {
		t.Fatalf("statuses %+v", statuses)
	}
	if statuses[0].Status != "Tune to 433.920 MHz..." || statuses[4].TaskIndex != nil {
		t.Errorf("statuses %+v", statuses)
	}

	got, err := c.GetSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if *got.Frequency != 433.92e6 {
		t.Errorf("frequency %v", *got.Frequency)
	}
	l, err := c.ListFiles(ctx, "captures")
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Files) != 2 {
		t.Errorf("captures %+v", l.Files)
	}
}

func TestSimulatorFileManager(t *testing.T) {
	_, c := newSimClient(t)
	ctx := context.Background()

	if err := c.CreateDirectory(ctx, "", "archive"); err != nil {
		t.Fatal(err)
	}
	if err := c.CreateDirectory(ctx, "", "archive"); err == nil {
		t.Error("duplicate directory created")
	}
	if err := c.MoveFile(ctx, "captures", "archive", "fm_2024_05_01_10_00_00.pkl"); err != nil {
		t.Fatal(err)
	}

	err := c.RenameFile(ctx, "archive/fm_2024_05_01_10_00_00.pkl", "captures")
	var herr *backend.HTTPError
	if !errors.As(err, &herr) || herr.StatusCode != 409 {
		t.Errorf("rename onto existing: %v", err)
	}

	if err := c.RenameFile(ctx, "archive", "old"); err != nil {
		t.Fatal(err)
	}
	l, err := c.ListFiles(ctx, "old")
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Files) != 1 || l.Files[0].ID != "old/fm_2024_05_01_10_00_00.pkl" || l.Files[0].Ext != ".pkl" {
		t.Errorf("listing %+v", l.Files)
	}

	if _, err := c.FileMetadata(ctx, "old/fm_2024_05_01_10_00_00.pkl"); err != nil {
		t.Fatal(err)
	}
	if err := c.DeleteFile(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.FileMetadata(ctx, "old/fm_2024_05_01_10_00_00.pkl"); err == nil {
		t.Error("metadata of deleted file")
	}
}

func TestSimulatorSweepTrace(t *testing.T) {
	_, c := newSimClient(t)
	ctx := context.Background()

	tr, err := c.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tr.X) != 6001 || tr.X[0] != simSweepStartMHz || tr.X[len(tr.X)-1] != simSweepStopMHz {
		t.Fatalf("full sweep covers %d points", len(tr.X))
	}
	fm := spectrum.PeakInBand(tr.X, tr.Y, spectrum.AreasOfInterest[0])
	quiet := spectrum.PeakInBand(tr.X, tr.Y, spectrum.Band{LowMHz: 3000, HighMHz: 3100})
	if fm.Power < 20 || quiet.Power > 15 {
		t.Errorf("fm peak %v dB, quiet peak %v dB", fm.Power, quiet.Power)
	}

	if err := c.StartSweep(ctx, backend.SweepRequest{FrequencyStart: 400e6, FrequencyStop: 500e6}); err != nil {
		t.Fatal(err)
	}
	tr, err = c.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tr.X) != 101 || tr.X[0] != 400 {
		t.Errorf("range sweep %d points from %v", len(tr.X), tr.X[0])
	}
}

func TestSimulatorSigID(t *testing.T) {
	_, c := newSimClient(t)
	db, err := c.SigID(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	rows := db.Sorted()
	if len(rows) != len(simSignals) || rows[0].Key != "adsb" || rows[0].Type != "ADS-B" {
		t.Errorf("rows %+v", rows)
	}
}
