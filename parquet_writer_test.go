package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/segmentio/parquet-go"
)

func readRecording(t *testing.T, path string) ([]FrameRow, RecordingMetadata) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		t.Fatal(err)
	}

	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		t.Fatalf("open parquet: %v", err)
	}
	var meta RecordingMetadata
	raw, ok := pf.Lookup("recording")
	if !ok {
		t.Fatal("recording metadata missing")
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		t.Fatal(err)
	}

	r := parquet.NewGenericReader[FrameRow](f)
	defer r.Close()
	rows := make([]FrameRow, r.NumRows())
	n, err := r.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatal(err)
	}
	return rows[:n], meta
}

func TestFrameRecorderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.parquet")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	rec := NewFrameRecorder(f, RecordingMetadata{ID: "rec-1", Backend: "http://sdr:5000"})

	// More than one batch, so both the batched and the final flush run.
	const frames = recorderBatch + 6
	start := time.Unix(1700000000, 0)
	for i := 0; i < frames; i++ {
		if err := rec.Write(testFrame(16), start.Add(time.Duration(i)*time.Millisecond)); err != nil {
			t.Fatal(err)
		}
	}
	if rec.Rows() != frames {
		t.Errorf("rows %d", rec.Rows())
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}

	rows, meta := readRecording(t, path)
	if meta.ID != "rec-1" || meta.Backend != "http://sdr:5000" {
		t.Errorf("metadata %+v", meta)
	}
	if len(rows) != frames {
		t.Fatalf("read %d rows", len(rows))
	}
	last := rows[frames-1]
	if last.Seq != frames-1 || last.ReceivedAtNs != start.Add((frames-1)*time.Millisecond).UnixNano() {
		t.Errorf("last row %+v", last)
	}
	if len(last.FFT) != 16 || last.FFT[8] != -5 || len(last.PeaksMHz) != 1 {
		t.Errorf("last row data %+v", last)
	}
	if last.CenterFreqHz != 102.1e6 || last.SpanHz != 16e6 {
		t.Errorf("axis %f %f", last.CenterFreqHz, last.SpanHz)
	}
}

func TestRecordingEndpoints(t *testing.T) {
	s := newTestServer(t, newSimulator(nil).Handler())

	rec := do(t, s, "POST", "/dashboard/record/start", `{"frames": 3, "label": "fm"}`)
	if rec.Code != 200 {
		t.Fatalf("start: %d %s", rec.Code, rec.Body)
	}
	filename, _ := decode(t, rec)["filename"].(string)
	if rec := do(t, s, "POST", "/dashboard/record/start", `{}`); rec.Code != 409 {
		t.Errorf("second start: %d", rec.Code)
	}

	for i := 0; i < 3; i++ {
		s.handleFrame(frameEvent{frame: testFrame(8), at: time.Now()})
	}
	got := decode(t, do(t, s, "GET", "/dashboard/record/status", ""))
	if got["recording"] != false || got["current"] != float64(3) {
		t.Errorf("status %v", got)
	}

	rows, meta := readRecording(t, filepath.Join(s.cfg.Record.Dir, filename))
	if len(rows) != 3 || meta.ID == "" {
		t.Errorf("rows %d meta %+v", len(rows), meta)
	}

	// Frames after the recording finished are not written anywhere.
	s.handleFrame(frameEvent{frame: testFrame(8), at: time.Now()})
	if got := decode(t, do(t, s, "POST", "/dashboard/record/stop", "")); got["message"] != "Not recording" {
		t.Errorf("stop %v", got)
	}
}
