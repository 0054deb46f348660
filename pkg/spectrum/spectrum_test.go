package spectrum

import (
	"bytes"
	"image/color"
	"math"
	"strings"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6*math.Max(1, math.Abs(b))
}

func TestBinFrequencies(t *testing.T) {
	s := DefaultDisplaySettings()
	s.CenterFreqHz = 102.1e6
	s.SampleRateHz = 16e6

	got := Frequencies(4, s)
	want := []float64{94.1e6, 98.1e6, 102.1e6, 106.1e6}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Errorf("bin %d: got %f, want %f", i, got[i], want[i])
		}
	}
}

func TestBinFrequencyFormulaAndMonotonic(t *testing.T) {
	s := DefaultDisplaySettings()
	for _, n := range []int{1, 2, 7, 1024, 4096} {
		freqs := Frequencies(n, s)
		for i, f := range freqs {
			want := s.CenterFreqHz - s.SampleRateHz/2 + float64(i)*s.SampleRateHz/float64(n)
			if !almostEqual(f, want) {
				t.Fatalf("n=%d bin %d: got %f, want %f", n, i, f, want)
			}
			if i > 0 && f < freqs[i-1] {
				t.Fatalf("n=%d: frequencies decrease at bin %d", n, i)
			}
		}
	}
}

func TestSweepSpan(t *testing.T) {
	s := DefaultDisplaySettings()
	s.Sweeping = true
	s.SweepStart = 100e6
	s.SweepStop = 200e6
	s.SweepEdges = map[string]float64{"": 0}

	center, span := s.Span()
	if center != 150e6 || span != 100e6 {
		t.Fatalf("got center=%f span=%f", center, span)
	}
	freqs := Frequencies(4, s)
	if !almostEqual(freqs[0], 100e6) || !almostEqual(freqs[2], 150e6) {
		t.Errorf("unexpected sweep frequencies %v", freqs)
	}

	s.SweepEdges = nil
	s.SDR = "sidekiq"
	if _, span := s.Span(); span != 100e6+SidekiqSweepEdgeHz {
		t.Errorf("sidekiq span: got %f", span)
	}
	s.SDR = "hackrf"
	if _, span := s.Span(); span != 100e6+DefaultSweepEdgeHz {
		t.Errorf("hackrf span: got %f", span)
	}
}

func TestTicks(t *testing.T) {
	s := DefaultDisplaySettings()
	s.CenterFreqHz = 100e6
	s.SampleRateHz = 20e6

	ticks := Ticks(s)
	if len(ticks) != NumTicks {
		t.Fatalf("got %d ticks", len(ticks))
	}
	want := []string{"90.00", "95.00", "100.00", "105.00", "110.00"}
	for i, tk := range ticks {
		if tk.Label != want[i] {
			t.Errorf("tick %d: got %q, want %q", i, tk.Label, want[i])
		}
	}
}

func TestPeakIndexInverse(t *testing.T) {
	s := DefaultDisplaySettings()
	n := 1024
	freqs := Frequencies(n, s)
	for _, i := range []int{0, 1, 511, 512, 1023} {
		got, ok := PeakIndex(freqs[i], n, s)
		if !ok || got != i {
			t.Errorf("bin %d: got %d ok=%v", i, got, ok)
		}
	}
	if _, ok := PeakIndex(1e9, n, s); ok {
		t.Error("expected out of range frequency to be rejected")
	}
}

func TestPeakColor(t *testing.T) {
	tests := []struct {
		power float64
		want  color.RGBA
	}{
		{0, color.RGBA{0, 255, 0, 255}},
		{12, color.RGBA{0, 255, 0, 255}},
		{-5, color.RGBA{127, 255, 0, 255}},
		{-10, color.RGBA{255, 255, 0, 255}},
		{-15, color.RGBA{255, 127, 0, 255}},
		{-20, color.RGBA{255, 0, 0, 255}},
		{-25, color.RGBA{255, 0, 0, 255}},
	}
	for _, tt := range tests {
		if got := PeakColor(tt.power); got != tt.want {
			t.Errorf("PeakColor(%v) = %v, want %v", tt.power, got, tt.want)
		}
	}
	if got := ColorString(PeakColor(0)); got != "rgb(0, 255, 0)" {
		t.Errorf("got %q", got)
	}
	if got := ColorString(PeakColor(-25)); got != "rgb(255, 0, 0)" {
		t.Errorf("got %q", got)
	}
}

func TestPeakColorContinuous(t *testing.T) {
	const eps = 1e-9
	dist := func(a, b color.RGBA) int {
		d := func(x, y uint8) int {
			if x > y {
				return int(x - y)
			}
			return int(y - x)
		}
		return d(a.R, b.R) + d(a.G, b.G) + d(a.B, b.B)
	}
	for _, edge := range []float64{0, -10, -20} {
		below, at := PeakColor(edge-eps), PeakColor(edge)
		if dist(below, at) > 1 {
			t.Errorf("jump at %v dB: %v -> %v", edge, below, at)
		}
	}
}

func TestAnnotate(t *testing.T) {
	s := DefaultDisplaySettings()
	s.CenterFreqHz = 102.1e6
	s.SampleRateHz = 16e6
	s.ShowPeaks = true
	sample := Sample{FFT: []float64{-40, -3, -30, 5}, Time: "t0"}

	ann, table := Annotate(sample, s, []int{1, 3, 9})
	if len(ann) != 2 {
		t.Fatalf("got %d annotations, want 2", len(ann))
	}
	if !almostEqual(ann[0].X, 98.1) || ann[0].Y != -3 {
		t.Errorf("first annotation at (%f, %f)", ann[0].X, ann[0].Y)
	}
	if ann[1].Color != "rgb(0, 255, 0)" {
		t.Errorf("got color %q", ann[1].Color)
	}
	if !strings.Contains(ann[0].Text, "98.10 MHz") || !strings.Contains(ann[0].Text, "-3.00 dB") {
		t.Errorf("label %q", ann[0].Text)
	}
	if table == nil {
		t.Fatal("expected peak table")
	}
	if got := strings.Count(table.Text, "MHz"); got != 2 {
		t.Errorf("table has %d rows: %q", got, table.Text)
	}
	if !strings.Contains(table.Text, "Peak 2") {
		t.Errorf("table text %q", table.Text)
	}
}

func TestAnnotateDisabled(t *testing.T) {
	s := DefaultDisplaySettings()
	s.ShowPeaks = false
	sample := Sample{FFT: []float64{-40, -3, -30, 5}}

	ann, table := Annotate(sample, s, []int{0, 1, 2})
	if len(ann) != 0 || table != nil {
		t.Fatalf("expected no annotations, got %v %v", ann, table)
	}

	s.ShowPeaks = true
	ann, table = Annotate(sample, s, nil)
	if len(ann) != 0 || table != nil {
		t.Fatalf("expected no annotations for empty peak list")
	}
}

func TestBuildFrameFollowsSettings(t *testing.T) {
	s := DefaultDisplaySettings()
	s.MinY, s.MaxY = 10, -70
	sample := Sample{FFT: []float64{1, 2, 3, 4}, Time: "x"}

	f := BuildFrame(sample, s, nil)
	if f.MinY != -70 || f.MaxY != 10 {
		t.Errorf("y range (%f, %f)", f.MinY, f.MaxY)
	}
	if f.Bins() != 4 || len(f.X) != 4 || f.Time != "x" {
		t.Errorf("unexpected frame %+v", f)
	}

	s.CenterFreqHz = 500e6
	g := BuildFrame(sample, s, nil)
	if almostEqual(g.X[0], f.X[0]) {
		t.Error("x axis did not follow the new center frequency")
	}
}

func TestDecodeSample(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		time    string
		bins    int
		wantErr bool
	}{
		{"string time", `{"fft":[-1,-2.5,3],"time":"2024-05-01 10:00:00.123"}`, "2024-05-01 10:00:00.123", 3, false},
		{"numeric time", `{"fft":[1],"time":1714557600.125}`, "1714557600.125", 1, false},
		{"missing time", `{"fft":[]}`, "", 0, false},
		{"missing fft", `{"time":"x"}`, "", 0, true},
		{"garbage", `not json`, "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := DecodeSample([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if s.Time != tt.time || s.Len() != tt.bins {
				t.Errorf("got %+v", s)
			}
		})
	}
}

func TestParseFrequency(t *testing.T) {
	tests := map[string]float64{
		"102.1MHz": 102.1e6,
		"2.4G":     2.4e9,
		"500k":     500e3,
		"16e6":     16e6,
		"433.92 M": 433.92e6,
		"100":      100,
	}
	for in, want := range tests {
		got, err := ParseFrequency(in)
		if err != nil || !almostEqual(got, want) {
			t.Errorf("ParseFrequency(%q) = %f, %v", in, got, err)
		}
	}
	if _, err := ParseFrequency("fast"); err == nil {
		t.Error("expected error")
	}
}

func TestPersistence(t *testing.T) {
	p := NewPersistence(0.5)
	p.Add([]float64{0, 0})
	p.Add([]float64{10, -10})
	got := p.Trace()
	if got[0] != 5 || got[1] != -5 {
		t.Errorf("got %v", got)
	}
	p.Add([]float64{1, 2, 3})
	if len(p.Trace()) != 3 {
		t.Error("length change should restart the trace")
	}
}

func TestWaterfall(t *testing.T) {
	w := NewWaterfall(3)
	for i := 0; i < 5; i++ {
		w.Push([]float64{float64(i), float64(i)})
	}
	rows := w.Rows()
	if len(rows) != 3 || rows[0][0] != 2 || rows[2][0] != 4 {
		t.Fatalf("got %v", rows)
	}
	img := w.Image(0, 4)
	if b := img.Bounds(); b.Dx() != 2 || b.Dy() != 3 {
		t.Fatalf("image bounds %v", b)
	}
	var buf bytes.Buffer
	if err := w.WritePNG(&buf, 0, 4); err != nil || buf.Len() == 0 {
		t.Fatalf("png: %v", err)
	}
}

func TestRenderChart(t *testing.T) {
	s := DefaultDisplaySettings()
	s.ShowPeaks = true
	sample := Sample{FFT: []float64{-50, -20, -5, -30, -45, -50, -48, -52}}
	f := BuildFrame(sample, s, []int{2})

	var buf bytes.Buffer
	if err := RenderChart(&buf, f, PNG, ChartOptions{Width: 640, Height: 320}); err != nil {
		t.Fatalf("render png: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("output is not a PNG")
	}

	buf.Reset()
	if err := RenderChart(&buf, f, SVG, ChartOptions{}); err != nil {
		t.Fatalf("render svg: %v", err)
	}
	if !strings.Contains(buf.String(), "<svg") {
		t.Error("output is not an SVG")
	}

	if err := RenderChart(&buf, Frame{}, PNG, ChartOptions{}); err != ErrEmptyFrame {
		t.Errorf("got %v, want ErrEmptyFrame", err)
	}
}

func TestSelectBands(t *testing.T) {
	all, err := SelectBands(AreasOfInterest, nil)
	if err != nil || len(all) != len(AreasOfInterest) {
		t.Errorf("default selection %d bands, %v", len(all), err)
	}
	if none, err := SelectBands(AreasOfInterest, []string{"none"}); err != nil || len(none) != 0 {
		t.Errorf("none selected %v, %v", none, err)
	}
	got, err := SelectBands(AreasOfInterest, []string{"wifi 2.4ghz", " FM Radio"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].LowMHz != 2400 || got[1].HighMHz != 107.7 {
		t.Errorf("selected %+v", got)
	}
	if _, err := SelectBands(AreasOfInterest, []string{"Airband"}); err == nil {
		t.Error("unknown band accepted")
	}
}

func TestPeakInBand(t *testing.T) {
	x := []float64{100, 200, 315, 315.5, 316, 400}
	y := []float64{5, 5, 10, 30, 20, 50}
	p := PeakInBand(x, y, Band{Name: "ISM", LowMHz: 315, HighMHz: 316})
	if p.Points != 3 || p.FreqMHz != 315.5 || p.Power != 30 {
		t.Errorf("peak %+v", p)
	}
	if p := PeakInBand(x, y, Band{LowMHz: 5725, HighMHz: 5850}); p.Points != 0 {
		t.Errorf("uncovered band %+v", p)
	}
}

func TestSweepFrameChart(t *testing.T) {
	x := make([]float64, 601)
	y := make([]float64, len(x))
	for i := range x {
		x[i] = 20 + float64(i)*10
		y[i] = float64(i % 30)
	}
	f := SweepFrame(x, y, SweepMinY, SweepMaxY)
	if len(f.Ticks) != NumTicks || f.Ticks[0].Value != 20 || f.Ticks[NumTicks-1].Value != 6020 {
		t.Errorf("ticks %+v", f.Ticks)
	}
	if f.Ticks[2].Label != "3020" {
		t.Errorf("middle tick %q", f.Ticks[2].Label)
	}

	var buf bytes.Buffer
	opts := ChartOptions{Width: 800, Height: 300, Bands: AreasOfInterest, YName: "Power (dB)"}
	if err := RenderChart(&buf, f, SVG, opts); err != nil {
		t.Fatalf("render: %v", err)
	}
	svg := buf.String()
	for _, want := range []string{"WiFi 5.8GHz", "LTE Band 13", "Power (dB)"} {
		if !strings.Contains(svg, want) {
			t.Errorf("chart missing %q", want)
		}
	}

	// Bands outside the sweep are not drawn.
	buf.Reset()
	narrow := SweepFrame(x[:10], y[:10], SweepMinY, SweepMaxY)
	if err := RenderChart(&buf, narrow, SVG, opts); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "FM Radio") || strings.Contains(buf.String(), "WiFi 2.4GHz") {
		t.Error("band clipping")
	}
}
