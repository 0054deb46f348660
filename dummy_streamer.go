package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"math/rand"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/sdrview/pkg/backend"
	"github.com/sdrview/pkg/spectrum"
)

const (
	simBins        = 1024
	simInterval    = 33 * time.Millisecond // about 30 Hz, like the real backend
	simNoiseFloor  = -50.0
	simMaxPeaks    = 5
	simMaxAverage  = 16
	simTaskStep    = 50 * time.Millisecond
	simTimeFormat  = "2006-01-02 15:04:05.000"
	simUploadLimit = 8 << 20

	simSweepStartMHz = 20.0
	simSweepStopMHz  = 6020.0
	simSweepStepMHz  = 1.0
)

// simDCOffset is the LO leakage seen at the centre bin unless DC
// suppression is on.
var simDCOffset = complex(0.02, 0.01)

// simCarrier is a synthetic tone drifting around a fixed fraction of the
// displayed span.
type simCarrier struct {
	pos    float64 // fraction of the span, 0..1
	drift  float64 // fraction of the span
	period float64 // seconds
	power  float64 // dBFS
}

var simCarriers = []simCarrier{
	{pos: 0.25, drift: 0.05, period: 7, power: -5},
	{pos: 0.55, drift: 0.02, period: 3, power: -14},
	{pos: 0.8, drift: 0.1, period: 11, power: -25},
}

// simActivity raises the sweep floor across a band by level dB.
var simActivity = []struct {
	spectrum.Band
	level float64
}{
	{spectrum.Band{Name: "FM", LowMHz: 88, HighMHz: 108}, 30},
	{spectrum.Band{Name: "ISM", LowMHz: 433, HighMHz: 435}, 35},
	{spectrum.Band{Name: "LTE", LowMHz: 1930, HighMHz: 1990}, 18},
	{spectrum.Band{Name: "WiFi", LowMHz: 2412, HighMHz: 2472}, 22},
}

var simSignals = map[string]backend.Signal{
	"fm_broadcast": {Type: "FM Broadcast", Description: "Wideband FM radio", Frequency: "87.5 - 108 MHz", Mode: "WFM", Modulation: "FM", Bandwidth: "200 kHz", Location: "Worldwide", Audio: "Yes"},
	"pocsag":       {Type: "POCSAG", Description: "Pager protocol", Frequency: "929 MHz", Mode: "NFM", Modulation: "FSK", Bandwidth: "12.5 kHz", Location: "Worldwide"},
	"adsb":         {Type: "ADS-B", Description: "Aircraft position broadcast", Frequency: "1090 MHz", Mode: "Pulse", Modulation: "PPM", Bandwidth: "2 MHz", Location: "Worldwide"},
	"keyfob":       {Type: "Key fob", Description: "Car and garage remotes", Frequency: "315 / 433.92 MHz", Mode: "Burst", Modulation: "OOK", Bandwidth: "20 kHz", Location: "Worldwide"},
}

// Simulator is an in-process stand-in for the SDR backend. It serves the
// same endpoints with synthetic data so the dashboard runs without radios.
type Simulator struct {
	logger   *zap.Logger
	bins     int
	interval time.Duration
	start    time.Time

	mu          sync.Mutex
	rng         *rand.Rand
	analyzer    *spectrumAnalyzer
	noiseSigma  float64
	iq          []complex128
	settings    backend.Settings
	last        []float64
	tasks       []backend.Task
	classifiers []backend.Classification
	files       map[string]backend.FileEntry
}

func newSimulator(logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now()
	sim := &Simulator{
		logger:   logger,
		bins:     simBins,
		interval: simInterval,
		start:    now,
		rng:      rand.New(rand.NewSource(now.UnixNano())),
		settings: backend.Settings{
			Frequency:       backend.Float(102.1e6),
			Gain:            backend.Float(30),
			SampleRate:      backend.Float(16e6),
			Bandwidth:       backend.Float(16e6),
			AveragingCount:  backend.Int(10),
			DCSuppress:      backend.Bool(true),
			PeakDetection:   backend.Bool(true),
			MinPeakDistance: backend.Float(10),
			NumberOfPeaks:   backend.Int(simMaxPeaks),
			SweepingEnabled: backend.Bool(false),
			FrequencyStart:  backend.Float(50e6),
			FrequencyStop:   backend.Float(6000e6),
			SDR:             backend.String("hackrf"),
		},
		classifiers: []backend.Classification{
			{Label: "FM", Channel: 12, Frequency: backend.Float(102.1), Bandwidth: backend.Float(0.2)},
			{Label: "NOAA", Channel: 1, Frequency: backend.Float(162.4), Bandwidth: backend.Float(0.025)},
			{Label: "ISM", Channel: "433", Frequency: backend.Float(433.92), Bandwidth: backend.Float(1.7)},
		},
		files: make(map[string]backend.FileEntry),
	}
	sim.analyzer = newSpectrumAnalyzer(sim.bins)
	sim.noiseSigma = sim.analyzer.noiseSigma(simNoiseFloor)
	sim.iq = make([]complex128, sim.bins)
	sim.addFileLocked("captures", true, 0)
	sim.addFileLocked("captures/fm_2024_05_01_10_00_00.pkl", false, 8192)
	return sim
}

// Handler returns the simulator's routes.
func (sim *Simulator) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/stream", sim.handleStream).Methods("GET")
	r.HandleFunc("/api/get_settings", sim.handleGetSettings).Methods("GET")
	r.HandleFunc("/api/update_settings", sim.handleUpdateSettings).Methods("POST")
	r.HandleFunc("/api/select_sdr", sim.handleSelectSDR).Methods("POST")
	r.HandleFunc("/api/start_sweep", sim.handleStartSweep).Methods("POST")
	r.HandleFunc("/api/analytics", sim.handleAnalytics).Methods("GET")
	r.HandleFunc("/api/get_classifiers", sim.handleClassifiers).Methods("GET")
	r.HandleFunc("/api/upload_classifier", sim.handleUploadClassifier).Methods("POST")
	r.HandleFunc("/api/download_all_bands", sim.handleDownloadAllBands).Methods("GET")
	r.HandleFunc("/api/sweep", sim.handleSweep).Methods("GET")
	r.HandleFunc("/sigid/data", sim.handleSigID).Methods("GET")
	r.HandleFunc("/actions/tasks", sim.handleTasks).Methods("GET")
	r.HandleFunc("/actions/tasks", sim.handleAddTask).Methods("POST")
	r.HandleFunc("/actions/tasks/execute", sim.handleExecuteTasks).Methods("POST")

	fm := r.PathPrefix("/file_manager/files").Subrouter()
	fm.HandleFunc("", sim.handleListFiles).Methods("GET")
	fm.HandleFunc("/metadata", sim.handleFileMetadata).Methods("GET")
	fm.HandleFunc("/create_directory", sim.handleCreateDirectory).Methods("POST")
	fm.HandleFunc("/move", sim.handleMoveFile).Methods("POST")
	fm.HandleFunc("/rename", sim.handleRenameFile).Methods("POST")
	fm.HandleFunc("/delete", sim.handleDeleteFile).Methods("POST")
	return r
}

// RunSimulator serves the synthetic backend on port until ctx is done.
func RunSimulator(ctx context.Context, port int, logger *zap.Logger) error {
	sim := newSimulator(logger)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           sim.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	sim.logger.Info("simulated backend listening", zap.Int("port", port))

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err = srv.Shutdown(shutdownCtx)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// nextSpectrum synthesizes one sample vector at time t and keeps it for
// the analytics endpoint.
func (sim *Simulator) nextSpectrum(t time.Time) []float64 {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	count := 1
	if sim.settings.AveragingCount != nil && *sim.settings.AveragingCount > 1 {
		count = min(*sim.settings.AveragingCount, simMaxAverage)
	}
	dcSuppress := sim.settings.DCSuppress != nil && *sim.settings.DCSuppress
	elapsed := t.Sub(sim.start).Seconds()

	acc := make([]float64, sim.bins)
	for k := 0; k < count; k++ {
		sim.synthesize(sim.iq, elapsed, dcSuppress)
		sim.analyzer.accumulate(acc, sim.iq)
	}
	sim.last = powerDB(acc, count)
	return sim.last
}

// synthesize fills iq with one block of receiver output: white noise at the
// noise floor, the carriers, and the DC offset.
func (sim *Simulator) synthesize(iq []complex128, elapsed float64, dcSuppress bool) {
	n := float64(len(iq))
	for i := range iq {
		iq[i] = complex(sim.rng.NormFloat64()*sim.noiseSigma, sim.rng.NormFloat64()*sim.noiseSigma) + simDCOffset
	}
	for _, c := range simCarriers {
		bin := (c.pos + c.drift*math.Sin(2*math.Pi*elapsed/c.period)) * n
		step := 2 * math.Pi * (bin - n/2) / n
		amp := math.Pow(10, c.power/20)
		phase := sim.rng.Float64() * 2 * math.Pi
		for i := range iq {
			iq[i] += cmplx.Rect(amp, step*float64(i)+phase)
		}
	}
	if dcSuppress {
		var mean complex128
		for _, v := range iq {
			mean += v
		}
		mean /= complex(n, 0)
		for i := range iq {
			iq[i] -= mean
		}
	}
}

func (sim *Simulator) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", 500)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(sim.interval)
	defer ticker.Stop()
	for {
		now := time.Now()
		b, err := json.Marshal(map[string]interface{}{
			"fft":  sim.nextSpectrum(now),
			"time": now.Format(simTimeFormat),
		})
		if err != nil {
			sim.logger.Error("encode sample", zap.Error(err))
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
			return
		}
		flusher.Flush()

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// peaks returns up to limit local maxima of the last sample that rise 10 dB
// above the noise floor, strongest first, with frequencies in Hz.
func (sim *Simulator) peaks(limit int) []backend.Peak {
	sim.mu.Lock()
	v := append([]float64(nil), sim.last...)
	set := sim.settings
	sim.mu.Unlock()
	if len(v) < 3 {
		return nil
	}

	var idx []int
	for i := 1; i < len(v)-1; i++ {
		if v[i] > simNoiseFloor+10 && v[i] >= v[i-1] && v[i] > v[i+1] {
			idx = append(idx, i)
		}
	}
	sort.Slice(idx, func(a, b int) bool { return v[idx[a]] > v[idx[b]] })
	if len(idx) > limit {
		idx = idx[:limit]
	}

	d := spectrum.DisplaySettings{
		CenterFreqHz: *set.Frequency,
		SampleRateHz: *set.SampleRate,
		Sweeping:     *set.SweepingEnabled,
		SweepStart:   *set.FrequencyStart,
		SweepStop:    *set.FrequencyStop,
		SDR:          *set.SDR,
	}
	center, span := d.Span()
	binWidth := span / float64(len(v))
	out := make([]backend.Peak, 0, len(idx))
	for _, i := range idx {
		p := backend.Peak{
			Frequency: backend.Float(spectrum.BinFrequency(i, len(v), center, span)),
			Power:     backend.Float(v[i]),
			Bandwidth: backend.Float(halfPowerWidth(v, i) * binWidth),
		}
		if c, ok := sim.classify(*p.Frequency); ok {
			p.Classification = []backend.Label{{Label: c.Label, Channel: c.Channel}}
		}
		out = append(out, p)
	}
	return out
}

// halfPowerWidth counts the bins around i within 3 dB of its level.
func halfPowerWidth(v []float64, i int) float64 {
	lo, hi := i, i
	for lo > 0 && v[lo-1] >= v[i]-3 {
		lo--
	}
	for hi < len(v)-1 && v[hi+1] >= v[i]-3 {
		hi++
	}
	return float64(hi - lo + 1)
}

func (sim *Simulator) classify(freqHz float64) (backend.Classification, bool) {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	for _, c := range sim.classifiers {
		if c.Frequency == nil || c.Bandwidth == nil {
			continue
		}
		if math.Abs(freqHz/1e6-*c.Frequency) <= *c.Bandwidth/2 {
			return c, true
		}
	}
	return backend.Classification{}, false
}

func (sim *Simulator) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	sim.mu.Lock()
	n := simMaxPeaks
	if sim.settings.NumberOfPeaks != nil && *sim.settings.NumberOfPeaks > 0 {
		n = *sim.settings.NumberOfPeaks
	}
	sim.mu.Unlock()

	peaks := sim.peaks(n)
	classified := []backend.Classification{}
	for _, p := range peaks {
		if len(p.Classification) == 0 {
			continue
		}
		classified = append(classified, backend.Classification{
			Label:     p.Classification[0].Label,
			Channel:   p.Classification[0].Channel,
			Frequency: p.Frequency,
			Bandwidth: p.Bandwidth,
		})
	}
	json.NewEncoder(w).Encode(backend.Analytics{Peaks: peaks, Classifications: classified})
}

func (sim *Simulator) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	json.NewEncoder(w).Encode(sim.settings)
}

func (sim *Simulator) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch backend.Settings
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeSimError(w, 400, "Invalid JSON")
		return
	}
	sim.mu.Lock()
	sim.settings.Merge(patch)
	cur := sim.settings
	sim.mu.Unlock()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"settings": cur,
	})
}

func (sim *Simulator) handleSelectSDR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SDRName string `json:"sdr_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SDRName == "" {
		writeSimError(w, 400, "sdr_name is required")
		return
	}
	sim.mu.Lock()
	sim.settings.SDR = backend.String(req.SDRName)
	sim.mu.Unlock()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "SDR switched to " + req.SDRName,
	})
}

func (sim *Simulator) handleStartSweep(w http.ResponseWriter, r *http.Request) {
	var req backend.SweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSimError(w, 400, "Invalid JSON")
		return
	}
	if req.FrequencyStop <= req.FrequencyStart {
		writeSimError(w, 400, "frequencyStop must be above frequencyStart")
		return
	}
	sim.mu.Lock()
	sim.settings.SweepingEnabled = backend.Bool(true)
	sim.settings.FrequencyStart = backend.Float(req.FrequencyStart)
	sim.settings.FrequencyStop = backend.Float(req.FrequencyStop)
	if req.Bandwidth > 0 {
		sim.settings.Bandwidth = backend.Float(req.Bandwidth)
	}
	sim.mu.Unlock()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "Sweep started",
	})
}

// handleSweep reports a synthetic full sweep over the configured sweep
// range, or the whole tuner range when no sweep was started.
func (sim *Simulator) handleSweep(w http.ResponseWriter, r *http.Request) {
	sim.mu.Lock()
	lo, hi := simSweepStartMHz, simSweepStopMHz
	if s := sim.settings; s.SweepingEnabled != nil && *s.SweepingEnabled &&
		s.FrequencyStart != nil && s.FrequencyStop != nil {
		lo, hi = *s.FrequencyStart/1e6, *s.FrequencyStop/1e6
	}
	n := int((hi-lo)/simSweepStepMHz) + 1
	tr := backend.SweepTrace{X: make([]float64, n), Y: make([]float64, n)}
	for i := range tr.X {
		f := lo + float64(i)*simSweepStepMHz
		tr.X[i] = f
		tr.Y[i] = sim.rng.NormFloat64() * 2
		for _, a := range simActivity {
			if f >= a.LowMHz && f <= a.HighMHz {
				tr.Y[i] += a.level
			}
		}
	}
	sim.mu.Unlock()
	json.NewEncoder(w).Encode(tr)
}

func (sim *Simulator) handleSigID(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(backend.SignalDatabase{Signals: simSignals})
}

func (sim *Simulator) handleClassifiers(w http.ResponseWriter, r *http.Request) {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	json.NewEncoder(w).Encode(sim.classifiers)
}

func (sim *Simulator) handleUploadClassifier(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, simUploadLimit)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeSimError(w, 400, "No file part")
		return
	}
	defer file.Close()
	b, err := io.ReadAll(file)
	if err != nil {
		writeSimError(w, 400, err.Error())
		return
	}
	var list []backend.Classification
	if err := json.Unmarshal(b, &list); err != nil {
		writeSimError(w, 400, "Invalid classifier file")
		return
	}
	sim.mu.Lock()
	sim.classifiers = append(sim.classifiers, list...)
	sim.mu.Unlock()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": fmt.Sprintf("Uploaded %d classifier bands", len(list)),
	})
}

func (sim *Simulator) handleDownloadAllBands(w http.ResponseWriter, r *http.Request) {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sim.classifiers)
}

func (sim *Simulator) handleTasks(w http.ResponseWriter, r *http.Request) {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	tasks := sim.tasks
	if tasks == nil {
		tasks = []backend.Task{}
	}
	json.NewEncoder(w).Encode(tasks)
}

func (sim *Simulator) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var t backend.Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeSimError(w, 400, "Invalid JSON")
		return
	}
	if err := t.Validate(); err != nil {
		writeSimError(w, 400, err.Error())
		return
	}
	sim.mu.Lock()
	sim.tasks = append(sim.tasks, t)
	sim.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(t)
}

// handleExecuteTasks runs the queue, streaming one status per task.
func (sim *Simulator) handleExecuteTasks(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", 500)
		return
	}
	sim.mu.Lock()
	tasks := append([]backend.Task(nil), sim.tasks...)
	sim.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	send := func(st backend.TaskStatus) {
		b, _ := json.Marshal(st)
		fmt.Fprintf(w, "data: %s\n\n", b)
		flusher.Flush()
	}
	for i, t := range tasks {
		idx := i
		send(backend.TaskStatus{Status: t.Describe() + "...", TaskIndex: &idx})
		select {
		case <-r.Context().Done():
			return
		case <-time.After(simTaskStep):
		}
		sim.applyTask(t)
		send(backend.TaskStatus{Status: "Completed: " + t.Describe(), TaskIndex: &idx})
	}
	send(backend.TaskStatus{Status: "Finished executing tasks"})
}

func (sim *Simulator) applyTask(t backend.Task) {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	switch t.Type {
	case backend.TaskTune:
		sim.settings.Frequency = t.Frequency
		sim.settings.SweepingEnabled = backend.Bool(false)
	case backend.TaskGain:
		sim.settings.Gain = t.Value
	case backend.TaskBandwidth:
		sim.settings.Bandwidth = t.Value
	case backend.TaskRecord:
		name := fmt.Sprintf("%s_%s.pkl", t.Label, time.Now().Format("2006_01_02_15_04_05"))
		sim.addFileLocked(path.Join("captures", name), false, int64(sim.bins*8))
	}
}

// In-memory file manager. Paths are slash separated and relative to the
// recordings root.

func (sim *Simulator) addFileLocked(p string, isDir bool, size int64) {
	base := path.Base(p)
	ext := path.Ext(base)
	if isDir {
		ext = ""
	}
	sim.files[p] = backend.FileEntry{
		ID:    p,
		Name:  strings.TrimSuffix(base, ext),
		Ext:   ext,
		Size:  size,
		Date:  time.Now().Format(time.RFC3339),
		IsDir: isDir,
	}
}

func (sim *Simulator) handleListFiles(w http.ResponseWriter, r *http.Request) {
	dir := strings.Trim(r.URL.Query().Get("path"), "/")
	sim.mu.Lock()
	out := []backend.FileEntry{}
	for p, f := range sim.files {
		parent := path.Dir(p)
		if parent == "." {
			parent = ""
		}
		if parent == dir {
			out = append(out, f)
		}
	}
	sim.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	json.NewEncoder(w).Encode(backend.Listing{Files: out, Path: dir})
}

func (sim *Simulator) handleFileMetadata(w http.ResponseWriter, r *http.Request) {
	p := strings.Trim(r.URL.Query().Get("path"), "/")
	sim.mu.Lock()
	f, ok := sim.files[p]
	set := sim.settings
	last := append([]float64(nil), sim.last...)
	sim.mu.Unlock()
	if !ok || f.IsDir {
		writeSimError(w, 404, "File not found")
		return
	}
	if last == nil {
		last = []float64{}
	}
	json.NewEncoder(w).Encode(backend.RecordingMetadata{
		Metadata: map[string]interface{}{
			"label":       strings.SplitN(f.Name, "_", 2)[0],
			"center_freq": *set.Frequency,
			"bandwidth":   *set.Bandwidth,
			"sample_rate": *set.SampleRate,
			"gain":        *set.Gain,
			"averaging":   *set.AveragingCount,
			"max_power":   maxPower(last),
		},
		FFTData: last,
	})
}

func maxPower(v []float64) interface{} {
	if len(v) == 0 {
		return nil
	}
	return floats.Max(v)
}

func (sim *Simulator) handleCreateDirectory(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeSimError(w, 400, "name is required")
		return
	}
	dir := strings.Trim(req.Path, "/")
	p := path.Join(dir, req.Name)
	sim.mu.Lock()
	defer sim.mu.Unlock()
	if _, exists := sim.files[p]; exists {
		writeSimError(w, 400, "Directory already exists")
		return
	}
	sim.addFileLocked(p, true, 0)
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

func (sim *Simulator) handleMoveFile(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeSimError(w, 400, "name is required")
		return
	}
	from := path.Join(strings.Trim(req.Src, "/"), req.Name)
	to := path.Join(strings.Trim(req.Dest, "/"), req.Name)
	sim.mu.Lock()
	defer sim.mu.Unlock()
	if !sim.renameLocked(from, to) {
		writeSimError(w, 404, "File not found")
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

func (sim *Simulator) handleRenameFile(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OldPath == "" || req.NewPath == "" {
		writeSimError(w, 400, "old_path and new_path are required")
		return
	}
	from, to := strings.Trim(req.OldPath, "/"), strings.Trim(req.NewPath, "/")
	sim.mu.Lock()
	defer sim.mu.Unlock()
	if _, exists := sim.files[to]; exists {
		writeSimError(w, 409, "New file name already exists")
		return
	}
	if !sim.renameLocked(from, to) {
		writeSimError(w, 404, "File not found")
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

// renameLocked moves from and everything below it to to.
func (sim *Simulator) renameLocked(from, to string) bool {
	f, ok := sim.files[from]
	if !ok {
		return false
	}
	var children []string
	for p := range sim.files {
		if strings.HasPrefix(p, from+"/") {
			children = append(children, p)
		}
	}
	for _, p := range children {
		child := sim.files[p]
		delete(sim.files, p)
		child.ID = to + strings.TrimPrefix(p, from)
		sim.files[child.ID] = child
	}
	delete(sim.files, from)
	base := path.Base(to)
	f.ID = to
	f.Name = strings.TrimSuffix(base, f.Ext)
	sim.files[to] = f
	return true
}

func (sim *Simulator) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeSimError(w, 400, "path is required")
		return
	}
	p := strings.Trim(req.Path, "/")
	sim.mu.Lock()
	defer sim.mu.Unlock()
	if _, ok := sim.files[p]; !ok {
		writeSimError(w, 404, "File not found")
		return
	}
	for k := range sim.files {
		if k == p || strings.HasPrefix(k, p+"/") {
			delete(sim.files, k)
		}
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

func writeSimError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{"error": msg})
}
