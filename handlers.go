package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"github.com/sdrview/pkg/backend"
	"github.com/sdrview/pkg/settings"
	"github.com/sdrview/pkg/spectrum"
)

// Upload and sweep status texts shown on the dashboard.
const (
	statusUploading      = "Uploading..."
	statusUploadFailed   = "Upload failed."
	statusDownloadFailed = "Download failed."
	statusSweepStarting  = "Starting sweep..."
	statusSweepStarted   = "Sweep started"
	statusSweepFailed    = "Error starting sweep"

	bandsFilename  = "all_bands.json"
	maxUploadBytes = 32 << 20
)

// displayRequest is the body of POST /dashboard/display and of "display"
// websocket messages. Only the fields present are changed.
type displayRequest struct {
	MinY       *float64 `json:"minY,omitempty"`
	MaxY       *float64 `json:"maxY,omitempty"`
	ThrottleMs *int     `json:"throttleMs,omitempty"`
	ShowPeaks  *bool    `json:"showPeaks,omitempty"`
}

// validate checks the request against the current settings.
func (d displayRequest) validate(cur spectrum.DisplaySettings) error {
	if d.ThrottleMs != nil && *d.ThrottleMs < 0 {
		return errors.New("throttleMs must not be negative")
	}
	minY, maxY := cur.MinY, cur.MaxY
	if d.MinY != nil {
		minY = *d.MinY
	}
	if d.MaxY != nil {
		maxY = *d.MaxY
	}
	if minY >= maxY {
		return fmt.Errorf("minY %g must be below maxY %g", minY, maxY)
	}
	return nil
}

func (d displayRequest) patch() settings.Patch {
	p := settings.Patch{MinY: d.MinY, MaxY: d.MaxY, ShowPeaks: d.ShowPeaks}
	if d.ThrottleMs != nil {
		iv := time.Duration(*d.ThrottleMs) * time.Millisecond
		p.ThrottleInterval = &iv
	}
	return p
}

func displayResponse(d spectrum.DisplaySettings) map[string]interface{} {
	center, span := d.Span()
	return map[string]interface{}{
		"minY":         d.MinY,
		"maxY":         d.MaxY,
		"throttleMs":   d.ThrottleInterval.Milliseconds(),
		"showPeaks":    d.ShowPeaks,
		"centerFreqHz": center,
		"spanHz":       span,
		"sweeping":     d.Sweeping,
		"sdr":          d.SDR,
	}
}

// Dashboard handlers

func (s *Server) handleDisplayGet(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(displayResponse(s.store.Snapshot()))
}

func (s *Server) handleDisplayUpdate(w http.ResponseWriter, r *http.Request) {
	var req displayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", 400)
		return
	}
	if err := req.validate(s.store.Snapshot()); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	s.store.Update(r.Context(), req.patch())
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"display": displayResponse(s.store.Snapshot()),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.state.mu.RLock()
	resp := map[string]interface{}{
		"status":    s.state.Status,
		"state":     s.state.StreamState.String(),
		"frames":    s.state.FrameCount,
		"dropped":   s.state.DroppedFrames,
		"recording": s.state.Recording,
	}
	if !s.state.LastFrameAt.IsZero() {
		resp["lastFrameAt"] = s.state.LastFrameAt.Format(time.RFC3339Nano)
	}
	s.state.mu.RUnlock()

	resp["renderer"] = s.rend.Stats()
	resp["clients"] = s.hub.count()
	resp["backend"] = s.cfg.Backend
	json.NewEncoder(w).Encode(resp)
}

// peakRows formats analytics peaks for display: frequency in MHz, power in
// dB and bandwidth as reported, each to three decimals or N/A.
func peakRows(peaks []backend.Peak) []map[string]string {
	rows := make([]map[string]string, 0, len(peaks))
	for _, p := range peaks {
		rows = append(rows, map[string]string{
			"frequency":      backend.FormatFloat(p.Frequency, 1e6, 3),
			"power":          backend.FormatFloat(p.Power, 1, 3),
			"bandwidth":      backend.FormatFloat(p.Bandwidth, 1, 3),
			"classification": p.Labels(),
		})
	}
	return rows
}

func (s *Server) handlePeaks(w http.ResponseWriter, r *http.Request) {
	s.state.mu.RLock()
	peaks := s.state.Analytics.Peaks
	s.state.mu.RUnlock()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"peaks": peakRows(peaks),
	})
}

// Rendered views

func (s *Server) handleSpectrumChart(w http.ResponseWriter, r *http.Request) {
	s.state.mu.RLock()
	var f spectrum.Frame
	ok := s.state.Frame != nil
	if ok {
		f = *s.state.Frame
	}
	trace := s.state.Persistence.Trace()
	s.state.mu.RUnlock()
	if !ok {
		http.Error(w, "No frame received yet", http.StatusServiceUnavailable)
		return
	}

	opts := spectrum.ChartOptions{
		Width:       queryInt(r, "width", s.cfg.Chart.Width),
		Height:      queryInt(r, "height", s.cfg.Chart.Height),
		Persistence: trace,
	}
	format, contentType := spectrum.PNG, "image/png"
	if strings.HasSuffix(r.URL.Path, ".svg") {
		format, contentType = spectrum.SVG, "image/svg+xml"
	}

	var buf bytes.Buffer
	if err := spectrum.RenderChart(&buf, f, format, opts); err != nil {
		s.logger.Warn("chart render failed", zap.Error(err))
		http.Error(w, "Render error: "+err.Error(), 500)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (s *Server) handleWaterfall(w http.ResponseWriter, r *http.Request) {
	minY, maxY := s.store.Snapshot().YRange()

	var buf bytes.Buffer
	s.state.mu.RLock()
	err := s.state.Waterfall.WritePNG(&buf, minY, maxY)
	s.state.mu.RUnlock()
	if err != nil {
		http.Error(w, "Render error: "+err.Error(), 500)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 || v > 8192 {
		return def
	}
	return v
}

// writeBackendError relays a backend failure. Errors the backend answered
// keep their status code; transport errors become 502.
func (s *Server) writeBackendError(w http.ResponseWriter, err error) {
	var herr *backend.HTTPError
	if errors.As(err, &herr) {
		http.Error(w, herr.Message, herr.StatusCode)
		return
	}
	s.logger.Warn("backend request failed", zap.Error(err))
	http.Error(w, "Backend unavailable: "+err.Error(), http.StatusBadGateway)
}

// Backend pass-through handlers

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	dev, err := s.be.GetSettings(r.Context())
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	s.store.Observe(dev)
	json.NewEncoder(w).Encode(dev)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch backend.Settings
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "Invalid JSON", 400)
		return
	}
	if patch.Empty() {
		http.Error(w, "No settings provided", 400)
		return
	}
	if err := s.store.Update(r.Context(), settings.Patch{Settings: patch}); err != nil {
		s.writeBackendError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"settings": s.store.Device(),
	})
}

func (s *Server) handleSelectSDR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SDRName string `json:"sdr_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SDRName == "" {
		http.Error(w, "sdr_name is required", 400)
		return
	}
	if err := s.be.SelectSDR(r.Context(), req.SDRName); err != nil {
		s.writeBackendError(w, err)
		return
	}
	s.store.Observe(backend.Settings{SDR: backend.String(req.SDRName)})
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"sdr":     req.SDRName,
	})
}

func (s *Server) handleStartSweep(w http.ResponseWriter, r *http.Request) {
	var req backend.SweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", 400)
		return
	}
	if req.FrequencyStop <= req.FrequencyStart {
		http.Error(w, "frequencyStop must be above frequencyStart", 400)
		return
	}

	s.broadcastStatus(statusSweepStarting)
	if err := s.be.StartSweep(r.Context(), req); err != nil {
		s.broadcastStatus(statusSweepFailed)
		s.writeBackendError(w, err)
		return
	}
	s.store.Observe(backend.Settings{
		SweepingEnabled: backend.Bool(true),
		FrequencyStart:  backend.Float(req.FrequencyStart),
		FrequencyStop:   backend.Float(req.FrequencyStop),
	})
	s.broadcastStatus(statusSweepStarted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"status":  statusSweepStarted,
	})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := s.be.Analytics(r.Context())
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	json.NewEncoder(w).Encode(a)
}

func (s *Server) handleClassifiers(w http.ResponseWriter, r *http.Request) {
	list, err := s.be.Classifiers(r.Context())
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	if list == nil {
		list = []backend.Classification{}
	}
	json.NewEncoder(w).Encode(list)
}

func (s *Server) handleUploadClassifier(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file part", 400)
		return
	}
	defer file.Close()

	s.broadcastStatus(statusUploading)
	msg, err := s.be.UploadClassifier(r.Context(), hdr.Filename, file)
	if err != nil {
		s.broadcastStatus(statusUploadFailed)
		s.writeBackendError(w, err)
		return
	}
	s.broadcastStatus(msg)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": msg,
	})
}

func (s *Server) handleDownloadAllBands(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := s.be.DownloadAllBands(r.Context(), &buf); err != nil {
		s.broadcastStatus(statusDownloadFailed)
		s.writeBackendError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", bandsFilename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}

// Task queue

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.be.Tasks(r.Context())
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	if tasks == nil {
		tasks = []backend.Task{}
	}
	json.NewEncoder(w).Encode(tasks)
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var t backend.Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		http.Error(w, "Invalid JSON", 400)
		return
	}
	if err := t.Validate(); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	stored, err := s.be.AddTask(r.Context(), t)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(stored)
}

// handleExecuteTasks relays the backend's task progress stream to the
// caller as server-sent events.
func (s *Server) handleExecuteTasks(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", 500)
		return
	}

	started := false
	err := s.be.ExecuteTasks(r.Context(), func(st backend.TaskStatus) {
		if !started {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		b, err := json.Marshal(st)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", b)
		flusher.Flush()
		s.hub.broadcastJSON(map[string]interface{}{
			"type":      "task",
			"status":    st.Status,
			"taskIndex": st.TaskIndex,
		})
	})
	if err == nil {
		if !started {
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
		}
		return
	}
	if !started {
		s.writeBackendError(w, err)
		return
	}
	s.logger.Warn("task stream ended with error", zap.Error(err))
}

// File manager

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	l, err := s.be.ListFiles(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	if l.Files == nil {
		l.Files = []backend.FileEntry{}
	}
	json.NewEncoder(w).Encode(l)
}

func (s *Server) handleFileMetadata(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "path is required", 400)
		return
	}
	m, err := s.be.FileMetadata(r.Context(), path)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	json.NewEncoder(w).Encode(m)
}

// fileRequest covers the bodies of the mutating file manager endpoints.
type fileRequest struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Src     string `json:"src"`
	Dest    string `json:"dest"`
	OldPath string `json:"old_path"`
	NewPath string `json:"new_path"`
}

func decodeFileRequest(w http.ResponseWriter, r *http.Request) (fileRequest, bool) {
	var req fileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", 400)
		return req, false
	}
	return req, true
}

func (s *Server) fileResult(w http.ResponseWriter, err error) {
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
	})
}

func (s *Server) handleCreateDirectory(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeFileRequest(w, r)
	if !ok {
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", 400)
		return
	}
	s.fileResult(w, s.be.CreateDirectory(r.Context(), req.Path, req.Name))
}

func (s *Server) handleMoveFile(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeFileRequest(w, r)
	if !ok {
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", 400)
		return
	}
	s.fileResult(w, s.be.MoveFile(r.Context(), req.Src, req.Dest, req.Name))
}

func (s *Server) handleRenameFile(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeFileRequest(w, r)
	if !ok {
		return
	}
	if req.OldPath == "" || req.NewPath == "" {
		http.Error(w, "old_path and new_path are required", 400)
		return
	}
	s.fileResult(w, s.be.RenameFile(r.Context(), req.OldPath, req.NewPath))
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeFileRequest(w, r)
	if !ok {
		return
	}
	if req.Path == "" {
		http.Error(w, "path is required", 400)
		return
	}
	s.fileResult(w, s.be.DeleteFile(r.Context(), req.Path))
}
