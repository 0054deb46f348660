package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"
)

type RecordStartRequest struct {
	Frames int    `json:"frames"`
	Label  string `json:"label"`
}

func (s *Server) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	var req RecordStartRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", 400)
			return
		}
	}
	if req.Frames < 0 {
		http.Error(w, "Invalid frame count", 400)
		return
	}

	s.state.mu.Lock()
	if s.state.Recording {
		s.state.mu.Unlock()
		http.Error(w, "Already recording", 409)
		return
	}

	dataDir := s.cfg.Record.Dir
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		s.state.mu.Unlock()
		http.Error(w, "Failed to create data directory: "+err.Error(), 500)
		return
	}

	id := uuid.NewString()
	prefix := "frames"
	if req.Label != "" {
		prefix = filepath.Base(req.Label)
	}
	filename := fmt.Sprintf("%s_%s.parquet", prefix, time.Now().Format("20060102_150405"))
	f, err := os.Create(filepath.Join(dataDir, filename))
	if err != nil {
		s.state.mu.Unlock()
		http.Error(w, "Failed to create file: "+err.Error(), 500)
		return
	}

	meta := RecordingMetadata{
		ID:        id,
		StartedAt: time.Now().Format(time.RFC3339),
		Backend:   s.cfg.Backend,
		Settings:  s.store.Snapshot(),
	}
	s.state.Recording = true
	s.state.RecordingID = id
	s.state.RecordingFile = filename
	s.state.RecordingFrames = req.Frames
	s.state.RecordingCurrent = 0
	s.state.Recorder = NewFrameRecorder(f, meta)
	s.state.mu.Unlock()

	s.logger.Info("recording started", zap.String("file", filename), zap.Int("frames", req.Frames))
	s.hub.broadcastJSON(map[string]interface{}{
		"type":      "recording_status",
		"recording": true,
		"id":        id,
		"filename":  filename,
		"total":     req.Frames,
		"current":   0,
	})

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"id":       id,
		"filename": filename,
	})
}

// recordFrame appends f to the active recording, if any, and finishes the
// recording once the requested number of frames is reached.
func (s *Server) recordFrame(f frameEvent) {
	s.state.mu.Lock()
	if !s.state.Recording || s.state.Recorder == nil {
		s.state.mu.Unlock()
		return
	}
	if err := s.state.Recorder.Write(f.frame, f.at); err != nil {
		s.state.mu.Unlock()
		s.logger.Error("recording write error", zap.Error(err))
		s.cleanupRecording(err.Error())
		return
	}
	s.state.RecordingCurrent++
	current, total := s.state.RecordingCurrent, s.state.RecordingFrames
	s.state.mu.Unlock()

	if current%100 == 0 {
		s.hub.broadcastJSON(map[string]interface{}{
			"type":    "recording_progress",
			"current": current,
			"total":   total,
		})
	}
	if total > 0 && current >= total {
		s.logger.Info("recording finished", zap.Int("frames", current))
		s.cleanupRecording("")
	}
}

func (s *Server) cleanupRecording(errorMsg string) {
	s.state.mu.Lock()
	rec := s.state.Recorder
	s.state.Recorder = nil
	wasRecording := s.state.Recording
	s.state.Recording = false
	filename := s.state.RecordingFile
	s.state.mu.Unlock()

	if !wasRecording {
		return
	}
	if rec != nil {
		if err := rec.Close(); err != nil && errorMsg == "" {
			errorMsg = err.Error()
			s.logger.Error("failed to finalize recording", zap.String("file", filename), zap.Error(err))
		}
	}

	msg := map[string]interface{}{
		"type":      "recording_status",
		"recording": false,
		"filename":  filename,
		"finished":  true,
	}
	if errorMsg != "" {
		msg["error"] = errorMsg
		msg["finished"] = false
	}
	s.hub.broadcastJSON(msg)
}

func (s *Server) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	s.state.mu.RLock()
	recording := s.state.Recording
	current := s.state.RecordingCurrent
	s.state.mu.RUnlock()

	if !recording {
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "message": "Not recording"})
		return
	}
	s.cleanupRecording("")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "frames": current})
}

func (s *Server) handleRecordStatus(w http.ResponseWriter, r *http.Request) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()

	json.NewEncoder(w).Encode(map[string]interface{}{
		"recording": s.state.Recording,
		"id":        s.state.RecordingID,
		"filename":  s.state.RecordingFile,
		"total":     s.state.RecordingFrames,
		"current":   s.state.RecordingCurrent,
	})
}
