package main

import (
	"sync"
	"time"

	"github.com/sdrview/pkg/backend"
	"github.com/sdrview/pkg/spectrum"
	"github.com/sdrview/pkg/stream"
)

// ServerState is everything the HTTP handlers read about the live display.
// It is written by the frame sink and the renderer observers.
type ServerState struct {
	mu sync.RWMutex

	// Latest rendered frame
	Frame         *spectrum.Frame
	FrameCount    uint64
	DroppedFrames uint64
	LastFrameAt   time.Time

	// Derived displays
	Persistence *spectrum.Persistence
	Waterfall   *spectrum.Waterfall

	// Backend feedback
	StreamState stream.State
	Analytics   backend.Analytics
	Status      string

	// Recording
	Recording        bool
	RecordingID      string
	RecordingFile    string
	RecordingFrames  int // frames to record, 0 until stopped
	RecordingCurrent int
	Recorder         *FrameRecorder
}

func newServerState(cfg *Config) *ServerState {
	return &ServerState{
		Persistence: spectrum.NewPersistence(cfg.Chart.PersistenceAlpha),
		Waterfall:   spectrum.NewWaterfall(cfg.Chart.WaterfallRows),
		Status:      "Ready",
	}
}

// latestFrame returns a copy of the most recent frame, or nil.
func (s *ServerState) latestFrame() *spectrum.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Frame == nil {
		return nil
	}
	f := *s.Frame
	return &f
}

func (s *ServerState) setStatus(status string) {
	s.mu.Lock()
	s.Status = status
	s.mu.Unlock()
}
