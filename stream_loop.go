package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sdrview/pkg/spectrum"
)

type frameEvent struct {
	frame spectrum.Frame
	at    time.Time
}

// Frame receives rendered frames from the renderer. It never blocks the
// render loop: when the frame loop is behind, the frame is dropped.
func (s *Server) Frame(f spectrum.Frame) {
	select {
	case s.frames <- frameEvent{frame: f, at: time.Now()}:
	default:
		s.state.mu.Lock()
		s.state.DroppedFrames++
		n := s.state.DroppedFrames
		s.state.mu.Unlock()
		if n%100 == 1 {
			s.logger.Warn("frame loop behind, dropping frames", zap.Uint64("dropped", n))
		}
	}
}

// runFrameLoop updates the derived displays, feeds the recorder and
// broadcasts each frame.
func (s *Server) runFrameLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.frames:
			s.handleFrame(ev)
		}
	}
}

func (s *Server) handleFrame(ev frameEvent) {
	f := ev.frame

	s.state.mu.Lock()
	s.state.Frame = &f
	s.state.FrameCount++
	s.state.LastFrameAt = ev.at
	s.state.Persistence.Add(f.Y)
	s.state.Waterfall.Push(f.Y)
	trace := s.state.Persistence.Trace()
	s.state.mu.Unlock()

	s.recordFrame(ev)

	if s.hub.count() > 0 {
		s.hub.broadcastJSON(s.frameMessage(f, trace))
	}
}

func (s *Server) frameMessage(f spectrum.Frame, persistence []float64) map[string]interface{} {
	msg := map[string]interface{}{
		"type":  "frame",
		"frame": f,
	}
	if len(persistence) == len(f.Y) {
		msg["persistence"] = persistence
	}
	return msg
}
