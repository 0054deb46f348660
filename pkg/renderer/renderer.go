// Package renderer turns a live spectrum event stream into display frames.
//
// A Renderer owns a single event loop. Stream messages, throttle timer
// fires, settings and peak updates, analytics results and lifecycle changes
// are all handled on that loop, one at a time, so the frame-building state
// needs no locking.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sdrview/pkg/backend"
	"github.com/sdrview/pkg/spectrum"
	"github.com/sdrview/pkg/stream"
)

// DefaultPollInterval is the analytics refresh period.
const DefaultPollInterval = 250 * time.Millisecond

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("renderer already running")

// Dialer opens the spectrum subscription.
type Dialer interface {
	Dial(ctx context.Context) (stream.Subscription, error)
}

// DialFunc adapts a function to Dialer.
type DialFunc func(ctx context.Context) (stream.Subscription, error)

func (f DialFunc) Dial(ctx context.Context) (stream.Subscription, error) { return f(ctx) }

// AnalyticsSource supplies peak lists.
type AnalyticsSource interface {
	Analytics(ctx context.Context) (backend.Analytics, error)
}

// Sink receives every rendered frame.
type Sink interface {
	Frame(spectrum.Frame)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(spectrum.Frame)

func (f SinkFunc) Frame(fr spectrum.Frame) { f(fr) }

// Config configures a Renderer.
type Config struct {
	Dialer Dialer

	// Analytics is polled every PollInterval for peaks. Optional.
	Analytics    AnalyticsSource
	PollInterval time.Duration

	Settings spectrum.DisplaySettings
	Logger   *zap.Logger
}

// Stats are running counters.
type Stats struct {
	Received     uint64 `json:"received"`
	Rendered     uint64 `json:"rendered"`
	Coalesced    uint64 `json:"coalesced"`
	DecodeErrors uint64 `json:"decodeErrors"`
}

// Renderer consumes a spectrum subscription and emits throttled frames.
type Renderer struct {
	dialer       Dialer
	analytics    AnalyticsSource
	pollInterval time.Duration
	logger       *zap.Logger

	msgs       chan []byte
	states     chan stream.State
	results    chan backend.Analytics
	notify     chan struct{}
	initialSet spectrum.DisplaySettings

	// Latest-wins slots filled from other goroutines and drained by the loop.
	slotMu       sync.Mutex
	nextSettings *spectrum.DisplaySettings
	nextPeaks    []int
	peaksSet     bool

	mu          sync.Mutex
	sinks       []Sink
	onState     func(stream.State)
	onAnalytics func(backend.Analytics)
	state       stream.State
	started     bool
	closed      bool
	cancel      context.CancelFunc
	sub         stream.Subscription
	closeOnce   sync.Once

	received     atomic.Uint64
	rendered     atomic.Uint64
	coalesced    atomic.Uint64
	decodeErrors atomic.Uint64
}

// New returns a renderer. Call Run to start it.
func New(cfg Config) *Renderer {
	r := &Renderer{
		dialer:       cfg.Dialer,
		analytics:    cfg.Analytics,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
		msgs:         make(chan []byte),
		states:       make(chan stream.State, 4),
		results:      make(chan backend.Analytics),
		notify:       make(chan struct{}, 1),
		initialSet:   cfg.Settings,
	}
	if r.pollInterval <= 0 {
		r.pollInterval = DefaultPollInterval
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// AddSink registers a frame receiver. Sinks are called on the render loop
// and must not block.
func (r *Renderer) AddSink(s Sink) {
	r.mu.Lock()
	r.sinks = append(r.sinks, s)
	r.mu.Unlock()
}

// OnState sets the lifecycle observer.
func (r *Renderer) OnState(fn func(stream.State)) {
	r.mu.Lock()
	r.onState = fn
	r.mu.Unlock()
}

// OnAnalytics sets an observer for each accepted analytics result.
func (r *Renderer) OnAnalytics(fn func(backend.Analytics)) {
	r.mu.Lock()
	r.onAnalytics = fn
	r.mu.Unlock()
}

// State returns the connection state.
func (r *Renderer) State() stream.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Stats returns a snapshot of the counters.
func (r *Renderer) Stats() Stats {
	return Stats{
		Received:     r.received.Load(),
		Rendered:     r.rendered.Load(),
		Coalesced:    r.coalesced.Load(),
		DecodeErrors: r.decodeErrors.Load(),
	}
}

// UpdateSettings hands a new settings snapshot to the loop. It applies on
// the next redraw; the subscription is left open.
func (r *Renderer) UpdateSettings(s spectrum.DisplaySettings) {
	r.slotMu.Lock()
	r.nextSettings = &s
	r.slotMu.Unlock()
	r.wake()
}

// SetPeaks replaces the peak list with bin indices into the next sample.
// It overrides peaks from the analytics poller until the next poll result.
func (r *Renderer) SetPeaks(idx []int) {
	cp := append([]int(nil), idx...)
	r.slotMu.Lock()
	r.nextPeaks = cp
	r.peaksSet = true
	r.slotMu.Unlock()
	r.wake()
}

func (r *Renderer) wake() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Close stops the poller and closes the subscription. It is safe to call
// more than once and from any goroutine.
func (r *Renderer) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		cancel, sub := r.cancel, r.sub
		r.sub = nil
		r.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if sub != nil {
			err = sub.Close()
		}
		r.setState(stream.Disconnected)
	})
	return err
}

// Run dials the subscription and processes events until ctx is done or
// Close is called.
func (r *Renderer) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.started = true
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()
	defer r.Close()

	r.setState(stream.Connecting)
	sub, err := r.dialer.Dial(ctx)
	if err != nil {
		r.logger.Warn("failed to open spectrum stream", zap.Error(err))
		return fmt.Errorf("dial spectrum stream: %w", err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		sub.Close()
		return nil
	}
	r.sub = sub
	r.mu.Unlock()

	if n, ok := sub.(stream.StateNotifier); ok {
		n.OnState(func(s stream.State) {
			select {
			case r.states <- s:
			case <-ctx.Done():
			}
		})
	}
	sub.OnMessage(func(b []byte) {
		select {
		case r.msgs <- b:
		case <-ctx.Done():
		}
	})

	if r.analytics != nil {
		go r.poll(ctx)
	}
	r.loop(ctx)
	return nil
}

type loopState struct {
	settings spectrum.DisplaySettings
	pending  *spectrum.Sample
	timer    *time.Timer
	fire     <-chan time.Time

	peakIdx []int
	peakHz  []float64
}

func (r *Renderer) loop(ctx context.Context) {
	ls := &loopState{settings: r.initialSet}
	defer func() {
		if ls.timer != nil {
			ls.timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case b := <-r.msgs:
			r.received.Add(1)
			// Any message, even one that fails to decode, proves the
			// stream is up.
			r.setState(stream.Streaming)
			sample, err := spectrum.DecodeSample(b)
			if err != nil {
				r.decodeErrors.Add(1)
				r.logger.Debug("dropping malformed spectrum message", zap.Error(err))
				continue
			}
			r.schedule(ls, sample)

		case <-ls.fire:
			ls.fire = nil
			if ls.pending != nil {
				r.draw(ls, *ls.pending)
				ls.pending = nil
			}

		case <-r.notify:
			r.drainSlots(ls)

		case s := <-r.states:
			if s == stream.Reconnecting || s == stream.Connecting {
				r.setState(s)
			}

		case a := <-r.results:
			ls.peakHz = ls.peakHz[:0]
			for _, p := range a.Peaks {
				if p.Frequency != nil {
					ls.peakHz = append(ls.peakHz, *p.Frequency)
				}
			}
			ls.peakIdx = nil
			r.mu.Lock()
			fn := r.onAnalytics
			r.mu.Unlock()
			if fn != nil {
				fn(a)
			}
		}
	}
}

// schedule implements the trailing throttle: the first sample of an idle
// window arms the timer, later samples replace the pending one, and the
// newest is drawn when the timer fires.
func (r *Renderer) schedule(ls *loopState, sample spectrum.Sample) {
	interval := ls.settings.ThrottleInterval
	if interval <= 0 {
		r.draw(ls, sample)
		return
	}
	if ls.pending != nil {
		r.coalesced.Add(1)
	}
	ls.pending = &sample
	if ls.fire != nil {
		return
	}
	if ls.timer == nil {
		ls.timer = time.NewTimer(interval)
	} else {
		ls.timer.Reset(interval)
	}
	ls.fire = ls.timer.C
}

func (r *Renderer) drainSlots(ls *loopState) {
	r.slotMu.Lock()
	next, peaks, peaksSet := r.nextSettings, r.nextPeaks, r.peaksSet
	r.nextSettings, r.nextPeaks, r.peaksSet = nil, nil, false
	r.slotMu.Unlock()

	if peaksSet {
		ls.peakIdx = peaks
		ls.peakHz = nil
	}
	if next == nil {
		return
	}
	old := ls.settings.ThrottleInterval
	ls.settings = *next
	if ls.settings.ThrottleInterval == old || ls.fire == nil {
		return
	}
	// Retime an armed window to the new interval.
	if ls.settings.ThrottleInterval <= 0 {
		ls.timer.Stop()
		ls.fire = nil
		if ls.pending != nil {
			r.draw(ls, *ls.pending)
			ls.pending = nil
		}
		return
	}
	ls.timer.Reset(ls.settings.ThrottleInterval)
}

func (r *Renderer) draw(ls *loopState, sample spectrum.Sample) {
	peaks := ls.peakIdx
	if ls.peakHz != nil {
		peaks = make([]int, 0, len(ls.peakHz))
		for _, hz := range ls.peakHz {
			if i, ok := spectrum.PeakIndex(hz, sample.Len(), ls.settings); ok {
				peaks = append(peaks, i)
			}
		}
	}
	frame := spectrum.BuildFrame(sample, ls.settings, peaks)
	r.rendered.Add(1)

	r.mu.Lock()
	sinks := r.sinks
	r.mu.Unlock()
	for _, s := range sinks {
		s.Frame(frame)
	}
}

func (r *Renderer) setState(s stream.State) {
	r.mu.Lock()
	if r.state == s || (r.closed && s != stream.Disconnected) {
		r.mu.Unlock()
		return
	}
	r.state = s
	fn := r.onState
	r.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// poll fetches analytics until ctx is done. Results that come back after
// teardown are dropped.
func (r *Renderer) poll(ctx context.Context) {
	t := time.NewTicker(r.pollInterval)
	defer t.Stop()

	failing := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		a, err := r.analytics.Analytics(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if !failing {
				r.logger.Warn("analytics poll failed", zap.Error(err))
			} else {
				r.logger.Debug("analytics poll failed", zap.Error(err))
			}
			failing = true
			continue
		}
		if failing {
			r.logger.Info("analytics poll recovered")
			failing = false
		}

		select {
		case r.results <- a:
		case <-ctx.Done():
			return
		}
	}
}
