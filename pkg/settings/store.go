// Package settings owns the dashboard's display settings. All mutation goes
// through Store.Update, which applies a patch locally, fans the new snapshot
// out to subscribers and only then forwards device fields to the backend.
package settings

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sdrview/pkg/backend"
	"github.com/sdrview/pkg/spectrum"
)

// Status texts reported by the store.
const (
	StatusReady    = "Ready"
	StatusUpdating = "Updating settings..."
	StatusError    = "Error updating settings"
)

// Backend is the part of the backend client the store needs.
type Backend interface {
	GetSettings(ctx context.Context) (backend.Settings, error)
	UpdateSettings(ctx context.Context, patch backend.Settings) (backend.Settings, error)
}

// Patch is a partial settings change. Device fields in the embedded
// backend.Settings are forwarded to the backend; the remaining fields only
// affect local display.
type Patch struct {
	backend.Settings

	MinY             *float64
	MaxY             *float64
	ThrottleInterval *time.Duration
	ShowPeaks        *bool
}

// Store holds the current settings snapshot.
type Store struct {
	be     Backend
	logger *zap.Logger

	// publish is held from computing a snapshot until every subscriber has
	// seen it, so subscribers receive snapshots in the order they were made.
	publish sync.Mutex

	mu      sync.RWMutex
	display spectrum.DisplaySettings
	device  backend.Settings
	status  string
	subs    map[int]func(spectrum.DisplaySettings)
	nextSub int

	onStatus func(string)
}

// New returns a store seeded with initial display settings. be may be nil,
// in which case updates stay local.
func New(be Backend, initial spectrum.DisplaySettings, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		be:      be,
		logger:  logger,
		display: initial,
		status:  StatusReady,
		subs:    make(map[int]func(spectrum.DisplaySettings)),
	}
}

// Snapshot returns the current display settings.
func (s *Store) Snapshot() spectrum.DisplaySettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.display
}

// Device returns the last known device settings.
func (s *Store) Device() backend.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.device
}

// Status returns the current status text.
func (s *Store) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// OnStatus sets an observer for status text changes.
func (s *Store) OnStatus(fn func(string)) {
	s.mu.Lock()
	s.onStatus = fn
	s.mu.Unlock()
}

// Subscribe registers fn to receive every new snapshot. It returns a
// function that removes the subscription.
func (s *Store) Subscribe(fn func(spectrum.DisplaySettings)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Load fetches the device settings from the backend and publishes them.
// A failure leaves the current snapshot in place.
func (s *Store) Load(ctx context.Context) error {
	if s.be == nil {
		return nil
	}
	dev, err := s.be.GetSettings(ctx)
	if err != nil {
		s.logger.Warn("failed to load settings", zap.Error(err))
		return err
	}
	s.apply(Patch{Settings: dev}, "")
	return nil
}

// Update applies p locally and publishes the new snapshot before the
// backend sees it. A backend failure sets the error status but the local
// change is kept.
func (s *Store) Update(ctx context.Context, p Patch) error {
	remote := s.be != nil && !p.Settings.Empty()
	status := ""
	if remote {
		status = StatusUpdating
	}
	s.apply(p, status)
	if !remote {
		return nil
	}

	if _, err := s.be.UpdateSettings(ctx, p.Settings); err != nil {
		s.logger.Warn("settings update failed", zap.Error(err))
		s.setStatus(StatusError)
		return err
	}
	s.setStatus(StatusReady)
	return nil
}

// Observe records device settings changed through another endpoint, such
// as an SDR switch or a sweep start, without posting them back.
func (s *Store) Observe(dev backend.Settings) {
	if dev.Empty() {
		return
	}
	s.apply(Patch{Settings: dev}, "")
}

// Reset replaces the local display settings, keeping device fields from the
// last known backend state. It is used when configuration is reloaded.
func (s *Store) Reset(d spectrum.DisplaySettings) {
	s.publish.Lock()
	defer s.publish.Unlock()
	s.mu.Lock()
	s.display = d
	dev := s.device
	s.mu.Unlock()
	s.applyLocked(Patch{Settings: dev}, "")
}

// apply merges p and publishes the result. Subscribers must not call back
// into Update, Observe or Reset.
func (s *Store) apply(p Patch, status string) {
	s.publish.Lock()
	defer s.publish.Unlock()
	s.applyLocked(p, status)
}

func (s *Store) applyLocked(p Patch, status string) {
	s.mu.Lock()
	s.device.Merge(p.Settings)
	d := s.display
	if v := p.Frequency; v != nil {
		d.CenterFreqHz = *v
	}
	if v := p.SampleRate; v != nil {
		d.SampleRateHz = *v
	}
	if v := p.Bandwidth; v != nil {
		d.BandwidthHz = *v
	}
	if v := p.SweepingEnabled; v != nil {
		d.Sweeping = *v
	}
	if v := p.FrequencyStart; v != nil {
		d.SweepStart = *v
	}
	if v := p.FrequencyStop; v != nil {
		d.SweepStop = *v
	}
	if v := p.SDR; v != nil {
		d.SDR = *v
	}
	if v := p.PeakDetection; v != nil {
		d.ShowPeaks = *v
	}
	if v := p.ShowPeaks; v != nil {
		d.ShowPeaks = *v
	}
	if v := p.MinY; v != nil {
		d.MinY = *v
	}
	if v := p.MaxY; v != nil {
		d.MaxY = *v
	}
	if v := p.ThrottleInterval; v != nil && *v >= 0 {
		d.ThrottleInterval = *v
	}
	s.display = d
	var notify func(string)
	if status != "" && status != s.status {
		s.status = status
		notify = s.onStatus
	}
	subs := make([]func(spectrum.DisplaySettings), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(d)
	}
	if notify != nil {
		notify(status)
	}
}

func (s *Store) setStatus(status string) {
	s.mu.Lock()
	changed := s.status != status
	s.status = status
	fn := s.onStatus
	s.mu.Unlock()
	if changed && fn != nil {
		fn(status)
	}
}
