package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultRetry is the reconnection delay used until the server sends a
// retry field, matching browser EventSource behavior.
const DefaultRetry = 3 * time.Second

// Option configures an EventSource.
type Option func(*EventSource)

// WithHTTPClient sets the client used for the stream request. It must not
// carry an overall timeout, since the response body never ends.
func WithHTTPClient(c *http.Client) Option {
	return func(es *EventSource) { es.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(es *EventSource) { es.logger = l }
}

// WithRetry sets the initial reconnection delay.
func WithRetry(d time.Duration) Option {
	return func(es *EventSource) { es.retry = d }
}

// WithEventType restricts dispatch to one event type. The default is
// "message", which also matches events without an event field.
func WithEventType(t string) Option {
	return func(es *EventSource) { es.eventType = t }
}

// EventSource is a server-sent events client. It connects in the
// background, dispatches each event's data to the OnMessage handler and
// reconnects after transport errors with a fixed delay, the way a browser
// EventSource does. Nothing is buffered across a reconnect.
type EventSource struct {
	url       string
	client    *http.Client
	logger    *zap.Logger
	retry     time.Duration
	eventType string

	mu        sync.Mutex
	onMessage func([]byte)
	onState   func(State)
	state     State
	lastID    string

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Subscribe opens an event stream at url. The connection runs until ctx is
// canceled or Close is called.
func Subscribe(ctx context.Context, url string, opts ...Option) *EventSource {
	es := &EventSource{
		url:       url,
		client:    &http.Client{},
		logger:    zap.NewNop(),
		retry:     DefaultRetry,
		eventType: "message",
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(es)
	}
	ctx, es.cancel = context.WithCancel(ctx)
	go es.run(ctx)
	return es
}

// OnMessage sets the handler for event payloads. Events that arrive before
// a handler is set are dropped.
func (es *EventSource) OnMessage(fn func([]byte)) {
	es.mu.Lock()
	es.onMessage = fn
	es.mu.Unlock()
}

// OnState sets the lifecycle observer.
func (es *EventSource) OnState(fn func(State)) {
	es.mu.Lock()
	es.onState = fn
	es.mu.Unlock()
}

// State returns the current lifecycle state.
func (es *EventSource) State() State {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.state
}

// Close stops the stream and waits for the connection to be released.
func (es *EventSource) Close() error {
	es.closeOnce.Do(func() {
		es.cancel()
		<-es.done
	})
	return nil
}

// Done is closed once the stream has shut down.
func (es *EventSource) Done() <-chan struct{} { return es.done }

func (es *EventSource) setState(s State) {
	es.mu.Lock()
	if es.state == s {
		es.mu.Unlock()
		return
	}
	es.state = s
	fn := es.onState
	es.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (es *EventSource) run(ctx context.Context) {
	defer close(es.done)
	defer es.setState(Disconnected)

	es.setState(Connecting)
	for {
		err := es.connect(ctx)
		if ctx.Err() != nil {
			return
		}
		es.logger.Warn("event stream dropped",
			zap.String("url", es.url),
			zap.Error(err),
			zap.Duration("retry", es.retry))
		es.setState(Reconnecting)

		t := time.NewTimer(es.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (es *EventSource) connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, es.url, nil)
	if err != nil {
		return fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	es.mu.Lock()
	if es.lastID != "" {
		req.Header.Set("Last-Event-ID", es.lastID)
	}
	es.mu.Unlock()

	resp, err := es.client.Do(req)
	if err != nil {
		return fmt.Errorf("stream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream request failed with status code: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		return fmt.Errorf("unexpected content type %q", ct)
	}

	reader := NewReader(resp.Body)
	for {
		ev, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		if ev.Retry > 0 {
			es.retry = ev.Retry
		}
		es.mu.Lock()
		es.lastID = ev.ID
		fn := es.onMessage
		es.mu.Unlock()

		if ev.Data == nil || !es.matches(ev.Type) {
			continue
		}
		es.setState(Streaming)
		if fn != nil {
			fn(ev.Data)
		}
	}
}

func (es *EventSource) matches(eventType string) bool {
	if eventType == "" {
		eventType = "message"
	}
	return eventType == es.eventType
}
