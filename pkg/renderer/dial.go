package renderer

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sdrview/pkg/stream"
)

// EventSourceDialer subscribes to a server-sent events endpoint.
type EventSourceDialer struct {
	URL    string
	Client *http.Client
	Retry  time.Duration
	Logger *zap.Logger
}

func (d EventSourceDialer) Dial(ctx context.Context) (stream.Subscription, error) {
	var opts []stream.Option
	if d.Client != nil {
		opts = append(opts, stream.WithHTTPClient(d.Client))
	}
	if d.Retry > 0 {
		opts = append(opts, stream.WithRetry(d.Retry))
	}
	if d.Logger != nil {
		opts = append(opts, stream.WithLogger(d.Logger))
	}
	return stream.Subscribe(ctx, d.URL, opts...), nil
}
