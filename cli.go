package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/sdrview/pkg/backend"
	"github.com/sdrview/pkg/renderer"
	"github.com/sdrview/pkg/settings"
	"github.com/sdrview/pkg/spectrum"
)

// runCLI connects to the backend, waits for one rendered frame and saves it
// as a PNG chart.
func runCLI(ctx context.Context, cfg *Config, be *backend.Client, outputFilename string, timeout time.Duration, logger *zap.Logger) error {
	fmt.Println("--- Spectrum Snapshot ---")
	fmt.Printf("Backend: %s | Output: %s\n", cfg.Backend, outputFilename)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	store := settings.New(be, cfg.DisplaySettings(), logger)
	if err := store.Load(ctx); err != nil {
		fmt.Printf("Warning: using configured settings, backend settings unavailable: %v\n", err)
	}

	frames := make(chan spectrum.Frame, 1)
	rend := renderer.New(renderer.Config{
		Dialer: renderer.EventSourceDialer{
			URL:    be.StreamURL(),
			Client: be.StreamClient(),
			Logger: logger,
		},
		Analytics: be,
		Settings:  store.Snapshot(),
		Logger:    logger,
	})
	rend.AddSink(renderer.SinkFunc(func(f spectrum.Frame) {
		select {
		case frames <- f:
		default:
		}
	}))
	defer rend.Close()

	start := time.Now()
	errc := make(chan error, 1)
	go func() { errc <- rend.Run(ctx) }()

	fmt.Println(">>> WAITING FOR FRAME...")
	var f spectrum.Frame
	select {
	case f = <-frames:
	case err := <-errc:
		if err == nil {
			err = errors.New("stream ended before a frame arrived")
		}
		return fmt.Errorf("snapshot: %w", err)
	case <-ctx.Done():
		return fmt.Errorf("snapshot: no frame within %v", timeout)
	}

	fmt.Println("--- Frame ---")
	fmt.Printf("Time:      %s\n", f.Time)
	fmt.Printf("Bins:      %d\n", f.Bins())
	if f.Bins() > 0 {
		fmt.Printf("Span:      %.2f - %.2f MHz\n", f.X[0], f.X[len(f.X)-1])
	}
	fmt.Printf("Peaks:     %d\n", len(f.Annotations))
	fmt.Printf("Latency:   %v\n", time.Since(start))

	fmt.Printf(">>> SAVING TO FILE: %s ... ", outputFilename)
	out, err := os.Create(outputFilename)
	if err != nil {
		fmt.Println()
		return fmt.Errorf("create %s: %w", outputFilename, err)
	}
	opts := spectrum.ChartOptions{Width: cfg.Chart.Width, Height: cfg.Chart.Height}
	if err := spectrum.RenderChart(out, f, spectrum.PNG, opts); err != nil {
		out.Close()
		fmt.Println()
		return fmt.Errorf("render chart: %w", err)
	}
	if err := out.Close(); err != nil {
		fmt.Println()
		return fmt.Errorf("close %s: %w", outputFilename, err)
	}
	fmt.Println("DONE")
	return nil
}
