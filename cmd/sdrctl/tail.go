package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sdrview/pkg/renderer"
	"github.com/sdrview/pkg/settings"
	"github.com/sdrview/pkg/spectrum"
	"github.com/sdrview/pkg/stream"
)

func tailCmd() *cobra.Command {
	var (
		throttle time.Duration
		count    int
		noPeaks  bool
	)
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow the spectrum stream and print each rendered frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			d := spectrum.DefaultDisplaySettings()
			d.ThrottleInterval = throttle
			d.ShowPeaks = !noPeaks
			store := settings.New(c, d, nil)
			if err := store.Load(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "using default settings: %v\n", err)
			}

			rend := renderer.New(renderer.Config{
				Dialer: renderer.EventSourceDialer{
					URL:    c.StreamURL(),
					Client: c.StreamClient(),
				},
				Analytics: c,
				Settings:  store.Snapshot(),
			})
			out := cmd.OutOrStdout()
			n := 0
			rend.OnState(func(s stream.State) {
				fmt.Fprintf(cmd.ErrOrStderr(), "stream %s\n", s)
			})
			rend.AddSink(renderer.SinkFunc(func(f spectrum.Frame) {
				n++
				if f.Bins() == 0 {
					return
				}
				fmt.Fprintf(out, "%s  %d bins  %.2f-%.2f MHz", f.Time, f.Bins(), f.X[0], f.X[len(f.X)-1])
				for _, a := range f.Annotations {
					fmt.Fprintf(out, "  %s%.2f MHz %.1f dB\x1b[0m", ansiColor(a.Y), a.X, a.Y)
				}
				fmt.Fprintln(out)
				if count > 0 && n >= count {
					cancel()
				}
			}))
			return rend.Run(ctx)
		},
	}
	cmd.Flags().DurationVarP(&throttle, "throttle", "", 500*time.Millisecond, "Minimum time between frames")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Stop after this many frames")
	cmd.Flags().BoolVarP(&noPeaks, "no-peaks", "", false, "Hide peak annotations")
	return cmd
}

// ansiColor returns the 24-bit terminal escape for a peak's label color.
func ansiColor(power float64) string {
	c := spectrum.PeakColor(power)
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm", c.R, c.G, c.B)
}
