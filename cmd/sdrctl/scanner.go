package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sdrview/pkg/backend"
	"github.com/sdrview/pkg/spectrum"
)

func sweepShowCmd() *cobra.Command {
	var (
		bands []string
		chart string
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the strongest signal of the last sweep in each area of interest",
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := spectrum.SelectBands(spectrum.AreasOfInterest, bands)
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			tr, err := c.Sweep(ctx)
			if err != nil {
				return err
			}
			if len(tr.X) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sweep data")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sweep from %.1f to %.1f MHz, %d points\n", tr.X[0], tr.X[len(tr.X)-1], len(tr.X))
			printBandPeaks(cmd.OutOrStdout(), tr, selected)
			if chart == "" {
				return nil
			}
			return writeSweepChart(chart, tr, selected)
		},
	}
	cmd.Flags().StringSliceVarP(&bands, "bands", "", nil, "Areas of interest to show (default all)")
	cmd.Flags().StringVarP(&chart, "chart", "", "", "Also save the sweep chart (.png or .svg)")
	return cmd
}

func printBandPeaks(w io.Writer, tr backend.SweepTrace, bands []spectrum.Band) {
	t := newTable(w, "Band", "Start (MHz)", "Stop (MHz)", "Peak (MHz)", "Peak (dB)", "Points")
	for _, b := range bands {
		p := spectrum.PeakInBand(tr.X, tr.Y, b)
		freq, power := backend.NA, backend.NA
		if p.Points > 0 {
			freq = strconv.FormatFloat(p.FreqMHz, 'f', 1, 64)
			power = strconv.FormatFloat(p.Power, 'f', 1, 64)
		}
		t.Append([]string{
			b.Name,
			strconv.FormatFloat(b.LowMHz, 'f', 1, 64),
			strconv.FormatFloat(b.HighMHz, 'f', 1, 64),
			freq,
			power,
			strconv.Itoa(p.Points),
		})
	}
	t.Render()
}

func writeSweepChart(name string, tr backend.SweepTrace, bands []spectrum.Band) error {
	format := spectrum.PNG
	if strings.HasSuffix(name, ".svg") {
		format = spectrum.SVG
	}
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	frame := spectrum.SweepFrame(tr.X, tr.Y, spectrum.SweepMinY, spectrum.SweepMaxY)
	err = spectrum.RenderChart(f, frame, format, spectrum.ChartOptions{Bands: bands, YName: "Power (dB)"})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func sigidCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sigid",
		Short: "List the signal identification database",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			db, err := c.SigID(ctx)
			if err != nil {
				return err
			}
			printSignals(cmd.OutOrStdout(), db.Sorted())
			return nil
		},
	}
}

func printSignals(w io.Writer, rows []backend.Signal) {
	t := newTable(w, "Signal type", "Frequency", "Mode", "Modulation", "Bandwidth", "Location", "Image", "Description")
	for _, s := range rows {
		img := "No Image"
		if s.Image != "" {
			img = "yes"
		}
		t.Append([]string{s.Type, s.Frequency, s.Mode, s.Modulation, s.Bandwidth, s.Location, img, s.Description})
	}
	t.Render()
}
