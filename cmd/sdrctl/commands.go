package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sdrview/pkg/backend"
	"github.com/sdrview/pkg/spectrum"
)

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change device settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			s, err := c.GetSettings(ctx)
			if err != nil {
				return err
			}
			printSettings(cmd, s)
			return nil
		},
	}

	var (
		freq, sampleRate, bandwidth string
		gain, minPeakDistance       float64
		averaging, peaks            int
		dcSuppress, peakDetection   bool
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Change device settings; only the flags given are sent",
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch backend.Settings
			f := cmd.Flags()
			for name, dst := range map[string]**float64{
				"frequency":   &patch.Frequency,
				"sample-rate": &patch.SampleRate,
				"bandwidth":   &patch.Bandwidth,
			} {
				if !f.Changed(name) {
					continue
				}
				v, _ := f.GetString(name)
				hz, err := spectrum.ParseFrequency(v)
				if err != nil {
					return fmt.Errorf("--%s: %w", name, err)
				}
				*dst = backend.Float(hz)
			}
			if f.Changed("gain") {
				patch.Gain = backend.Float(gain)
			}
			if f.Changed("min-peak-distance") {
				patch.MinPeakDistance = backend.Float(minPeakDistance)
			}
			if f.Changed("averaging") {
				patch.AveragingCount = backend.Int(averaging)
			}
			if f.Changed("peaks") {
				patch.NumberOfPeaks = backend.Int(peaks)
			}
			if f.Changed("dc-suppress") {
				patch.DCSuppress = backend.Bool(dcSuppress)
			}
			if f.Changed("peak-detection") {
				patch.PeakDetection = backend.Bool(peakDetection)
			}
			if patch.Empty() {
				return errors.New("no settings given")
			}

			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			s, err := c.UpdateSettings(ctx, patch)
			if err != nil {
				return err
			}
			if s.Empty() {
				s = patch
			}
			printSettings(cmd, s)
			return nil
		},
	}
	set.Flags().StringVarP(&freq, "frequency", "f", "", "Center frequency (e.g. 102.1MHz)")
	set.Flags().StringVarP(&sampleRate, "sample-rate", "s", "", "Sample rate (e.g. 16M)")
	set.Flags().StringVarP(&bandwidth, "bandwidth", "b", "", "Bandwidth (e.g. 16M)")
	set.Flags().Float64VarP(&gain, "gain", "g", 0, "Gain in dB")
	set.Flags().Float64VarP(&minPeakDistance, "min-peak-distance", "", 0, "Minimum distance between peaks")
	set.Flags().IntVarP(&averaging, "averaging", "a", 0, "Averaging count")
	set.Flags().IntVarP(&peaks, "peaks", "n", 0, "Number of peaks to detect")
	set.Flags().BoolVarP(&dcSuppress, "dc-suppress", "", false, "Suppress the DC spike")
	set.Flags().BoolVarP(&peakDetection, "peak-detection", "", false, "Enable peak detection")
	cmd.AddCommand(set)
	return cmd
}

func printSettings(cmd *cobra.Command, s backend.Settings) {
	t := newTable(cmd.OutOrStdout(), "Setting", "Value")
	str := func(p *string) string {
		if p == nil {
			return backend.NA
		}
		return *p
	}
	boolStr := func(p *bool) string {
		if p == nil {
			return backend.NA
		}
		return strconv.FormatBool(*p)
	}
	intStr := func(p *int) string {
		if p == nil {
			return backend.NA
		}
		return strconv.Itoa(*p)
	}
	t.AppendBulk([][]string{
		{"SDR", str(s.SDR)},
		{"Frequency (MHz)", backend.FormatFloat(s.Frequency, 1e6, 3)},
		{"Sample rate (MHz)", backend.FormatFloat(s.SampleRate, 1e6, 3)},
		{"Bandwidth (MHz)", backend.FormatFloat(s.Bandwidth, 1e6, 3)},
		{"Gain (dB)", backend.FormatFloat(s.Gain, 1, 1)},
		{"Averaging", intStr(s.AveragingCount)},
		{"DC suppress", boolStr(s.DCSuppress)},
		{"Peak detection", boolStr(s.PeakDetection)},
		{"Min peak distance", backend.FormatFloat(s.MinPeakDistance, 1, 1)},
		{"Peaks", intStr(s.NumberOfPeaks)},
		{"Sweeping", boolStr(s.SweepingEnabled)},
		{"Sweep start (MHz)", backend.FormatFloat(s.FrequencyStart, 1e6, 3)},
		{"Sweep stop (MHz)", backend.FormatFloat(s.FrequencyStop, 1e6, 3)},
	})
	t.Render()
}

func sdrCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sdr NAME",
		Short: "Switch the backend to another radio (hackrf, sidekiq, ...)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			if err := c.SelectSDR(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Selected %s\n", args[0])
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	var start, stop, bandwidth string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Start a frequency sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req backend.SweepRequest
			var err error
			if req.FrequencyStart, err = spectrum.ParseFrequency(start); err != nil {
				return err
			}
			if req.FrequencyStop, err = spectrum.ParseFrequency(stop); err != nil {
				return err
			}
			if req.Bandwidth, err = spectrum.ParseFrequency(bandwidth); err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			fmt.Fprintln(cmd.OutOrStdout(), "Starting sweep...")
			if err := c.StartSweep(ctx, req); err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Error starting sweep")
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Sweep started")
			return nil
		},
	}
	cmd.Flags().StringVarP(&start, "start", "", "50M", "Start frequency")
	cmd.Flags().StringVarP(&stop, "stop", "", "6000M", "Stop frequency")
	cmd.Flags().StringVarP(&bandwidth, "bandwidth", "b", "20M", "Sweep step bandwidth")
	cmd.AddCommand(sweepShowCmd())
	return cmd
}

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List the task queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			tasks, err := c.Tasks(ctx)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "#", "Type", "Task")
			for i, task := range tasks {
				t.Append([]string{strconv.Itoa(i), task.Type, task.Describe()})
			}
			t.Render()
			return nil
		},
	}

	var task backend.Task
	var freq, value, startFreq, endFreq string
	var duration, dwell float64
	add := &cobra.Command{
		Use:   "add TYPE",
		Short: "Queue a task: tune, record, gain, bandwidth or sweep",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task.Type = args[0]
			f := cmd.Flags()
			parse := func(name, v string, dst **float64) error {
				if !f.Changed(name) {
					return nil
				}
				hz, err := spectrum.ParseFrequency(v)
				if err != nil {
					return fmt.Errorf("--%s: %w", name, err)
				}
				*dst = backend.Float(hz)
				return nil
			}
			if err := parse("frequency", freq, &task.Frequency); err != nil {
				return err
			}
			if err := parse("value", value, &task.Value); err != nil {
				return err
			}
			if err := parse("start", startFreq, &task.StartFreq); err != nil {
				return err
			}
			if err := parse("end", endFreq, &task.EndFreq); err != nil {
				return err
			}
			if f.Changed("duration") {
				task.Duration = backend.Float(duration)
			}
			if f.Changed("dwell") {
				task.DwellTime = backend.Float(dwell)
			}

			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			stored, err := c.AddTask(ctx, task)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued: %s\n", stored.Describe())
			return nil
		},
	}
	add.Flags().StringVarP(&freq, "frequency", "f", "", "Tune frequency")
	add.Flags().StringVarP(&value, "value", "", "", "Gain (dB) or bandwidth value")
	add.Flags().Float64VarP(&duration, "duration", "d", 0, "Record duration in seconds")
	add.Flags().StringVarP(&task.Label, "label", "l", "", "Record label")
	add.Flags().StringVarP(&task.SweepType, "sweep-type", "", backend.SweepFull, "Sweep type: full or range")
	add.Flags().StringVarP(&startFreq, "start", "", "", "Sweep start frequency")
	add.Flags().StringVarP(&endFreq, "end", "", "", "Sweep end frequency")
	add.Flags().Float64VarP(&dwell, "dwell", "", 0, "Sweep dwell time in seconds")

	run := &cobra.Command{
		Use:   "run",
		Short: "Execute the queue and follow its progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			return c.ExecuteTasks(ctx, func(st backend.TaskStatus) {
				if st.TaskIndex != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s\n", *st.TaskIndex, st.Status)
					return
				}
				fmt.Fprintln(cmd.OutOrStdout(), st.Status)
			})
		},
	}
	cmd.AddCommand(add, run)
	return cmd
}

func filesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files [PATH]",
		Short: "List recordings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			l, err := c.ListFiles(ctx, dir)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "Name", "Type", "Size", "Date")
			for _, f := range l.Files {
				kind := f.Ext
				if f.IsDir {
					kind = "dir"
				}
				t.Append([]string{f.Name, kind, strconv.FormatInt(f.Size, 10), f.Date})
			}
			t.Render()
			return nil
		},
	}

	simple := func(use, short string, nargs int, fn func(c *backend.Client, cmd *cobra.Command, args []string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(nargs),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := newClient()
				if err != nil {
					return err
				}
				return fn(c, cmd, args)
			},
		}
	}

	cmd.AddCommand(
		simple("meta PATH", "Show the metadata of a recording", 1, func(c *backend.Client, cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			m, err := c.FileMetadata(ctx, args[0])
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "Key", "Value")
			for k, v := range m.Metadata {
				t.Append([]string{k, fmt.Sprint(v)})
			}
			t.Append([]string{"fft bins", strconv.Itoa(len(m.FFTData))})
			t.Render()
			return nil
		}),
		simple("mkdir PATH NAME", "Create a directory", 2, func(c *backend.Client, cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			return c.CreateDirectory(ctx, args[0], args[1])
		}),
		simple("mv SRC DEST NAME", "Move SRC/NAME into DEST", 3, func(c *backend.Client, cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			return c.MoveFile(ctx, args[0], args[1], args[2])
		}),
		simple("rename OLD NEW", "Rename a file", 2, func(c *backend.Client, cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			return c.RenameFile(ctx, args[0], args[1])
		}),
		simple("rm PATH", "Delete a file or directory", 1, func(c *backend.Client, cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			return c.DeleteFile(ctx, args[0])
		}),
	)
	return cmd
}

func classifiersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classifiers",
		Short: "List classifier bands",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			list, err := c.Classifiers(ctx)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "Label", "Channel", "Frequency (MHz)", "Bandwidth (MHz)")
			for _, cl := range list {
				ch := backend.NA
				if cl.Channel != nil {
					ch = fmt.Sprint(cl.Channel)
				}
				t.Append([]string{cl.Label, ch, backend.FormatFloat(cl.Frequency, 1, 3), backend.FormatFloat(cl.Bandwidth, 1, 3)})
			}
			t.Render()
			return nil
		},
	}

	upload := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a classifier definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			fmt.Fprintln(cmd.OutOrStdout(), "Uploading...")
			msg, err := c.UploadClassifier(ctx, filepath.Base(args[0]), f)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Upload failed.")
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	var out string
	download := &cobra.Command{
		Use:   "download",
		Short: "Download every classifier band",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			n, err := c.DownloadAllBands(ctx, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Download failed.")
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d bytes to %s\n", n, out)
			return nil
		},
	}
	download.Flags().StringVarP(&out, "output", "o", "all_bands.json", "Output file")

	cmd.AddCommand(upload, download)
	return cmd
}
