// Command sdrctl drives the SDR backend from a terminal: settings, radio
// selection, sweeps, the task queue, recordings, classifiers and the signal
// identification database.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sdrview/pkg/backend"
)

var (
	endpoint string
	timeout  time.Duration
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:          "sdrctl",
	Short:        "Control an SDR backend",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&endpoint, "url", "u", "http://localhost:5000", "Backend base URL")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log backend requests")

	rootCmd.AddCommand(settingsCmd(), sdrCmd(), sweepCmd(), tasksCmd(), filesCmd(), classifiersCmd(), sigidCmd(), tailCmd())
}

func newClient() (*backend.Client, error) {
	logger := zap.NewNop()
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		logger = l
	}
	return backend.New(endpoint,
		backend.WithHTTPClient(&http.Client{Timeout: timeout}),
		backend.WithLogger(logger))
}

// commandContext is canceled on interrupt.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	return t
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
