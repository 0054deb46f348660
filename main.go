package main

import (
	"context"
	"embed"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sdrview/pkg/backend"
	"github.com/sdrview/pkg/spectrum"
)

//go:embed templates/*
var templatesFS embed.FS

// freqFlag accepts frequencies with units like 102.1MHz, 2.4G or 500k.
type freqFlag float64

func (f *freqFlag) String() string {
	return spectrum.FormatMHz(float64(*f))
}

func (f *freqFlag) Set(value string) error {
	hz, err := spectrum.ParseFrequency(value)
	if err != nil {
		return err
	}
	if hz <= 0 {
		return fmt.Errorf("frequency must be positive: %s", value)
	}
	*f = freqFlag(hz)
	return nil
}

func main() {
	// Common flags
	backendURL := flag.String("b", "", "Backend base URL (default from config, http://localhost:5000)")
	configFile := flag.String("config", "", "Config file (default sdrview.{toml,yaml,json} in /etc/sdrview or .)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "", "Log format: json or console")

	var center freqFlag
	flag.Var(&center, "f", "Center frequency shown before the backend reports one (e.g. 102.1MHz, 2.4G)")
	throttle := flag.Duration("throttle", -1, "Minimum time between redraws (e.g. 30ms, 0 to draw every sample)")

	// CLI-specific flags
	outputFile := flag.String("o", "spectrum.png", "Output PNG (CLI mode only)")
	timeout := flag.Duration("timeout", 10*time.Second, "How long to wait for a frame (CLI mode only)")

	// Server-specific flags
	isServer := flag.Bool("server", false, "Run the dashboard server")
	port := flag.Int("p", 0, "Port to listen on (Server mode only, default 8080)")

	// Simulation flags
	isSim := flag.Bool("sim", false, "Serve a simulated backend and connect to it")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "  CLI Mode:    go run . [options]")
		fmt.Fprintln(os.Stderr, "  Server Mode: go run . --server [options]")
		fmt.Fprintln(os.Stderr, "  Sim Mode:    go run . --sim [--server] [options]")
		fmt.Fprintln(os.Stderr, "\nOptions:")
		flag.PrintDefaults()
	}

	flag.Parse()

	// Flags given on the command line override the config file and env.
	v := newConfigReader(*configFile)
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "b":
			v.Set("backend", *backendURL)
		case "p":
			v.Set("port", *port)
		case "f":
			v.Set("display.center_freq", float64(center))
		case "throttle":
			if *throttle >= 0 {
				v.Set("display.throttle_ms", int(*throttle/time.Millisecond))
			}
		case "log-level":
			v.Set("log.level", *logLevel)
		case "log-format":
			v.Set("log.format", *logFormat)
		}
	})

	cfg, err := loadConfig(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger, level, err := newLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// If simulation mode is on, serve the synthetic backend and point the
	// dashboard at it unless a backend was given explicitly.
	if *isSim {
		simLog := logger.With(zap.String("component", "sim"))
		go func() {
			if err := RunSimulator(ctx, cfg.SimPort, simLog); err != nil {
				simLog.Error("simulator stopped", zap.Error(err))
			}
		}()
		if *backendURL == "" {
			cfg.Backend = fmt.Sprintf("http://localhost:%d", cfg.SimPort)
		}
		// Give the simulator a moment to start listening
		time.Sleep(200 * time.Millisecond)
	}

	be, err := backend.New(cfg.Backend, backend.WithLogger(logger.With(zap.String("component", "backend"))))
	if err != nil {
		logger.Fatal("invalid backend", zap.Error(err))
	}

	var srv *Server
	if *isServer {
		srv = newServer(cfg, be, logger)
	}

	sigs := make(chan os.Signal, 1)
	notifySignals(sigs)
	go func() {
		for sig := range sigs {
			if !isReload(sig) {
				logger.Info("shutting down", zap.Stringer("signal", sig))
				cancel()
				return
			}
			reloadConfig(v, level, srv, logger)
		}
	}()

	if *isServer {
		if err := srv.Run(ctx); err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
		return
	}
	if err := runCLI(ctx, cfg, be, *outputFile, *timeout, logger); err != nil {
		logger.Error("snapshot failed", zap.Error(err))
		os.Exit(1)
	}
}

// reloadConfig re-reads the config file on SIGHUP. Only the log level and
// the display defaults take effect without a restart.
func reloadConfig(v *viper.Viper, level zap.AtomicLevel, srv *Server, logger *zap.Logger) {
	cfg, err := loadConfig(v)
	if err != nil {
		logger.Warn("config reload failed", zap.Error(err))
		return
	}
	if l, err := zapcore.ParseLevel(cfg.Log.Level); err == nil {
		level.SetLevel(l)
	}
	if srv != nil {
		srv.store.Reset(cfg.DisplaySettings())
	}
	logger.Info("config reloaded", zap.String("level", level.String()))
}
