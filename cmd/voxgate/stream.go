package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxgate/internal/config"
	"github.com/MrWong99/voxgate/internal/health"
	"github.com/MrWong99/voxgate/internal/observe"
	"github.com/MrWong99/voxgate/internal/stream"
	"github.com/MrWong99/voxgate/pkg/audio"
	"github.com/MrWong99/voxgate/pkg/vad"
)

const shutdownTimeout = 5 * time.Second

type streamFlags struct {
	rate        int
	blockSize   int
	channels    int
	profile     string
	metricsAddr string
}

func newStreamCommand(opts *rootOptions) *cobra.Command {
	var flags streamFlags

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Detect speech in a raw PCM16 stream on stdin",
		Long: `Stream reads raw little-endian 16-bit PCM from stdin and writes one JSON
event line to stdout for every speaking-state transition:

  {"type":"vad","speaking":true,"rms":0.0421}

Logs and the startup summary go to stderr; stdout carries only events.
With a metrics address, /healthz, /readyz and /metrics are served for as
long as the stream runs. When --config names a file it is watched: log
level changes apply immediately, profile edits apply to new sessions.

Examples:
  arecord -f S16_LE -r 16000 -c 1 | voxgate stream
  voxgate stream --rate 48000 --block 960 --metrics-addr :9090 < capture.pcm`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStream(cmd, opts, flags)
		},
	}

	cmd.Flags().IntVar(&flags.rate, "rate", 0, "sample rate in Hz (overrides config)")
	cmd.Flags().IntVar(&flags.blockSize, "block", 0, "samples per detector block (overrides config)")
	cmd.Flags().IntVar(&flags.channels, "channels", 0, "input channels, 1 or 2 (overrides config)")
	cmd.Flags().StringVar(&flags.profile, "profile", "", "detector profile from the config file")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve /healthz, /readyz and /metrics on this address (overrides config)")

	return cmd
}

func runStream(cmd *cobra.Command, opts *rootOptions, flags streamFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Configuration, watched when a file was given ──────────────────────────
	var (
		cfg     *config.Config
		watcher *config.Watcher
		lvl     *slog.LevelVar
	)
	if opts.configPath != "" {
		var err error
		watcher, err = config.NewWatcher(opts.configPath, func(old, new *config.Config) {
			applyReload(lvl, opts.logLevel == "", old, new)
		})
		if err != nil {
			return describeConfigError(opts.configPath, err)
		}
		defer watcher.Stop()
		cfg = watcher.Current()
	} else {
		cfg = config.Default()
	}

	var err error
	lvl, err = opts.installLogger(cfg)
	if err != nil {
		return err
	}

	// ── Input format and detector tuning ──────────────────────────────────────
	input := cfg.Input
	if flags.rate > 0 {
		input.SampleRate = flags.rate
	}
	if flags.blockSize > 0 {
		input.BlockSize = flags.blockSize
	}
	if flags.channels > 0 {
		input.Channels = flags.channels
	}
	format := audio.Format{SampleRate: input.SampleRate, Channels: input.Channels}
	blockDuration := input.BlockDuration()

	detCfg, profile, err := resolveProfile(cfg, flags.profile, blockDuration)
	if err != nil {
		return err
	}
	det, err := vad.New(detCfg)
	if err != nil {
		return fmt.Errorf("profile %q: %w", profile, err)
	}

	// ── Telemetry ─────────────────────────────────────────────────────────────
	metricsAddr := flags.metricsAddr
	if metricsAddr == "" {
		metricsAddr = cfg.Server.MetricsAddr
	}

	var metrics *observe.Metrics
	if metricsAddr != "" {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    "voxgate",
			ServiceVersion: version,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				slog.Warn("telemetry shutdown", "err", err)
			}
		}()
		metrics = observe.DefaultMetrics()
	}

	// ── Session ───────────────────────────────────────────────────────────────
	manager := stream.NewManager(metrics)
	sess, err := manager.Open("stdin", stream.SessionConfig{
		Format:    format,
		BlockSize: input.BlockSize,
		Processor: det,
	})
	if err != nil {
		return err
	}

	printStartupSummary(cmd.ErrOrStderr(), streamSummary{
		format:      format,
		blockSize:   input.BlockSize,
		blockDur:    blockDuration,
		profile:     profile,
		tuning:      det.Config(),
		metricsAddr: metricsAddr,
		configPath:  opts.configPath,
		watching:    watcher != nil,
	})

	// ── Run group ─────────────────────────────────────────────────────────────
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	ingest := health.NewToggle("ingest")

	if metricsAddr != "" {
		checks := []health.Checker{ingest.Checker()}
		if watcher != nil {
			checks = append(checks, health.Checker{
				Name: "config",
				Check: func(context.Context) error {
					return watcher.Err()
				},
			})
		}

		mux := http.NewServeMux()
		health.New(checks...).Register(mux)
		mux.Handle("GET /metrics", promhttp.Handler())

		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           observe.Middleware(metrics)(mux),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			slog.Info("metrics endpoint listening", "addr", metricsAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}

	// Event printer, the only stdout writer.
	out := cmd.OutOrStdout()
	g.Go(func() error {
		enc := json.NewEncoder(out)
		for ev := range sess.Events() {
			if err := enc.Encode(ev.Event); err != nil {
				return fmt.Errorf("write event: %w", err)
			}
			slog.Debug("speaking state changed",
				"stream", ev.Stream,
				"speaking", ev.Event.Speaking,
				"rms", ev.Event.RMS,
				"block", ev.Block,
				"offset", ev.Offset,
			)
		}
		return nil
	})

	// Stdin pump. Reads cannot be cancelled, so the blocking loop runs in
	// its own goroutine and is abandoned on shutdown; closing the session
	// unblocks the event printer either way.
	in := cmd.InOrStdin()
	g.Go(func() error {
		defer cancel()
		ingest.SetReady(true)
		defer ingest.SetReady(false)

		pumpErr := make(chan error, 1)
		go func() { pumpErr <- pump(in, sess) }()

		var err error
		select {
		case err = <-pumpErr:
			if errors.Is(err, stream.ErrSessionClosed) {
				err = nil
			}
			if err == nil {
				slog.Info("input drained", "blocks", sess.BlocksProcessed(), "dropped", sess.Dropped())
			}
		case <-gctx.Done():
			slog.Info("shutdown signal received, stopping")
		}
		if cerr := manager.CloseAll(); cerr != nil {
			slog.Warn("close streams", "err", cerr)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("goodbye")
	return nil
}

// pump copies the input into the session in fixed-size chunks. Returns nil
// once the input is exhausted.
func pump(in io.Reader, sess *stream.Session) error {
	buf := make([]byte, 4096)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if _, werr := sess.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
	}
}

// applyReload applies hot-reloadable config changes. The log level takes
// effect immediately unless the --log-level flag pinned it; profile edits
// only affect sessions opened afterwards.
func applyReload(lvl *slog.LevelVar, applyLevel bool, old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged {
		if applyLevel && lvl != nil {
			lvl.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		} else {
			slog.Info("log level change ignored, pinned by --log-level flag", "level", d.NewLogLevel)
		}
	}
	for _, pd := range d.ProfileChanges {
		switch {
		case pd.Added:
			slog.Info("profile added", "profile", pd.Name)
		case pd.Removed:
			slog.Info("profile removed", "profile", pd.Name)
		default:
			slog.Info("profile updated, applies to new sessions", "profile", pd.Name)
		}
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

type streamSummary struct {
	format      audio.Format
	blockSize   int
	blockDur    time.Duration
	profile     string
	tuning      vad.Config
	metricsAddr string
	configPath  string
	watching    bool
}

func printStartupSummary(w io.Writer, s streamSummary) {
	fmt.Fprintln(w, "╔═════════════════════════════════════════╗")
	fmt.Fprintf(w, "║  %-38s ║\n", "voxgate stream")
	fmt.Fprintln(w, "╠═════════════════════════════════════════╣")
	printSummaryRow(w, "Input", s.format.String())
	printSummaryRow(w, "Block", fmt.Sprintf("%d samples (%s)", s.blockSize, s.blockDur))
	printSummaryRow(w, "Profile", s.profile)
	printSummaryRow(w, "Threshold", strconv.FormatFloat(s.tuning.SpeechThreshold, 'g', -1, 64))
	printSummaryRow(w, "Onset/offset", fmt.Sprintf("%d / %d blocks", s.tuning.OnsetFrames, s.tuning.OffsetFrames))
	if s.metricsAddr != "" {
		printSummaryRow(w, "Metrics", s.metricsAddr)
	} else {
		printSummaryRow(w, "Metrics", "(disabled)")
	}
	switch {
	case s.watching:
		printSummaryRow(w, "Config", s.configPath+" (watched)")
	case s.configPath != "":
		printSummaryRow(w, "Config", s.configPath)
	default:
		printSummaryRow(w, "Config", "(built-in defaults)")
	}
	fmt.Fprintln(w, "╚═════════════════════════════════════════╝")
}

func printSummaryRow(w io.Writer, label, value string) {
	if len(value) > 23 {
		value = value[:22] + "…"
	}
	fmt.Fprintf(w, "║  %-12s : %-23s ║\n", label, value)
}
