// ABOUTME: Entry point for the offline renderer
// ABOUTME: Parses CLI flags, renders one file and reports progress
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Sendspin/offline-render/internal/config"
	"github.com/Sendspin/offline-render/internal/logging"
	"github.com/Sendspin/offline-render/internal/monitor"
	"github.com/Sendspin/offline-render/internal/ui"
	"github.com/Sendspin/offline-render/internal/version"
	"github.com/Sendspin/offline-render/pkg/audio/decode"
	"github.com/Sendspin/offline-render/pkg/audio/encode"
	"github.com/Sendspin/offline-render/pkg/diag"
	"github.com/Sendspin/offline-render/pkg/graph"
	"github.com/Sendspin/offline-render/pkg/render"
	"github.com/Sendspin/offline-render/pkg/timing"
)

const (
	exitOK        = 0
	exitFailed    = 1
	exitUsage     = 2
	exitCancelled = 130
)

var (
	configPath  = flag.String("config", "", "Config file path (default: "+config.DefaultPath+")")
	blockFrames = flag.Int("block-frames", 0, "Frames rendered per block")
	sampleRate  = flag.Float64("rate", 0, "Output sample rate in Hz (0 keeps the source rate)")
	gainDB      = flag.Float64("gain-db", 0, "Master gain in decibels")
	fadeIn      = flag.Float64("fade-in", 0, "Fade-in length in seconds")
	fadeOut     = flag.Float64("fade-out", 0, "Fade-out length in seconds")
	bitDepth    = flag.Int("bit-depth", 0, "WAV sample size: 16 or 24")
	floatOut    = flag.Bool("float", false, "Write 32-bit float WAV")
	bitrate     = flag.Int("bitrate", 0, "Opus bitrate in bits per second")
	logFile     = flag.String("log-file", "", "Log file path")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
	logFormat   = flag.String("log-format", "", "Log format: text or json")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	streamLogs  = flag.Bool("stream-logs", false, "Alias for -no-tui")
	monitorOn   = flag.Bool("monitor", false, "Serve progress to render-monitor clients")
	monitorPort = flag.Int("monitor-port", 0, "Port for the progress websocket")
	name        = flag.String("name", "", "Renderer name for mDNS (default: hostname-offline-render)")
	noMDNS      = flag.Bool("no-mdns", false, "Do not advertise the monitor over mDNS")
	printConfig = flag.Bool("print-config", false, "Print a sample config file and exit")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = usage
	flag.Parse()
	os.Exit(run())
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [flags] <source> <destination>\n\n", os.Args[0])
	fmt.Fprintf(out, "Sources: %s\n", strings.Join(decode.Extensions(), " "))
	fmt.Fprintf(out, "Destinations: .wav .opus\n\n")
	flag.PrintDefaults()
}

func run() int {
	if *showVersion {
		fmt.Println(version.String())
		return exitOK
	}
	if *printConfig {
		fmt.Print(config.Sample())
		return exitOK
	}
	if flag.NArg() != 2 {
		flag.Usage()
		return exitUsage
	}
	source, destination := flag.Arg(0), flag.Arg(1)

	cfg, cfgPath, cfgExists, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitUsage
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitUsage
	}

	useTUI := !(*noTUI || *streamLogs)

	// Set up logging
	f, err := os.OpenFile(cfg.Logging.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening log file: %v\n", err)
		return exitUsage
	}
	defer func() { _ = f.Close() }()

	var out io.Writer = f
	if !useTUI {
		out = io.MultiWriter(os.Stdout, f)
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: out,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitUsage
	}
	slog.SetDefault(logger)
	diag.SetSink(diag.NewLogSink(logger))
	timing.Init()

	logger.Info("starting offline render",
		slog.String("version", version.String()),
		slog.String("config", cfgPath),
		slog.Bool("config_found", cfgExists))

	session, err := render.Create(source, destination,
		render.WithBlockFrames(cfg.Render.BlockFrames),
		render.WithGraphOptions(graph.Options{
			SampleRate: cfg.Render.SampleRate,
			GainDB:     cfg.Gain.GainDB,
			FadeIn:     cfg.Gain.FadeInSeconds,
			FadeOut:    cfg.Gain.FadeOutSeconds,
		}),
		render.WithDestinationFormat(encode.Options{
			BitDepth: cfg.Render.BitDepth,
			Float:    cfg.Render.FloatOutput,
			Bitrate:  cfg.Render.OpusBitrate,
		}),
		render.WithLogger(logger),
	)
	if err != nil {
		logger.Error("render setup failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitFailed
	}
	defer session.Close()

	observers := []render.Observer{}

	var srv *monitor.Server
	if cfg.Monitor.Enabled {
		srv = monitor.New(monitor.Config{
			Port:       cfg.Monitor.Port,
			Name:       rendererName(cfg.Monitor.Name),
			EnableMDNS: cfg.Monitor.MDNS,
			Logger:     logger,
		})
		if err := srv.Start(); err != nil {
			logger.Error("failed to start monitor", slog.Any("error", err))
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return exitFailed
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := srv.Stop(ctx); err != nil {
				logger.Warn("monitor shutdown error", slog.Any("error", err))
			}
		}()
		srv.Attach(session)
		observers = append(observers, srv)
	}

	var tui *ui.TUI
	if useTUI {
		info := ui.SessionInfo{
			ID:          session.ID().String(),
			Source:      source,
			Destination: destination,
			Format:      session.Format().String(),
			TotalFrames: session.TotalFrames(),
			SampleRate:  session.Format().SampleRate,
		}
		if srv != nil {
			info.Monitor = srv.Addr()
		}
		tui = ui.New(info)
		observers = append(observers, tui)
	}

	finished := newTerminalWaiter()
	observers = append(observers, finished)
	fan := render.NewFanout(observers...)
	render.Observe(session, fan)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := session.StartRendering(); err != nil {
		logger.Error("failed to start rendering", slog.Any("error", err))
		return exitFailed
	}

	if tui != nil {
		go func() {
			select {
			case <-sigChan:
				tui.Quit()
			case <-finished.done:
			}
		}()
		if _, err := tui.Run(); err != nil {
			logger.Error("TUI failed", slog.Any("error", err))
		}
	} else {
		select {
		case <-finished.done:
		case <-sigChan:
			logger.Info("shutdown signal received")
		}
	}

	// Cancels the render if it is still running
	session.Close()
	runtime.KeepAlive(fan)

	return report(session, logger)
}

// applyFlags copies explicitly set flags over the loaded config
func applyFlags(cfg *config.Config) {
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "block-frames":
			cfg.Render.BlockFrames = *blockFrames
		case "rate":
			cfg.Render.SampleRate = *sampleRate
		case "bit-depth":
			cfg.Render.BitDepth = *bitDepth
		case "float":
			cfg.Render.FloatOutput = *floatOut
		case "bitrate":
			cfg.Render.OpusBitrate = *bitrate
		case "gain-db":
			cfg.Gain.GainDB = *gainDB
		case "fade-in":
			cfg.Gain.FadeInSeconds = *fadeIn
		case "fade-out":
			cfg.Gain.FadeOutSeconds = *fadeOut
		case "log-file":
			cfg.Logging.File = *logFile
		case "log-level":
			cfg.Logging.Level = strings.ToLower(*logLevel)
		case "log-format":
			cfg.Logging.Format = strings.ToLower(*logFormat)
		case "monitor":
			cfg.Monitor.Enabled = *monitorOn
		case "monitor-port":
			cfg.Monitor.Port = *monitorPort
		case "name":
			cfg.Monitor.Name = *name
		case "no-mdns":
			cfg.Monitor.MDNS = !*noMDNS
		}
	})
}

func rendererName(configured string) string {
	if configured != "" && configured != config.Default().Monitor.Name {
		return configured
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-offline-render", hostname)
}

func report(session *render.Session, logger *slog.Logger) int {
	switch session.State() {
	case render.Completed:
		fmt.Printf("Rendered %s -> %s: %d frames in %.2fs\n",
			session.Source(), session.Destination(), session.FramesWritten(), session.Elapsed())
		return exitOK
	case render.Failed:
		err := session.LastError()
		var ge *render.GraphError
		if errors.As(err, &ge) {
			logger.Error("render failed", slog.String("op", ge.Op), slog.Int("code", int(ge.Code)))
		}
		fmt.Fprintf(os.Stderr, "render failed: %v\n", err)
		return exitFailed
	default:
		fmt.Fprintf(os.Stderr, "render cancelled after %d frames\n", session.FramesWritten())
		return exitCancelled
	}
}

// terminalWaiter closes done once the session's final event is delivered
type terminalWaiter struct {
	once sync.Once
	done chan struct{}
}

func newTerminalWaiter() *terminalWaiter {
	return &terminalWaiter{done: make(chan struct{})}
}

func (w *terminalWaiter) OnEvent(_ *render.Session, e render.Event) {
	if e.Kind != render.EventProgress {
		w.once.Do(func() { close(w.done) })
	}
}
