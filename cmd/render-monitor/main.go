// ABOUTME: Entry point for the render monitor
// ABOUTME: Follows a renderer's progress stream, found by address or mDNS
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sendspin/offline-render/internal/discovery"
	"github.com/Sendspin/offline-render/internal/logging"
	"github.com/Sendspin/offline-render/internal/monitor"
	"github.com/Sendspin/offline-render/internal/protocol"
)

var (
	addr        = flag.String("addr", "", "Renderer address host:port (skip mDNS)")
	path        = flag.String("path", protocol.Path, "Monitor websocket path")
	waitFor     = flag.Duration("discover-timeout", 10*time.Second, "How long to browse mDNS for a renderer")
	logLevel    = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	rawMessages = flag.Bool("raw", false, "Print raw JSON payloads")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	logger, err := logging.New(logging.Options{Level: *logLevel, Output: os.Stderr})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	target, targetPath := *addr, *path
	if target == "" {
		server, err := discover(ctx, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		target, targetPath = server.Addr(), server.Path
	}

	client, err := monitor.Dial(ctx, target, targetPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer client.Close()

	hello := client.Hello()
	fmt.Printf("Connected to %s (%s %s)\n", hello.Name, hello.Device.ProductName, hello.Device.SoftwareVersion)

	failed := false
	err = client.Follow(ctx, func(env protocol.Envelope) {
		if *rawMessages {
			fmt.Printf("%s %s\n", env.Type, env.Payload)
		} else {
			printMessage(env)
		}
		if env.Type == protocol.TypeSessionFailed {
			failed = true
		}
	})
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "connection lost: %v\n", err)
		return 1
	}
	if failed {
		return 1
	}
	return 0
}

func discover(ctx context.Context, logger *slog.Logger) (*discovery.ServerInfo, error) {
	logger.Info("browsing for renderers", slog.String("type", discovery.ServiceType))
	disc := discovery.NewManager(discovery.Config{Logger: logger})
	defer disc.Stop()
	if err := disc.Browse(); err != nil {
		return nil, err
	}

	select {
	case server := <-disc.Servers():
		fmt.Printf("Discovered %s at %s\n", server.Name, server.Addr())
		return server, nil
	case <-time.After(*waitFor):
		return nil, fmt.Errorf("no renderer found after %s", *waitFor)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func printMessage(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeSessionStart:
		var s protocol.SessionStart
		if env.Decode(&s) == nil {
			fmt.Printf("Session %s: %s -> %s (%.0f Hz, %d ch, %d frames)\n",
				s.SessionID, s.Source, s.Destination, s.SampleRate, s.Channels, s.TotalFrames)
		}
	case protocol.TypeSessionProgress:
		var p protocol.SessionProgress
		if env.Decode(&p) == nil {
			fmt.Printf("  %5.1f%%  %d frames\n", p.Progress*100, p.Frames)
		}
	case protocol.TypeSessionCompleted:
		var e protocol.SessionEnd
		if env.Decode(&e) == nil {
			fmt.Printf("Completed: %d frames\n", e.Frames)
		}
	case protocol.TypeSessionFailed:
		var e protocol.SessionEnd
		if env.Decode(&e) == nil {
			fmt.Printf("Failed after %d frames (code %d): %s\n", e.Frames, e.Code, e.Error)
		}
	default:
		fmt.Printf("%s\n", env.Type)
	}
}
