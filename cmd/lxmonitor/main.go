package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"lxmonitor/internal/config"
	"lxmonitor/internal/dmx"
	"lxmonitor/internal/listener"
	"lxmonitor/internal/monitor"
	"lxmonitor/internal/sniffer"
	"lxmonitor/internal/source"
	"lxmonitor/internal/tui"
)

func main() {
	var (
		configFile string
		listenAddr string
		universes  uint
		noCapture  bool
	)

	flag.StringVar(&configFile, "config", "lxmonitor.toml", "Path to configuration file")
	flag.StringVar(&listenAddr, "listen", "", "Local bind address (overrides config)")
	flag.UintVar(&universes, "universes", 0, "sACN multicast join range 1..N (overrides config)")
	flag.BoolVar(&noCapture, "no-capture", false, "Disable the promiscuous capture feature")
	flag.Parse()

	explicitConfig := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicitConfig = true
		}
	})

	cfg, err := config.Load(configFile, explicitConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Flags override config
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	if universes > 0 {
		cfg.MulticastUniverses = uint16(universes)
	}

	log := newLogger(cfg.Log)

	// Shared state
	registry := source.NewRegistry()
	store := dmx.NewStore()
	bus := listener.NewBus(0)

	// The capture engine is picked once at startup: driver-backed when a
	// capture driver loads, otherwise the stub that reports unavailable.
	var engine sniffer.Engine = sniffer.NewPcapEngine()
	if noCapture || !engine.Available() {
		engine = sniffer.NewStubEngine()
	}
	capture := sniffer.NewManager(engine, registry, store, bus, log.With("component", "sniffer"))

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	l := listener.New(registry, store, bus, log.With("component", "listener"), listener.Config{
		BindAddress:        cfg.Listen,
		ArtNet:             cfg.ArtNet,
		SACN:               cfg.SACN,
		MulticastUniverses: cfg.MulticastUniverses,
	})
	if err := l.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting listener: %v\n", err)
		os.Exit(1)
	}

	// First discovery round without waiting for the 10s timer
	if cfg.ArtNet {
		if err := l.SendPoll(); err != nil {
			log.Warn("initial ArtPoll failed", "error", err)
		}
	}

	service := monitor.New(registry, store, bus, capture, l)

	model := tui.NewModel(service, cfg.CaptureInterface)
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}

	cancel()
	capture.Disable()
}

// newLogger builds the process logger from config. The TUI owns stdout,
// so logs go to stderr.
func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
