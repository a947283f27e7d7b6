package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petems/iotray/internal/app"
	"github.com/petems/iotray/internal/audio"
	"github.com/petems/iotray/internal/config"
	"github.com/petems/iotray/internal/coord"
	"github.com/petems/iotray/internal/hal"
	"github.com/petems/iotray/internal/hotkey"
	"github.com/petems/iotray/internal/logging"
	"github.com/petems/iotray/internal/permissions"
	"github.com/petems/iotray/internal/tray"
	"github.com/petems/iotray/internal/video"
	"github.com/rs/zerolog"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

type flags struct {
	configPath string
	logLevel   string
	list       bool
	simulate   bool
	version    bool
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("iotray", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "path to config file (default "+config.Path()+")")
	fs.StringVar(&f.logLevel, "loglevel", "", "log level: trace, debug, info, warn, error")
	fs.BoolVar(&f.list, "list", false, "print the device report and exit")
	fs.BoolVar(&f.simulate, "simulate", false, "run on simulated hardware")
	fs.BoolVar(&f.version, "version", false, "print version and exit")
	return f, fs.Parse(args)
}

func main() {
	f, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if f.version {
		fmt.Printf("iotray %s (%s)\n", Version, Commit)
		return
	}

	// Load config from XDG/Library/AppData
	cfg, err := config.Load(f.configPath)
	if err != nil {
		// Use default logger if config fails to load
		log := logging.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	cfg.Simulate = cfg.Simulate || f.simulate

	// Initialize logger with configured level
	log := logging.NewWithLevel(cfg.LogLevel)

	audioHW, videoHW, gate, err := openHardware(cfg.Simulate)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open hardware")
	}
	defer audioHW.Close()
	defer videoHW.Close()
	log.Info().Str("audio", audioHW.Name()).Str("video", videoHW.Name()).Msg("Opened hardware")

	loop := coord.New(log)
	defer loop.Close()

	audioMgr, err := audio.New(audio.Config{Hardware: audioHW, Loop: loop, Logger: log})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audio devices")
	}
	videoMgr, err := video.New(video.Config{Hardware: videoHW, Loop: loop, Logger: log})
	if err != nil {
		audioMgr.Close()
		log.Fatal().Err(err).Msg("Failed to initialize cameras")
	}

	application := app.New(app.Config{
		Audio:       audioMgr,
		Video:       videoMgr,
		Permissions: gate,
		Config:      cfg,
		Logger:      log,
	})

	if f.list {
		fmt.Print(application.Report())
		shutdown(application, log)
		return
	}

	// Initialize hotkey manager
	hkManager, err := hotkey.New()
	if err != nil {
		log.Warn().Err(err).Msg("Global hotkeys unavailable")
	} else {
		defer hkManager.Close()
		registerMuteHotkey(hkManager, cfg.PlatformMuteHotkey(), application, log)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup shutdown signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("Shutting down...")
		cancel()
	}()

	log.Info().Msg("iotray starting...")

	// Start tray UI - MUST run on main thread
	trayUI := tray.New(application, cfg, log, Version, Commit)
	if err := trayUI.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Tray error")
	}
	shutdown(application, log)
}

// openHardware picks the platform backends, or the demo fakes when
// simulating.
func openHardware(simulate bool) (hal.Backend, video.Backend, permissions.Gate, error) {
	if simulate {
		return hal.NewDemoFake(), video.NewDemoFake(), permissions.Static{}, nil
	}

	audioHW, err := hal.New()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("audio backend: %w", err)
	}
	videoHW, err := video.NewBackend()
	if err != nil {
		audioHW.Close()
		return nil, nil, nil, fmt.Errorf("video backend: %w", err)
	}
	return audioHW, videoHW, permissions.New(), nil
}

func registerMuteHotkey(m hotkey.Manager, accel string, application *app.App, log zerolog.Logger) {
	if accel == "" {
		return
	}
	err := m.Register(accel, application.OnHotkey)
	switch {
	case errors.Is(err, hotkey.ErrUnsupported):
		log.Debug().Str("hotkey", accel).Msg("Global hotkeys not supported here")
	case err != nil:
		log.Warn().Err(err).Str("hotkey", accel).Msg("Failed to register mute hotkey")
	default:
		log.Info().Str("hotkey", accel).Msg("Registered mute hotkey")
	}
}

func shutdown(application *app.App, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := application.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}
