// Package main is the entry point for the wakepid audio daemon.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wakepi/wakepi/internal/audio"
	"github.com/wakepi/wakepi/internal/config"
	"github.com/wakepi/wakepi/internal/settings"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

var (
	globalOpts struct {
		verbose    bool
		configPath string
		soundsDir  string
		dev        bool
	}
	logger *slog.Logger
)

// rootCmd represents the wakepid daemon command.
var rootCmd = &cobra.Command{
	Use:   "wakepid",
	Short: "Alarm clock audio daemon",
	Long: `wakepid is the audio subsystem daemon of a Raspberry Pi alarm clock.

It plays alarm tones and a white noise bed through a shared audio output,
with independent volume controls for each stream. The HTTP/WebSocket API
layer and the alarm scheduler attach to it as external consumers.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	RunE:    run,
}

func init() {
	rootCmd.Flags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.Flags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/wakepi/wakepid.toml)")
	rootCmd.Flags().StringVar(&globalOpts.soundsDir, "sounds-dir", "",
		"Override the sound asset directory")
	rootCmd.Flags().BoolVar(&globalOpts.dev, "dev", false,
		"Run with the simulation audio backend (no hardware required)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	setupLogger()

	logger.Info("starting wakepid", "version", version)

	// Load configuration
	cfg, err := config.Load(globalOpts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if globalOpts.soundsDir != "" {
		cfg.Audio.SoundsDir = globalOpts.soundsDir
	}
	if globalOpts.dev {
		cfg.Dev.Simulate = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Open the settings store for volume persistence. The daemon can run
	// without it; volume changes just won't survive a restart.
	var store audio.VolumeStore
	statePath, err := settings.StatePath()
	if err != nil {
		logger.Warn("failed to resolve state path, volume will not persist", "error", err)
	} else {
		s, err := settings.NewStore(statePath, logger)
		if err != nil {
			logger.Warn("failed to open settings store, volume will not persist", "error", err)
		} else {
			store = s
		}
	}

	// Select the audio backend and load the sound library
	var backend audio.Backend
	if cfg.Dev.Simulate {
		logger.Info("running in development mode, using simulation backend")
		backend = audio.NewSimBackend(cfg.Mixer.Channels, logger)
	} else {
		backend = audio.NewSpeakerBackend(cfg.Mixer.Channels, cfg.Mixer.SampleRate,
			cfg.Mixer.Buffer.Duration(), logger)
	}
	if err := backend.Open(); err != nil {
		return fmt.Errorf("failed to initialize audio system: %w", err)
	}

	var library *audio.Library
	if cfg.Dev.Simulate {
		library = audio.NewStaticLibrary(backend, cfg, logger)
	} else {
		library = audio.LoadLibrary(backend, cfg, logger)
	}

	// Status events go to the broadcast transport attached by the API
	// layer; until one is attached, log them.
	dispatcher := audio.NewDispatcher(func(ev audio.StatusEvent) {
		logger.Info("status event", "id", ev.ID, "kind", ev.Kind,
			"playing", ev.Playing, "volume", ev.Volume)
	}, logger)

	coordinator, err := audio.NewCoordinator(backend, library, audio.Options{
		Logger:       logger,
		Notifier:     dispatcher,
		Store:        store,
		MasterVolume: cfg.Audio.Volume,
		AlarmVolume:  cfg.Audio.AlarmVolume,
	})
	if err != nil {
		backend.Close()
		return fmt.Errorf("failed to create coordinator: %w", err)
	}

	// Hot-reload alarm sounds dropped into the sounds directory
	var watcher *audio.LibraryWatcher
	if !cfg.Dev.Simulate {
		watcher, err = audio.NewLibraryWatcher(library, cfg.AlarmSoundsPath(), logger)
		if err != nil {
			logger.Warn("failed to create sound library watcher", "error", err)
		} else if err := watcher.Start(); err != nil {
			logger.Warn("failed to start sound library watcher", "error", err)
		}
	}

	logger.Info("wakepid ready",
		"volume", coordinator.Volume(),
		"alarm_volume", coordinator.AlarmVolume(),
		"alarms", len(library.AlarmKeys()))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)

	if watcher != nil {
		watcher.Stop()
	}
	coordinator.Cleanup()
	dispatcher.Close()

	logger.Info("wakepid stopped")
	return nil
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelInfo
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}
