package audio

import (
	"log/slog"
	"path/filepath"
	"sync"
)

// SimBackend is a hardware-free Backend for development and testing. It
// tracks busy flags and gains in memory and never touches audio devices or
// the filesystem, while preserving the state transitions the Coordinator
// observes on real hardware.
type SimBackend struct {
	mu       sync.Mutex
	logger   *slog.Logger
	channels []*SimChannel
}

// NewSimBackend creates a simulation backend with a pool of n channels.
func NewSimBackend(n int, logger *slog.Logger) *SimBackend {
	if logger == nil {
		logger = slog.Default()
	}

	b := &SimBackend{
		logger:   logger,
		channels: make([]*SimChannel, n),
	}
	for i := range b.channels {
		b.channels[i] = &SimChannel{id: i, logger: logger}
	}
	return b
}

// Open implements Backend. The simulation has nothing to initialize.
func (b *SimBackend) Open() error {
	b.logger.Info("simulation audio backend opened", "channels", len(b.channels))
	return nil
}

// Close implements Backend. Stops every channel.
func (b *SimBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.channels {
		_ = ch.Stop()
	}
	b.logger.Debug("simulation audio backend closed")
}

// FreeChannel implements Backend.
func (b *SimBackend) FreeChannel() (Channel, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.channels {
		if !ch.Busy() {
			return ch, true
		}
	}
	return nil, false
}

// Decode implements Backend. It fabricates an asset without reading the
// file, so missing sound files never fail in simulation mode.
func (b *SimBackend) Decode(path string) (Asset, error) {
	return simAsset{name: filepath.Base(path)}, nil
}

// Channels exposes the channel pool for test inspection.
func (b *SimBackend) Channels() []*SimChannel {
	return b.channels
}

type simAsset struct {
	name string
}

func (a simAsset) Name() string { return a.name }

// SimChannel is one simulated playback slot.
type SimChannel struct {
	id     int
	logger *slog.Logger

	mu    sync.Mutex
	busy  bool
	gain  int
	asset Asset
}

// SetGain implements Channel.
func (c *SimChannel) SetGain(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.gain = percent
}

// Gain implements Channel.
func (c *SimChannel) Gain() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gain
}

// PlayLoop implements Channel.
func (c *SimChannel) PlayLoop(asset Asset) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.busy = true
	c.asset = asset
	c.logger.Debug("simulated playback started", "channel", c.id, "asset", asset.Name())
	return nil
}

// Stop implements Channel.
func (c *SimChannel) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.busy = false
	c.asset = nil
	return nil
}

// Busy implements Channel.
func (c *SimChannel) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Playing returns the asset currently held by the channel, or nil.
func (c *SimChannel) Playing() Asset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.asset
}

// ForceIdle marks the channel idle without going through Stop, simulating a
// hardware-side stop the Coordinator didn't initiate.
func (c *SimChannel) ForceIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	c.asset = nil
}
