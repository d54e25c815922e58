package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
)

// duckCeiling is the gain applied to the white noise channel while an alarm
// plays. The original policy applies this ceiling even when the master
// volume is already below it, so ducking can momentarily raise the
// effective gain; preserved deliberately.
const duckCeiling = 20

// ErrVolumeOutOfRange is returned when a volume outside 0-100 is requested.
var ErrVolumeOutOfRange = errors.New("volume must be between 0 and 100")

// VolumeStore persists the master volume across restarts. Persistence is
// best effort: write failures are logged, never surfaced.
type VolumeStore interface {
	Volume() int
	SetVolume(volume int) error
}

// Options configures a Coordinator.
type Options struct {
	Logger   *slog.Logger
	Notifier StatusNotifier

	// Store seeds the initial master volume and receives updates. May be
	// nil, in which case MasterVolume is used and nothing is persisted.
	Store VolumeStore

	// MasterVolume is the default master (white noise) volume, 0-100.
	MasterVolume int

	// AlarmVolume is the default alarm volume, 0-100. Never persisted.
	AlarmVolume int
}

// Coordinator owns all playback state: whether the alarm and white noise
// streams are playing, their channels, and the volume levels. All state
// mutations are serialized through one lock; channel I/O happens outside
// the critical section so a slow hardware call never starves queries.
type Coordinator struct {
	logger   *slog.Logger
	backend  Backend
	library  *Library
	notifier StatusNotifier
	store    VolumeStore

	mu                sync.Mutex
	masterVolume      int
	alarmVolume       int
	previousVolume    int
	alarmPlaying      bool
	alarmChannel      Channel
	whiteNoisePlaying bool
	whiteNoiseChannel Channel
	cleaned           bool
}

// NewCoordinator creates a Coordinator over the given backend and library.
// The master volume is seeded from opts.Store when present, otherwise from
// opts.MasterVolume. Volume defaults outside 0-100 are a configuration
// error and prevent construction.
func NewCoordinator(backend Backend, library *Library, opts Options) (*Coordinator, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}

	if opts.MasterVolume < 0 || opts.MasterVolume > 100 {
		return nil, fmt.Errorf("invalid master volume %d: %w", opts.MasterVolume, ErrVolumeOutOfRange)
	}
	if opts.AlarmVolume < 0 || opts.AlarmVolume > 100 {
		return nil, fmt.Errorf("invalid alarm volume %d: %w", opts.AlarmVolume, ErrVolumeOutOfRange)
	}

	volume := opts.MasterVolume
	if opts.Store != nil {
		volume = opts.Store.Volume()
		opts.Logger.Debug("loaded volume from settings", "volume", volume)
	}

	return &Coordinator{
		logger:         opts.Logger,
		backend:        backend,
		library:        library,
		notifier:       opts.Notifier,
		store:          opts.Store,
		masterVolume:   volume,
		alarmVolume:    opts.AlarmVolume,
		previousVolume: volume,
	}, nil
}

// PlayAlarm starts looped playback of a randomly selected alarm sound,
// restarting any alarm already playing. If white noise is playing its gain
// is ducked for the duration of the alarm. With no alarm assets loaded or
// no free channel this is a logged no-op.
func (c *Coordinator) PlayAlarm() {
	keys := c.library.AlarmKeys()
	if len(keys) == 0 {
		c.logger.Warn("no alarm sounds loaded")
		return
	}

	c.StopAlarm()

	c.mu.Lock()
	wnPlaying := c.whiteNoisePlaying
	wnChannel := c.whiteNoiseChannel
	if wnPlaying {
		c.previousVolume = c.masterVolume
	}
	alarmVolume := c.alarmVolume
	c.mu.Unlock()

	if wnPlaying && wnChannel != nil {
		c.logger.Debug("ducking white noise for alarm", "gain", duckCeiling)
		wnChannel.SetGain(duckCeiling)
	}

	// Random selection avoids habituation to a single tone
	key := keys[rand.Intn(len(keys))]
	asset, ok := c.library.Lookup(key)
	if !ok {
		c.logger.Error("selected alarm sound not found", "key", key)
		return
	}

	channel, ok := c.backend.FreeChannel()
	if !ok {
		c.logger.Warn("no available channel to play alarm")
		return
	}

	channel.SetGain(alarmVolume)
	if err := channel.PlayLoop(asset); err != nil {
		c.logger.Error("failed to play alarm", "key", key, "error", err)
		_ = channel.Stop()
		return
	}

	c.mu.Lock()
	superseded := c.alarmChannel
	c.alarmChannel = channel
	c.alarmPlaying = true
	c.mu.Unlock()

	// A concurrent PlayAlarm may have committed another channel between our
	// StopAlarm and this commit; stop it so it doesn't loop unowned.
	if superseded != nil && superseded != channel && superseded.Busy() {
		c.logger.Warn("stopping alarm channel superseded by concurrent start")
		if err := superseded.Stop(); err != nil {
			c.logger.Error("failed to stop superseded alarm channel", "error", err)
		}
	}

	c.logger.Info("alarm started playing", "key", key)
	c.emit(func(n StatusNotifier) { n.NotifyAlarmStatus(true) })
}

// StopAlarm stops the alarm if it is playing and restores the white noise
// gain ducked by PlayAlarm. Idempotent: a second call is a no-op and emits
// no status event.
func (c *Coordinator) StopAlarm() {
	c.mu.Lock()
	channel := c.alarmChannel
	wasPlaying := c.alarmPlaying
	c.alarmPlaying = false
	c.alarmChannel = nil
	wnPlaying := c.whiteNoisePlaying
	wnChannel := c.whiteNoiseChannel
	previousVolume := c.previousVolume
	c.mu.Unlock()

	if channel != nil && channel.Busy() {
		if err := channel.Stop(); err != nil {
			c.logger.Error("failed to stop alarm", "error", err)
		} else {
			c.logger.Info("alarm stopped")
		}
	}

	if wnPlaying && wnChannel != nil {
		wnChannel.SetGain(previousVolume)
	}

	if wasPlaying {
		c.emit(func(n StatusNotifier) { n.NotifyAlarmStatus(false) })
	}
}

// PlayWhiteNoise starts looped white noise playback, restarting any
// current playback. Returns false when the white noise asset is missing,
// no channel is free, or the playback call fails; in every failure case
// the stream is left not-playing.
func (c *Coordinator) PlayWhiteNoise() bool {
	asset, ok := c.library.WhiteNoise()
	if !ok {
		c.logger.Error("white noise sound not loaded")
		c.mu.Lock()
		c.whiteNoisePlaying = false
		c.mu.Unlock()
		return false
	}

	c.StopWhiteNoise()

	channel, ok := c.backend.FreeChannel()
	if !ok {
		c.logger.Error("no available channel to play white noise")
		c.mu.Lock()
		c.whiteNoisePlaying = false
		c.mu.Unlock()
		return false
	}

	c.mu.Lock()
	gain := c.masterVolume
	if c.alarmPlaying {
		gain = min(gain, duckCeiling)
	}
	c.mu.Unlock()

	channel.SetGain(gain)
	if err := channel.PlayLoop(asset); err != nil {
		c.logger.Error("failed to play white noise", "error", err)
		_ = channel.Stop()
		c.mu.Lock()
		c.whiteNoisePlaying = false
		c.mu.Unlock()
		return false
	}

	c.mu.Lock()
	superseded := c.whiteNoiseChannel
	c.whiteNoiseChannel = channel
	c.whiteNoisePlaying = true
	c.previousVolume = c.masterVolume
	c.mu.Unlock()

	if superseded != nil && superseded != channel && superseded.Busy() {
		c.logger.Warn("stopping white noise channel superseded by concurrent start")
		if err := superseded.Stop(); err != nil {
			c.logger.Error("failed to stop superseded white noise channel", "error", err)
		}
	}

	c.logger.Info("white noise started playing", "gain", gain)
	c.emit(func(n StatusNotifier) { n.NotifyWhiteNoiseStatus(true) })
	return true
}

// StopWhiteNoise stops white noise playback. Returns false only when the
// channel stop call itself fails; stopping an already-stopped stream is a
// successful no-op that emits no status event.
func (c *Coordinator) StopWhiteNoise() bool {
	c.mu.Lock()
	channel := c.whiteNoiseChannel
	wasPlaying := c.whiteNoisePlaying
	c.whiteNoisePlaying = false
	c.whiteNoiseChannel = nil
	c.mu.Unlock()

	stopped := true
	if channel != nil && channel.Busy() {
		if err := channel.Stop(); err != nil {
			c.logger.Error("failed to stop white noise", "error", err)
			stopped = false
		} else {
			c.logger.Info("white noise stopped")
		}
	}

	if wasPlaying {
		c.emit(func(n StatusNotifier) { n.NotifyWhiteNoiseStatus(false) })
	}
	return stopped
}

// ToggleWhiteNoise stops white noise if playing, starts it otherwise.
func (c *Coordinator) ToggleWhiteNoise() bool {
	if c.IsWhiteNoisePlaying() {
		return c.StopWhiteNoise()
	}
	return c.PlayWhiteNoise()
}

// AdjustVolume sets the master volume, applies it to a live white noise
// channel (respecting ducking while an alarm plays), persists it best
// effort, and emits a volume event. Out-of-range values are rejected.
func (c *Coordinator) AdjustVolume(volume int) error {
	if volume < 0 || volume > 100 {
		return fmt.Errorf("invalid volume %d: %w", volume, ErrVolumeOutOfRange)
	}

	c.mu.Lock()
	c.masterVolume = volume
	c.previousVolume = volume
	wnPlaying := c.whiteNoisePlaying
	wnChannel := c.whiteNoiseChannel
	alarmPlaying := c.alarmPlaying
	c.mu.Unlock()

	if wnPlaying && wnChannel != nil {
		gain := volume
		if alarmPlaying {
			gain = min(gain, duckCeiling)
		}
		wnChannel.SetGain(gain)
	}

	if c.store != nil {
		if err := c.store.SetVolume(volume); err != nil {
			c.logger.Warn("failed to persist volume", "volume", volume, "error", err)
		}
	}

	c.logger.Info("volume set", "volume", volume)
	c.emit(func(n StatusNotifier) { n.NotifyVolume(volume) })
	return nil
}

// SetAlarmVolume sets the alarm volume, applying it to a live alarm
// channel immediately. Alarm volume is independent of the master volume
// and never persisted.
func (c *Coordinator) SetAlarmVolume(volume int) error {
	if volume < 0 || volume > 100 {
		return fmt.Errorf("invalid alarm volume %d: %w", volume, ErrVolumeOutOfRange)
	}

	c.mu.Lock()
	c.alarmVolume = volume
	alarmPlaying := c.alarmPlaying
	channel := c.alarmChannel
	c.mu.Unlock()

	if alarmPlaying && channel != nil {
		channel.SetGain(volume)
	}

	c.logger.Info("alarm volume set", "volume", volume)
	return nil
}

// Volume returns the current master volume.
func (c *Coordinator) Volume() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.masterVolume
}

// AlarmVolume returns the current alarm volume.
func (c *Coordinator) AlarmVolume() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alarmVolume
}

// WhiteNoiseVolume returns the gain applied to the live white noise
// channel, or the master volume when white noise is not playing.
func (c *Coordinator) WhiteNoiseVolume() int {
	c.mu.Lock()
	channel := c.whiteNoiseChannel
	playing := c.whiteNoisePlaying
	volume := c.masterVolume
	c.mu.Unlock()

	if playing && channel != nil {
		return channel.Gain()
	}
	return volume
}

// IsAlarmPlaying reports whether the alarm is playing, re-validating the
// internal flag against the channel's busy state. A channel that went idle
// outside the Coordinator's control corrects the flag to false.
func (c *Coordinator) IsAlarmPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.alarmPlaying || c.alarmChannel == nil {
		return false
	}
	if !c.alarmChannel.Busy() {
		c.logger.Warn("alarm state mismatch detected, correcting")
		c.alarmPlaying = false
	}
	return c.alarmPlaying
}

// IsWhiteNoisePlaying reports whether white noise is playing, with the
// same self-correction as IsAlarmPlaying.
func (c *Coordinator) IsWhiteNoisePlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.whiteNoisePlaying || c.whiteNoiseChannel == nil {
		return false
	}
	if !c.whiteNoiseChannel.Busy() {
		c.logger.Warn("white noise state mismatch detected, correcting")
		c.whiteNoisePlaying = false
	}
	return c.whiteNoisePlaying
}

// Cleanup stops both streams and releases the audio backend. Idempotent
// and safe on a Coordinator whose backend never fully initialized.
func (c *Coordinator) Cleanup() {
	c.mu.Lock()
	if c.cleaned {
		c.mu.Unlock()
		return
	}
	c.cleaned = true
	c.mu.Unlock()

	c.StopWhiteNoise()
	c.StopAlarm()
	c.backend.Close()
	c.logger.Info("audio resources cleaned up")
}

// emit delivers a status change, containing any notifier failure so it
// never affects playback state.
func (c *Coordinator) emit(fn func(StatusNotifier)) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("status notifier panicked", "panic", r)
		}
	}()
	fn(c.notifier)
}
