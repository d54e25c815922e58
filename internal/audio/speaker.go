package audio

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// resampleQuality is the beep resampler quality used when an asset's sample
// rate differs from the speaker's.
const resampleQuality = 4

// SpeakerBackend drives real audio hardware through the beep speaker. It
// maintains a fixed pool of playback channels over the speaker mixer.
type SpeakerBackend struct {
	logger     *slog.Logger
	sampleRate beep.SampleRate
	bufferLen  time.Duration

	mu       sync.Mutex
	opened   bool
	channels []*speakerChannel
}

// NewSpeakerBackend creates a hardware backend with a pool of n channels.
// The speaker is not initialized until Open.
func NewSpeakerBackend(n, sampleRate int, bufferLen time.Duration, logger *slog.Logger) *SpeakerBackend {
	if logger == nil {
		logger = slog.Default()
	}

	b := &SpeakerBackend{
		logger:     logger,
		sampleRate: beep.SampleRate(sampleRate),
		bufferLen:  bufferLen,
	}

	b.channels = make([]*speakerChannel, n)
	for i := range b.channels {
		b.channels[i] = &speakerChannel{id: i, backend: b, logger: logger}
	}
	return b
}

// Open initializes the speaker.
func (b *SpeakerBackend) Open() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.opened {
		return nil
	}

	bufferSize := b.sampleRate.N(b.bufferLen)
	if err := speaker.Init(b.sampleRate, bufferSize); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}

	b.opened = true
	b.logger.Info("speaker initialized", "sample_rate", b.sampleRate, "channels", len(b.channels))
	return nil
}

// Close stops all playback and releases the speaker.
func (b *SpeakerBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.opened {
		return
	}

	for _, ch := range b.channels {
		_ = ch.Stop()
	}

	speaker.Clear()
	speaker.Close()
	b.opened = false
	b.logger.Debug("speaker closed")
}

// FreeChannel returns the first idle channel from the pool.
func (b *SpeakerBackend) FreeChannel() (Channel, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.opened {
		return nil, false
	}

	for _, ch := range b.channels {
		if !ch.Busy() {
			return ch, true
		}
	}
	return nil, false
}

// Decode loads and decodes a sound file into a buffered asset.
// Supports WAV, OGG, and MP3 formats.
func (b *SpeakerBackend) Decode(path string) (Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sound file: %w", err)
	}
	defer func() { _ = f.Close() }()

	ext := strings.ToLower(filepath.Ext(path))

	var streamer beep.StreamSeekCloser
	var format beep.Format

	switch ext {
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".ogg":
		streamer, format, err = vorbis.Decode(f)
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s", ext)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to decode sound: %w", err)
	}
	defer func() { _ = streamer.Close() }()

	buffer := beep.NewBuffer(format)
	buffer.Append(streamer)

	return &speakerAsset{name: filepath.Base(path), buffer: buffer}, nil
}

// speakerAsset holds a decoded sound ready for playback.
type speakerAsset struct {
	name   string
	buffer *beep.Buffer
}

func (a *speakerAsset) Name() string { return a.name }

// speakerChannel is one playback slot over the speaker mixer. Playback is
// built as buffer -> loop -> volume -> resample -> ctrl; Stop detaches the
// ctrl's streamer so the mixer drains it.
type speakerChannel struct {
	id      int
	backend *SpeakerBackend
	logger  *slog.Logger

	mu     sync.Mutex
	gain   int
	busy   bool
	ctrl   *beep.Ctrl
	volume *effects.Volume
}

// SetGain sets the channel gain, applying it to the live stream if any.
func (c *speakerChannel) SetGain(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	c.mu.Lock()
	c.gain = percent
	vol := c.volume
	c.mu.Unlock()

	if vol != nil {
		speaker.Lock()
		vol.Volume = gainExponent(percent)
		vol.Silent = percent <= 0
		speaker.Unlock()
	}
}

// Gain returns the gain most recently applied to the channel.
func (c *speakerChannel) Gain() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gain
}

// PlayLoop starts infinite looped playback of the asset on this channel.
func (c *speakerChannel) PlayLoop(asset Asset) error {
	sa, ok := asset.(*speakerAsset)
	if !ok {
		return fmt.Errorf("asset %q was not decoded by this backend", asset.Name())
	}

	loop, err := beep.Loop2(sa.buffer.Streamer(0, sa.buffer.Len()))
	if err != nil {
		return fmt.Errorf("failed to loop %s: %w", asset.Name(), err)
	}

	c.mu.Lock()
	gain := c.gain
	c.mu.Unlock()

	vol := &effects.Volume{
		Streamer: loop,
		Base:     2,
		Volume:   gainExponent(gain),
		Silent:   gain <= 0,
	}

	var out beep.Streamer = vol
	if sa.buffer.Format().SampleRate != c.backend.sampleRate {
		out = beep.Resample(resampleQuality, sa.buffer.Format().SampleRate, c.backend.sampleRate, vol)
	}

	ctrl := &beep.Ctrl{Streamer: out}

	c.mu.Lock()
	c.ctrl = ctrl
	c.volume = vol
	c.busy = true
	c.mu.Unlock()

	speaker.Play(ctrl)
	c.logger.Debug("playback started", "channel", c.id, "asset", asset.Name(), "gain", gain)
	return nil
}

// Stop halts playback and frees the channel.
func (c *speakerChannel) Stop() error {
	c.mu.Lock()
	ctrl := c.ctrl
	c.ctrl = nil
	c.volume = nil
	c.busy = false
	c.mu.Unlock()

	if ctrl != nil {
		// A Ctrl with a nil streamer reports drained, so the mixer drops it.
		speaker.Lock()
		ctrl.Streamer = nil
		speaker.Unlock()
	}
	return nil
}

// Busy reports whether the channel holds an active stream.
func (c *speakerChannel) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// gainExponent converts a percentage gain to the base-2 volume exponent
// used by effects.Volume (100% -> 0, 50% -> -1, 25% -> -2).
func gainExponent(percent int) float64 {
	if percent <= 0 {
		return -10 // effectively silent; Silent is set as well
	}
	return math.Log2(float64(percent) / 100)
}
