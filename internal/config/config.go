// Package config provides configuration loading and validation for wakepid.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "100ms", "1s", or integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	// Integer values are treated as milliseconds
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '100ms', '1s' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config is the configuration for wakepid.
// Loaded from ~/.config/wakepi/wakepid.toml
type Config struct {
	Audio AudioConfig `toml:"audio"`
	Mixer MixerConfig `toml:"mixer"`
	Dev   DevConfig   `toml:"dev"`
}

// AudioConfig contains sound asset locations and default volume levels.
type AudioConfig struct {
	Volume            int    `toml:"volume"`              // Default master (white noise) volume, 0-100
	AlarmVolume       int    `toml:"alarm_volume"`        // Default alarm volume, 0-100
	AlarmSoundDefault string `toml:"alarm_sound_default"` // Fallback alarm filename under sounds_dir
	WhiteNoiseSound   string `toml:"white_noise_sound"`   // White noise filename under sounds_dir
	SoundsDir         string `toml:"sounds_dir"`          // Base directory for sound files
	AlarmSoundsSubdir string `toml:"alarm_sounds_subdir"` // Subdirectory of sounds_dir holding alarm sounds
}

// MixerConfig contains playback backend settings.
type MixerConfig struct {
	Channels   int      `toml:"channels"`    // Size of the playback channel pool
	SampleRate int      `toml:"sample_rate"` // Output sample rate in Hz
	Buffer     Duration `toml:"buffer"`      // Speaker buffer length, e.g. "100ms"
}

// DevConfig contains development-mode settings.
type DevConfig struct {
	Simulate bool `toml:"simulate"` // Use the simulation backend instead of real audio hardware
}

// Default returns a new Config with default values.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			Volume:            50,
			AlarmVolume:       75,
			AlarmSoundDefault: "default_alarm.ogg",
			WhiteNoiseSound:   "white_noise.ogg",
			SoundsDir:         defaultSoundsDir(),
			AlarmSoundsSubdir: "alarms",
		},
		Mixer: MixerConfig{
			Channels:   8,
			SampleRate: 44100,
			Buffer:     Duration(100 * time.Millisecond),
		},
		Dev: DevConfig{
			Simulate: false,
		},
	}
}

// defaultSoundsDir returns the default sound asset directory.
// Uses XDG_DATA_HOME or ~/.local/share, falling back to a relative path.
func defaultSoundsDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "sounds"
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "wakepi", "sounds")
}

// Path returns the path to the wakepid config file.
func Path() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "wakepi", "wakepid.toml"), nil
}

// Load loads the configuration from the given path.
// If path is empty the default location is used; if the file doesn't exist,
// the default configuration is returned.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay with file contents
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given path, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Audio.Volume)
	}
	if c.Audio.AlarmVolume < 0 || c.Audio.AlarmVolume > 100 {
		return fmt.Errorf("alarm_volume must be between 0 and 100, got %d", c.Audio.AlarmVolume)
	}
	if c.Audio.SoundsDir == "" {
		return fmt.Errorf("sounds_dir must not be empty")
	}
	if c.Audio.AlarmSoundsSubdir == "" {
		return fmt.Errorf("alarm_sounds_subdir must not be empty")
	}
	if c.Audio.WhiteNoiseSound == "" {
		return fmt.Errorf("white_noise_sound must not be empty")
	}
	if c.Mixer.Channels < 2 || c.Mixer.Channels > 64 {
		return fmt.Errorf("channels must be between 2 and 64, got %d", c.Mixer.Channels)
	}
	if c.Mixer.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.Mixer.SampleRate)
	}
	if c.Mixer.Buffer.Duration() <= 0 {
		return fmt.Errorf("buffer must be positive, got %s", c.Mixer.Buffer.Duration())
	}
	return nil
}

// AlarmSoundsPath returns the directory holding alarm sound files.
func (c *Config) AlarmSoundsPath() string {
	return filepath.Join(c.Audio.SoundsDir, c.Audio.AlarmSoundsSubdir)
}

// DefaultAlarmPath returns the path to the fallback alarm sound.
func (c *Config) DefaultAlarmPath() string {
	return filepath.Join(c.Audio.SoundsDir, c.Audio.AlarmSoundDefault)
}

// WhiteNoisePath returns the path to the white noise sound.
func (c *Config) WhiteNoisePath() string {
	return filepath.Join(c.Audio.SoundsDir, c.Audio.WhiteNoiseSound)
}
