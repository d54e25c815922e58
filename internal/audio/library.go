package audio

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wakepi/wakepi/internal/config"
)

const (
	// KeyWhiteNoise is the library key for the white noise asset.
	KeyWhiteNoise = "white_noise"

	// KeyDefaultAlarm is the library key for the fallback alarm asset.
	KeyDefaultAlarm = "alarm_default"

	// alarmKeyPrefix prefixes per-file alarm keys, e.g. "alarm_chime.ogg".
	alarmKeyPrefix = "alarm_"
)

// Library owns the decoded sound assets for the Coordinator: any number of
// alarm sounds plus a single white noise bed. Assets are loaded once and
// reloaded only on explicit request.
type Library struct {
	logger  *slog.Logger
	backend Backend

	// Empty alarmDir marks a static library that never rescans disk.
	alarmDir         string
	defaultAlarmPath string
	whiteNoisePath   string

	mu        sync.RWMutex
	assets    map[string]Asset
	alarmKeys []string
}

// LoadLibrary scans the configured sound directories and decodes every
// eligible file through the backend. Directories are created if absent.
// Individual decode failures are logged and skipped; a library with zero
// alarm assets is valid and makes alarm playback a no-op.
func LoadLibrary(backend Backend, cfg *config.Config, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}

	l := &Library{
		logger:           logger,
		backend:          backend,
		alarmDir:         cfg.AlarmSoundsPath(),
		defaultAlarmPath: cfg.DefaultAlarmPath(),
		whiteNoisePath:   cfg.WhiteNoisePath(),
		assets:           make(map[string]Asset),
	}

	if err := os.MkdirAll(l.alarmDir, 0755); err != nil {
		logger.Warn("failed to create sound directories", "path", l.alarmDir, "error", err)
	}

	l.Reload()
	return l
}

// NewStaticLibrary returns a library whose assets are fabricated by the
// backend rather than read from disk. Used with the simulation backend,
// which must not touch the filesystem.
func NewStaticLibrary(backend Backend, cfg *config.Config, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}

	l := &Library{
		logger: logger,
		assets: make(map[string]Asset),
	}

	if asset, err := backend.Decode(cfg.Audio.AlarmSoundDefault); err == nil {
		l.assets[KeyDefaultAlarm] = asset
		l.alarmKeys = []string{KeyDefaultAlarm}
	}
	if asset, err := backend.Decode(cfg.Audio.WhiteNoiseSound); err == nil {
		l.assets[KeyWhiteNoise] = asset
	}

	logger.Info("static sound library initialized", "alarms", len(l.alarmKeys))
	return l
}

// Reload rescans the alarm sounds directory and the white noise file,
// replacing the current asset set. Static libraries are unaffected.
func (l *Library) Reload() {
	if l.alarmDir == "" {
		return
	}

	assets := make(map[string]Asset)
	var alarmKeys []string

	entries, err := os.ReadDir(l.alarmDir)
	if err != nil {
		l.logger.Warn("failed to read alarm sounds directory", "path", l.alarmDir, "error", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !EligibleSound(entry.Name()) {
			continue
		}

		path := filepath.Join(l.alarmDir, entry.Name())
		asset, err := l.backend.Decode(path)
		if err != nil {
			l.logger.Warn("failed to load alarm sound, skipping", "path", path, "error", err)
			continue
		}

		key := alarmKeyPrefix + entry.Name()
		assets[key] = asset
		alarmKeys = append(alarmKeys, key)
		l.logger.Info("loaded alarm sound", "path", path, "key", key)
	}

	if len(alarmKeys) == 0 {
		l.logger.Warn("no alarm sounds found, falling back to default", "dir", l.alarmDir)
		if asset, err := l.backend.Decode(l.defaultAlarmPath); err == nil {
			assets[KeyDefaultAlarm] = asset
			alarmKeys = append(alarmKeys, KeyDefaultAlarm)
			l.logger.Info("loaded default alarm sound", "path", l.defaultAlarmPath)
		} else {
			l.logger.Error("failed to load default alarm sound", "path", l.defaultAlarmPath, "error", err)
		}
	}

	if asset, err := l.backend.Decode(l.whiteNoisePath); err == nil {
		assets[KeyWhiteNoise] = asset
		l.logger.Info("loaded white noise sound", "path", l.whiteNoisePath)
	} else {
		l.logger.Warn("failed to load white noise sound", "path", l.whiteNoisePath, "error", err)
	}

	sort.Strings(alarmKeys)

	l.mu.Lock()
	l.assets = assets
	l.alarmKeys = alarmKeys
	l.mu.Unlock()

	l.logger.Info("sound library loaded", "alarms", len(alarmKeys))
}

// AlarmKeys returns the keys of all loaded alarm assets.
func (l *Library) AlarmKeys() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]string, len(l.alarmKeys))
	copy(keys, l.alarmKeys)
	return keys
}

// Lookup returns the asset stored under key.
func (l *Library) Lookup(key string) (Asset, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	asset, ok := l.assets[key]
	return asset, ok
}

// WhiteNoise returns the white noise asset if it was loaded.
func (l *Library) WhiteNoise() (Asset, bool) {
	return l.Lookup(KeyWhiteNoise)
}

// EligibleSound reports whether filename looks like a loadable sound file.
// Windows metadata artifacts (*.Identifier) are filtered out.
func EligibleSound(filename string) bool {
	if strings.HasSuffix(filename, ".Identifier") {
		return false
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav", ".ogg", ".mp3":
		return true
	}
	return false
}
