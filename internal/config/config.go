// Package config provides the configuration schema, loader, and file watcher
// for the voxgate detection service.
package config

import (
	"time"

	"github.com/MrWong99/voxgate/pkg/vad"
)

// LogLevel controls log verbosity for the voxgate commands.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// DefaultProfile is the profile name commands fall back to when none is
// selected explicitly.
const DefaultProfile = "default"

// Config is the root configuration structure for voxgate.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Input    InputConfig     `yaml:"input"`
	Profiles []ProfileConfig `yaml:"profiles"`
}

// ServerConfig holds logging and telemetry settings shared by all commands.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address the operational HTTP endpoint
	// (metrics, health) listens on (e.g., ":9090"). Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
}

// InputConfig describes the PCM stream the stream command expects on stdin.
type InputConfig struct {
	// SampleRate in Hz. Defaults to 16000.
	SampleRate int `yaml:"sample_rate"`

	// Channels: 1 for mono, 2 for interleaved stereo (downmixed on ingest).
	// Defaults to 1.
	Channels int `yaml:"channels"`

	// BlockSize is the number of samples per detector block. Defaults to 512.
	BlockSize int `yaml:"block_size"`
}

// BlockDuration returns the wall-clock duration of one detector block for
// this input format.
func (in InputConfig) BlockDuration() time.Duration {
	if in.SampleRate <= 0 || in.BlockSize <= 0 {
		return 0
	}
	return time.Duration(int64(in.BlockSize) * int64(time.Second) / int64(in.SampleRate))
}

// ProfileConfig is a named detector tuning. Onset and offset may be given
// either as block counts (onset_frames / offset_frames) or as durations
// ("24ms" / "200ms") that are converted using the input block duration.
// The two forms are mutually exclusive per field.
type ProfileConfig struct {
	// Name identifies the profile for --profile flags and logs.
	Name string `yaml:"name"`

	// SpeechThreshold is the RMS level above which a block counts as
	// speech. 0 selects the built-in default.
	SpeechThreshold float64 `yaml:"speech_threshold"`

	// OnsetFrames is the number of consecutive speech blocks required to
	// enter the speaking state. 0 selects the built-in default.
	OnsetFrames int `yaml:"onset_frames"`

	// OffsetFrames is the number of consecutive silence blocks required to
	// leave the speaking state. 0 selects the built-in default.
	OffsetFrames int `yaml:"offset_frames"`

	// Onset is the duration form of OnsetFrames (e.g. "24ms").
	Onset string `yaml:"onset"`

	// Offset is the duration form of OffsetFrames (e.g. "200ms").
	Offset string `yaml:"offset"`
}

// Detector resolves the profile into a detector configuration, converting
// duration-based onset/offset using blockDuration. Fields left at zero pass
// through so the detector applies its own defaults. Call only on profiles
// that passed [Validate]; malformed duration strings resolve as unset here.
func (p ProfileConfig) Detector(blockDuration time.Duration) vad.Config {
	cfg := vad.Config{
		SpeechThreshold: p.SpeechThreshold,
		OnsetFrames:     p.OnsetFrames,
		OffsetFrames:    p.OffsetFrames,
	}
	if d, err := time.ParseDuration(p.Onset); p.Onset != "" && err == nil {
		cfg.OnsetFrames = vad.FramesForDuration(d, blockDuration)
	}
	if d, err := time.ParseDuration(p.Offset); p.Offset != "" && err == nil {
		cfg.OffsetFrames = vad.FramesForDuration(d, blockDuration)
	}
	return cfg
}

// Profile returns the named profile, or false when no profile with that
// name exists.
func (c *Config) Profile(name string) (ProfileConfig, bool) {
	for _, p := range c.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return ProfileConfig{}, false
}

// ProfileNames returns the names of all configured profiles in file order.
func (c *Config) ProfileNames() []string {
	names := make([]string, len(c.Profiles))
	for i, p := range c.Profiles {
		names[i] = p.Name
	}
	return names
}

// Default returns the configuration used when no config file is given:
// 16kHz mono input in 512-sample blocks, info logging, telemetry disabled,
// and no named profiles beyond the detector's built-in tuning.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills unset fields with their documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Input.SampleRate == 0 {
		cfg.Input.SampleRate = 16000
	}
	if cfg.Input.Channels == 0 {
		cfg.Input.Channels = 1
	}
	if cfg.Input.BlockSize == 0 {
		cfg.Input.BlockSize = 512
	}
}
