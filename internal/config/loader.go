package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
// Legal but unusual tunings are logged as warnings instead of rejected.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Input. Zero means unset; [Load] fills the documented default.
	if cfg.Input.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("input.sample_rate %d must be positive", cfg.Input.SampleRate))
	}
	if cfg.Input.Channels != 0 && cfg.Input.Channels != 1 && cfg.Input.Channels != 2 {
		errs = append(errs, fmt.Errorf("input.channels %d is invalid; valid values: 1 (mono), 2 (stereo)", cfg.Input.Channels))
	}
	if cfg.Input.BlockSize < 0 {
		errs = append(errs, fmt.Errorf("input.block_size %d must be positive", cfg.Input.BlockSize))
	}

	// Profile duplicate name detection
	namesSeen := make(map[string]int, len(cfg.Profiles))

	// Profiles
	for i, p := range cfg.Profiles {
		prefix := fmt.Sprintf("profiles[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := namesSeen[p.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of profiles[%d]", prefix, p.Name, prev))
			}
			namesSeen[p.Name] = i
		}

		if p.SpeechThreshold != 0 && (p.SpeechThreshold <= 0 || p.SpeechThreshold >= 1) {
			errs = append(errs, fmt.Errorf("%s.speech_threshold %g is out of range (0, 1)", prefix, p.SpeechThreshold))
		}
		if p.OnsetFrames < 0 {
			errs = append(errs, fmt.Errorf("%s.onset_frames %d must not be negative", prefix, p.OnsetFrames))
		}
		if p.OffsetFrames < 0 {
			errs = append(errs, fmt.Errorf("%s.offset_frames %d must not be negative", prefix, p.OffsetFrames))
		}

		// Frame-count and duration forms are mutually exclusive per field.
		if p.OnsetFrames != 0 && p.Onset != "" {
			errs = append(errs, fmt.Errorf("%s: onset_frames and onset are mutually exclusive", prefix))
		}
		if p.OffsetFrames != 0 && p.Offset != "" {
			errs = append(errs, fmt.Errorf("%s: offset_frames and offset are mutually exclusive", prefix))
		}

		errs = append(errs, validateProfileDuration(prefix, "onset", p.Onset)...)
		errs = append(errs, validateProfileDuration(prefix, "offset", p.Offset)...)

		// Unusual but legal tunings get a warning, not a rejection. A
		// shorter offset than onset means the detector gives up on a
		// speaker faster than it commits to one.
		if p.OnsetFrames > 0 && p.OffsetFrames > 0 && p.OffsetFrames < p.OnsetFrames {
			slog.Warn("profile hangover is shorter than its onset debounce",
				"profile", p.Name,
				"onset_frames", p.OnsetFrames,
				"offset_frames", p.OffsetFrames,
			)
		}
		if p.SpeechThreshold > 0.5 {
			slog.Warn("profile speech threshold is unusually high; normalised speech RMS rarely exceeds 0.5",
				"profile", p.Name,
				"speech_threshold", p.SpeechThreshold,
			)
		}
	}

	return errors.Join(errs...)
}

// validateProfileDuration checks one duration-form field. The value must
// parse and be positive; zero durations would silently collapse to a single
// block, so they are rejected rather than guessed at.
func validateProfileDuration(prefix, field, value string) []error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s.%s %q is not a valid duration: %w", prefix, field, value, err)}
	}
	if d <= 0 {
		return []error{fmt.Errorf("%s.%s %q must be a positive duration", prefix, field, value)}
	}
	return nil
}
