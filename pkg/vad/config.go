package vad

import (
	"errors"
	"fmt"
	"time"
)

// Defaults applied by [New] when the corresponding Config field is zero.
// The asymmetry between onset and offset is deliberate: speech onset is
// detected quickly so utterance openings are not clipped, while the offset
// run is long enough to ride out short mid-utterance pauses (the classic
// hangover technique).
const (
	// DefaultSpeechThreshold is the RMS amplitude above which a block counts
	// as speech.
	DefaultSpeechThreshold = 0.015

	// DefaultOnsetFrames is the number of consecutive above-threshold blocks
	// required to declare speech start.
	DefaultOnsetFrames = 3

	// DefaultOffsetFrames is the number of consecutive below-threshold blocks
	// required to declare speech end.
	DefaultOffsetFrames = 8
)

// ErrInvalidConfig is wrapped by every configuration validation failure
// reported by [New]. Use errors.Is to detect it.
var ErrInvalidConfig = errors.New("vad: invalid config")

// Config holds the tuning parameters for a [Detector]. It is immutable once
// the detector is constructed.
//
// Onset and offset are expressed in block counts, not wall-clock time,
// because the detector never learns the block duration. Callers that want
// time-based tuning should convert durations with [FramesForDuration].
type Config struct {
	// SpeechThreshold is the RMS amplitude a block must exceed (strictly) to
	// count as speech. Must be inside (0, 1); RMS of well-formed samples in
	// [-1, 1] cannot exceed 1. Zero selects [DefaultSpeechThreshold].
	SpeechThreshold float64

	// OnsetFrames is the number of consecutive above-threshold blocks
	// required before a silence-to-speech transition fires. Must be >= 1.
	// Zero selects [DefaultOnsetFrames].
	OnsetFrames int

	// OffsetFrames is the number of consecutive below-threshold blocks
	// required before a speech-to-silence transition fires. Must be >= 1.
	// Zero selects [DefaultOffsetFrames]. Keeping this larger than
	// OnsetFrames preserves the hangover asymmetry.
	OffsetFrames int
}

// withDefaults returns a copy of c with zero fields replaced by the package
// defaults.
func (c Config) withDefaults() Config {
	if c.SpeechThreshold == 0 {
		c.SpeechThreshold = DefaultSpeechThreshold
	}
	if c.OnsetFrames == 0 {
		c.OnsetFrames = DefaultOnsetFrames
	}
	if c.OffsetFrames == 0 {
		c.OffsetFrames = DefaultOffsetFrames
	}
	return c
}

// validate checks the construction invariants and returns a joined error
// listing all violations found. Every entry wraps [ErrInvalidConfig].
func (c Config) validate() error {
	var errs []error

	if c.SpeechThreshold <= 0 || c.SpeechThreshold >= 1 {
		errs = append(errs, fmt.Errorf("%w: speech_threshold %v is outside (0, 1)", ErrInvalidConfig, c.SpeechThreshold))
	}
	if c.OnsetFrames < 1 {
		errs = append(errs, fmt.Errorf("%w: onset_frames %d must be >= 1", ErrInvalidConfig, c.OnsetFrames))
	}
	if c.OffsetFrames < 1 {
		errs = append(errs, fmt.Errorf("%w: offset_frames %d must be >= 1", ErrInvalidConfig, c.OffsetFrames))
	}

	return errors.Join(errs...)
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

// FramesForDuration converts a desired onset or offset duration into the
// equivalent block count for a stream with the given block duration,
// rounding up so the detector never reacts faster than requested. The
// result is never below 1, keeping it valid for [Config.OnsetFrames] and
// [Config.OffsetFrames].
func FramesForDuration(d, blockDuration time.Duration) int {
	if blockDuration <= 0 || d <= 0 {
		return 1
	}
	frames := int((d + blockDuration - 1) / blockDuration)
	if frames < 1 {
		return 1
	}
	return frames
}
