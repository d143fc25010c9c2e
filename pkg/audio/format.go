// Package audio provides the PCM utilities that connect host audio sources
// to the voice activity detector: sample decoding, channel downmixing, and
// re-blocking of arbitrary byte streams into the fixed-size sample blocks
// the detector consumes.
//
// This package lives under pkg/ because external harnesses that embed the
// detector (capture loops, socket readers, file scanners) are expected to
// use these helpers to prepare their audio before calling Process.
package audio

import (
	"fmt"
	"time"
)

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	// SampleRate in Hz (e.g. 16000 for speech, 48000 for broadcast audio).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int
}

// BlockDuration returns the wall-clock duration of a block of blockSize
// samples per channel at the format's sample rate. Returns 0 when the
// format has no positive sample rate.
func (f Format) BlockDuration(blockSize int) time.Duration {
	if f.SampleRate <= 0 || blockSize <= 0 {
		return 0
	}
	return time.Duration(int64(blockSize) * int64(time.Second) / int64(f.SampleRate))
}

// String returns a human-readable description such as "16000Hz mono".
func (f Format) String() string {
	ch := "mono"
	if f.Channels == 2 {
		ch = "stereo"
	} else if f.Channels > 2 {
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}
