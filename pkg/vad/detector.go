// Package vad implements a classical energy-based Voice Activity Detector.
//
// The detector consumes fixed-cadence blocks of mono float samples in the
// range [-1, 1], computes the root-mean-square amplitude of each block, and
// applies a threshold with debounce counters to decide when a stream flips
// between silence and speech. Only the transitions are reported: a stream
// that stays in one state produces no events at all, which keeps downstream
// consumers (gates, chunkers, UI indicators) free of per-block traffic.
//
// Detection is synchronous by design: Process returns immediately and is
// safe to call from a real-time audio callback. It performs no allocation,
// no I/O, and no logging.
//
// A Detector owns its state exclusively. It must not be shared across
// goroutines without external synchronisation; give each concurrent audio
// stream its own instance instead.
package vad

import "math"

// Detector is the stateful core of the voice activity pipeline. It tracks
// how many consecutive blocks have been above or below the configured
// threshold and flips its speaking state once the onset or offset run is
// long enough.
//
// Create instances with [New]; the zero value is not usable.
type Detector struct {
	cfg Config

	aboveCount int
	belowCount int
	speaking   bool

	lastRMS float64
}

// Processor is the block-level detection contract consumed by the streaming
// harness. It is an interface so that test code can substitute scripted
// doubles for the real [Detector].
//
// Implementations must treat Process as a hot-path call: synchronous,
// non-blocking, and free of side effects beyond their own state.
type Processor interface {
	// Process analyses one block of mono samples and reports whether the
	// speaking state changed. The returned Event is only meaningful when the
	// second return value is true.
	Process(block []float64) (Event, bool)

	// Reset returns the processor to its initial silence state. Use it when
	// the audio stream is interrupted or restarted so that stale counters
	// from the previous segment cannot leak into the next one.
	Reset()
}

// New creates a Detector for one audio stream. Zero-valued fields of cfg are
// replaced with the package defaults before validation; explicitly invalid
// values fail with an error wrapping [ErrInvalidConfig] that lists every
// violation. No partially configured Detector is ever returned.
func New(cfg Config) (*Detector, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg}, nil
}

// Process classifies one block of mono samples and reports a state change,
// if any. An empty block is a no-op that returns no event and leaves all
// state untouched.
//
// The comparison against the speech threshold is strict: a block whose RMS
// equals the threshold exactly counts as silence. Given the same prior state
// and the same block sequence, Process is fully deterministic.
//
// The block is read-only and never retained past the call. Process does not
// allocate, block, or log, so it can run inside an audio callback deadline.
func (d *Detector) Process(block []float64) (Event, bool) {
	n := len(block)
	if n == 0 {
		return Event{}, false
	}

	var sum float64
	for _, s := range block {
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(n))

	// Non-finite input must never reach the counters; clamp it and let the
	// block count as silence.
	if math.IsNaN(rms) || math.IsInf(rms, 0) {
		rms = 0
	}
	d.lastRMS = rms

	if rms > d.cfg.SpeechThreshold {
		d.aboveCount++
		d.belowCount = 0
	} else {
		d.belowCount++
		d.aboveCount = 0
	}

	switch {
	case !d.speaking && d.aboveCount >= d.cfg.OnsetFrames:
		d.speaking = true
		return Event{Speaking: true, RMS: rms}, true
	case d.speaking && d.belowCount >= d.cfg.OffsetFrames:
		d.speaking = false
		return Event{Speaking: false, RMS: rms}, true
	}

	return Event{}, false
}

// Reset clears the debounce counters and returns the detector to the
// silence state. The configuration is kept.
func (d *Detector) Reset() {
	d.aboveCount = 0
	d.belowCount = 0
	d.speaking = false
	d.lastRMS = 0
}

// Speaking reports whether the detector currently considers the stream to
// contain speech.
func (d *Detector) Speaking() bool {
	return d.speaking
}

// LastRMS returns the RMS amplitude of the most recently processed block.
// It is a diagnostics accessor; the value is also carried by every emitted
// [Event].
func (d *Detector) LastRMS() float64 {
	return d.lastRMS
}

// State returns a read-only snapshot of the detector's internal counters
// for diagnostics. The snapshot is a copy; mutating it has no effect on the
// detector.
func (d *Detector) State() State {
	return State{
		AboveCount: d.aboveCount,
		BelowCount: d.belowCount,
		Speaking:   d.speaking,
	}
}

// Config returns the effective configuration the detector was built with,
// defaults applied.
func (d *Detector) Config() Config {
	return d.cfg
}

// Ensure Detector implements Processor at compile time.
var _ Processor = (*Detector)(nil)
