// Package stream connects the audio front end to the voice activity
// detector. A [Session] owns the re-blocking, downmixing, and detection for
// one PCM stream and publishes edge-triggered events plus assembled speech
// segments; a [Manager] tracks the lifecycle of all open sessions.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/voxgate/internal/observe"
	"github.com/MrWong99/voxgate/pkg/audio"
	"github.com/MrWong99/voxgate/pkg/vad"
)

// ErrSessionClosed is returned when writes are attempted on a closed session.
var ErrSessionClosed = errors.New("stream: session closed")

// defaultEventBuffer is the capacity of a session's event channel. Sixteen
// transitions of backlog is generous; a consumer that falls further behind
// loses events rather than stalling the ingest path.
const defaultEventBuffer = 16

// blockFlushInterval controls how often processed-block counts are flushed
// to metrics. Per-block counter updates would dominate the hot path.
const blockFlushInterval = 256

// Event is a detection event annotated with its position in the stream.
// The inner detector event keeps its own wire encoding; Stream, Block,
// and Offset are for logs and consumers, not the event wire.
type Event struct {
	// Stream is the ID of the session that produced the event.
	Stream string

	// Event is the detector's edge-triggered transition event.
	Event vad.Event

	// Block is the zero-based index of the block that triggered the
	// transition.
	Block int64

	// Offset is the stream time at the end of the triggering block.
	Offset time.Duration
}

// Segment describes one completed stretch of speech. Boundaries are
// acoustic: the onset run that preceded the speaking confirmation is
// included, and the silence hangover that preceded the offset confirmation
// is trimmed. When the detector's tuning is not introspectable (custom
// [vad.Processor] implementations), boundaries fall back to confirmation
// times.
type Segment struct {
	// Start is the stream time where speech began.
	Start time.Duration

	// End is the stream time where speech ended. For a segment still open
	// when the session closes, End is the end of the stream.
	End time.Duration

	// StartBlock and EndBlock are the inclusive block range of the segment.
	StartBlock int64
	EndBlock   int64

	// PeakRMS is the highest block RMS observed during the segment.
	PeakRMS float64
}

// Duration returns the segment length.
func (s Segment) Duration() time.Duration {
	return s.End - s.Start
}

// Blocks returns the number of blocks the segment spans.
func (s Segment) Blocks() int64 {
	return s.EndBlock - s.StartBlock + 1
}

// SessionConfig holds the construction parameters for a [Session].
type SessionConfig struct {
	// ID identifies the session in events, logs, and metrics.
	ID string

	// Format describes the incoming PCM. Stereo input is downmixed before
	// detection.
	Format audio.Format

	// BlockSize is the number of mono samples per detector block.
	BlockSize int

	// Detector is the tuning used to build the session's detector.
	// Ignored when Processor is set.
	Detector vad.Config

	// Processor overrides the built-in detector. Used by tests to inject
	// scripted detection behaviour.
	Processor vad.Processor

	// Metrics receives per-session telemetry. May be nil.
	Metrics *observe.Metrics
}

// SessionOption configures optional session behaviour.
type SessionOption func(*Session)

// WithEventBuffer overrides the event channel capacity. A non-positive
// capacity disables the event stream entirely; offline analysis uses this
// since it reads assembled segments instead of live events.
func WithEventBuffer(n int) SessionOption {
	return func(s *Session) {
		s.eventBuf = n
	}
}

// rmsReporter is the optional interface a processor implements to expose
// the RMS of its most recent block. [vad.Detector] implements it; mocks
// need not.
type rmsReporter interface {
	LastRMS() float64
}

// tuningReporter is the optional interface a processor implements to expose
// its resolved tuning, enabling acoustic segment boundaries.
type tuningReporter interface {
	Config() vad.Config
}

// Session runs one PCM stream through a detector. It implements io.Writer
// for the raw byte stream; complete blocks are detected synchronously
// inside Write. All methods are safe for concurrent use, though a single
// writer is the expected shape.
type Session struct {
	id            string
	format        audio.Format
	blockSize     int
	blockDuration time.Duration
	proc          vad.Processor
	metrics       *observe.Metrics
	eventBuf      int

	mu        sync.Mutex
	closed    bool
	blocker   *audio.Blocker
	events    chan Event
	blocks    int64
	unflushed int64
	speaking  bool
	segments  []Segment
	open      Segment // in-progress segment, valid while speaking
	dropped   int64
	dropWarn  sync.Once
	openedAt  time.Time

	// Stereo frames split across Write calls are carried here until the
	// remaining bytes arrive; downmixing a mis-aligned chunk would swap
	// the channels for the rest of the stream.
	carry    [4]byte
	carryLen int
}

// NewSession creates a session for one PCM stream. The detector is built
// from cfg.Detector unless cfg.Processor injects one.
func NewSession(cfg SessionConfig, opts ...SessionOption) (*Session, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("stream: session ID must not be empty")
	}
	if cfg.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("stream: sample rate %d must be positive", cfg.Format.SampleRate)
	}
	if cfg.Format.Channels != 1 && cfg.Format.Channels != 2 {
		return nil, fmt.Errorf("stream: channel count %d not supported (mono and stereo only)", cfg.Format.Channels)
	}

	proc := cfg.Processor
	if proc == nil {
		det, err := vad.New(cfg.Detector)
		if err != nil {
			return nil, fmt.Errorf("stream: build detector: %w", err)
		}
		proc = det
	}

	s := &Session{
		id:            cfg.ID,
		format:        cfg.Format,
		blockSize:     cfg.BlockSize,
		blockDuration: cfg.Format.BlockDuration(cfg.BlockSize),
		proc:          proc,
		metrics:       cfg.Metrics,
		eventBuf:      defaultEventBuffer,
		openedAt:      time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(s)
	}

	blocker, err := audio.NewBlocker(cfg.BlockSize, s.handleBlock)
	if err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}
	s.blocker = blocker

	if s.eventBuf > 0 {
		s.events = make(chan Event, s.eventBuf)
	}
	return s, nil
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// Format returns the session's input format.
func (s *Session) Format() audio.Format { return s.format }

// BlockSize returns the number of samples per detector block.
func (s *Session) BlockSize() int { return s.blockSize }

// Write feeds raw little-endian PCM16 bytes into the session. Detection
// runs synchronously for every complete block before Write returns. Stereo
// input is downmixed first. Returns [ErrSessionClosed] after Close.
func (s *Session) Write(pcm []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSessionClosed
	}
	n := len(pcm)
	if s.format.Channels == 2 {
		if s.carryLen > 0 {
			need := 4 - s.carryLen
			if len(pcm) < need {
				s.carryLen += copy(s.carry[s.carryLen:], pcm)
				return n, nil
			}
			copy(s.carry[s.carryLen:], pcm[:need])
			pcm = pcm[need:]
			s.carryLen = 0
			if _, err := s.blocker.Write(audio.StereoToMono(s.carry[:])); err != nil {
				return 0, err
			}
		}
		if rem := len(pcm) % 4; rem > 0 {
			s.carryLen = copy(s.carry[:], pcm[len(pcm)-rem:])
			pcm = pcm[:len(pcm)-rem]
		}
		pcm = audio.StereoToMono(pcm)
	}
	if _, err := s.blocker.Write(pcm); err != nil {
		return 0, err
	}
	return n, nil
}

// Events returns the channel of detection events. The channel is closed
// when the session closes. Returns nil when the event stream was disabled
// with [WithEventBuffer].
func (s *Session) Events() <-chan Event {
	return s.events
}

// Speaking reports whether the stream is currently inside a speech run.
func (s *Session) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// BlocksProcessed returns the number of complete blocks run through the
// detector so far.
func (s *Session) BlocksProcessed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocks
}

// Dropped returns the number of events discarded because the event channel
// was full.
func (s *Session) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Segments returns a copy of all speech segments completed so far. An
// in-progress segment is not included until the silence confirmation or
// session close ends it.
func (s *Session) Segments() []Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Segment, len(s.segments))
	copy(out, s.segments)
	return out
}

// Close ends the session: the event channel is closed, an in-progress
// speech segment is finalised at the end of the stream, and further writes
// fail. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	// A stream that ends mid-speech yields a truncated final segment with
	// no hangover to trim.
	if s.speaking {
		s.open.End = time.Duration(s.blocks) * s.blockDuration
		s.open.EndBlock = s.blocks - 1
		s.finishSegmentLocked()
		s.speaking = false
	}

	s.flushBlocksLocked()
	if s.events != nil {
		close(s.events)
	}
	return nil
}

// handleBlock runs detection for one complete block. Called by the blocker
// inside Write, so the session lock is already held.
func (s *Session) handleBlock(block []float64) {
	index := s.blocks
	s.blocks++
	s.unflushed++
	if s.unflushed >= blockFlushInterval {
		s.flushBlocksLocked()
	}

	ev, ok := s.proc.Process(block)

	// Track the loudest block while inside a speech run.
	if s.speaking {
		if r, hasRMS := s.proc.(rmsReporter); hasRMS {
			if v := r.LastRMS(); v > s.open.PeakRMS {
				s.open.PeakRMS = v
			}
		}
	}

	if !ok {
		return
	}

	offset := time.Duration(index+1) * s.blockDuration
	if ev.Speaking {
		s.beginSegmentLocked(index, ev)
	} else {
		s.endSegmentLocked(index, ev)
	}
	s.speaking = ev.Speaking

	if s.metrics != nil {
		s.metrics.RecordEvent(context.Background(), s.id, ev.Speaking)
	}
	s.publishLocked(Event{
		Stream: s.id,
		Event:  ev,
		Block:  index,
		Offset: offset,
	})
}

// beginSegmentLocked opens a speech segment at the acoustic onset: the
// confirmation at block index means the preceding onset run was already
// speech, so the segment starts where that run began.
func (s *Session) beginSegmentLocked(index int64, ev vad.Event) {
	startBlock := index
	if t, ok := s.proc.(tuningReporter); ok {
		startBlock = index - int64(t.Config().OnsetFrames) + 1
		if startBlock < 0 {
			startBlock = 0
		}
	}
	s.open = Segment{
		Start:      time.Duration(startBlock) * s.blockDuration,
		StartBlock: startBlock,
		PeakRMS:    ev.RMS,
	}
}

// endSegmentLocked closes the open segment at the acoustic end of speech:
// the hangover blocks that led to the silence confirmation are trimmed.
func (s *Session) endSegmentLocked(index int64, _ vad.Event) {
	endBlock := index
	if t, ok := s.proc.(tuningReporter); ok {
		endBlock = index - int64(t.Config().OffsetFrames)
		if endBlock < s.open.StartBlock {
			endBlock = s.open.StartBlock
		}
	}
	s.open.EndBlock = endBlock
	s.open.End = time.Duration(endBlock+1) * s.blockDuration
	s.finishSegmentLocked()
}

// finishSegmentLocked appends the open segment and records its telemetry.
func (s *Session) finishSegmentLocked() {
	s.segments = append(s.segments, s.open)
	if s.metrics != nil {
		s.metrics.RecordSegment(context.Background(), s.id, s.open.Duration().Seconds())
	}
	s.open = Segment{}
}

// publishLocked offers an event to the channel without blocking. Ingest
// must never stall on a slow consumer, so a full channel drops the event.
func (s *Session) publishLocked(ev Event) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.dropped++
		if s.metrics != nil {
			s.metrics.RecordDroppedEvent(context.Background(), s.id)
		}
		s.dropWarn.Do(func() {
			slog.Warn("event subscriber falling behind, dropping events",
				"stream", s.id,
				"buffer", cap(s.events),
			)
		})
	}
}

// flushBlocksLocked pushes the accumulated block count to metrics.
func (s *Session) flushBlocksLocked() {
	if s.metrics != nil && s.unflushed > 0 {
		s.metrics.RecordBlocks(context.Background(), s.id, s.unflushed)
	}
	s.unflushed = 0
}
