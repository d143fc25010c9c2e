// Package mock provides a test double for the vad package's Processor
// interface.
//
// Use Processor to script detection results and inspect the blocks that
// were submitted for processing.
//
// Example:
//
//	p := &mock.Processor{
//	    Script: []mock.ProcessResult{
//	        {},
//	        {Event: vad.Event{Speaking: true, RMS: 0.4}, OK: true},
//	    },
//	}
//	sess, err := stream.NewSession(stream.SessionConfig{Processor: p, ...})
package mock

import (
	"sync"

	"github.com/MrWong99/voxgate/pkg/vad"
)

// ProcessCall records a single invocation of Processor.Process.
type ProcessCall struct {
	// Block is a copy of the samples passed to Process.
	Block []float64
}

// ProcessResult is one scripted return value for Processor.Process.
type ProcessResult struct {
	// Event is the event to return.
	Event vad.Event

	// OK is the second return value, reporting whether Event is meaningful.
	OK bool
}

// Processor is a mock implementation of vad.Processor. Process consumes
// Script one entry per call; once the script is exhausted (or when Script
// is nil), Process reports no event.
type Processor struct {
	mu sync.Mutex

	// Script holds the results returned by successive Process calls.
	Script []ProcessResult

	scriptPos int

	// --- Call records ---

	// ProcessCalls records every call to Process in order.
	ProcessCalls []ProcessCall

	// ResetCallCount is the number of times Reset was called.
	ResetCallCount int
}

// Process records the call and returns the next scripted result.
func (p *Processor) Process(block []float64) (vad.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]float64, len(block))
	copy(cp, block)
	p.ProcessCalls = append(p.ProcessCalls, ProcessCall{Block: cp})

	if p.scriptPos >= len(p.Script) {
		return vad.Event{}, false
	}
	res := p.Script[p.scriptPos]
	p.scriptPos++
	return res.Event, res.OK
}

// Reset records the call by incrementing ResetCallCount.
func (p *Processor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ResetCallCount++
}

// ResetCalls clears all recorded call history and rewinds the script.
// Thread-safe.
func (p *Processor) ResetCalls() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ProcessCalls = nil
	p.ResetCallCount = 0
	p.scriptPos = 0
}

// Ensure Processor implements vad.Processor at compile time.
var _ vad.Processor = (*Processor)(nil)
