// Package mock provides test doubles for the dsp package interfaces.
//
// Use Engine to verify that detectors are created with the expected threshold.
// Use Detector to script per-frame silence measurements and inspect the frames
// that were submitted.
package mock

import (
	"sync"

	"github.com/dialsift/dialsift/pkg/audio"
	"github.com/dialsift/dialsift/pkg/provider/dsp"
)

// NewDetectorCall records a single invocation of Engine.NewDetector.
type NewDetectorCall struct {
	// Threshold is the energy threshold passed to NewDetector.
	Threshold int
}

// Engine is a mock implementation of dsp.Engine.
type Engine struct {
	mu sync.Mutex

	// Detector is returned by NewDetector. If nil, NewDetector returns a new
	// default Detector.
	Detector dsp.Detector

	// NewDetectorErr, if non-nil, is returned as the error from NewDetector.
	NewDetectorErr error

	// NewDetectorCalls records every call to NewDetector in order.
	NewDetectorCalls []NewDetectorCall
}

// NewDetector records the call and returns Detector, NewDetectorErr.
func (e *Engine) NewDetector(threshold int) (dsp.Detector, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewDetectorCalls = append(e.NewDetectorCalls, NewDetectorCall{Threshold: threshold})
	if e.NewDetectorErr != nil {
		return nil, e.NewDetectorErr
	}
	if e.Detector != nil {
		return e.Detector, nil
	}
	return &Detector{}, nil
}

// Ensure Engine implements dsp.Engine at compile time.
var _ dsp.Engine = (*Engine)(nil)

// MeasureCall records a single invocation of Detector.MeasureSilence.
type MeasureCall struct {
	// Frame is the frame passed to MeasureSilence.
	Frame audio.Frame
}

// Detector is a scripted implementation of dsp.Detector. Each call to
// MeasureSilence pops the next value from Silences; once exhausted, it
// returns 0 (continued voice).
type Detector struct {
	mu sync.Mutex

	// Silences is the scripted sequence of measurements, one per call.
	Silences []int

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// MeasureCalls records every call to MeasureSilence in order.
	MeasureCalls []MeasureCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	pos int
}

// MeasureSilence records the call and returns the next scripted measurement.
func (d *Detector) MeasureSilence(f audio.Frame) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.MeasureCalls = append(d.MeasureCalls, MeasureCall{Frame: f})
	if d.pos >= len(d.Silences) {
		return 0
	}
	v := d.Silences[d.pos]
	d.pos++
	return v
}

// Close records the call and returns CloseErr.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CloseCallCount++
	return d.CloseErr
}

// CloseCount reports how often Close was called. Safe to poll from another
// goroutine, unlike reading CloseCallCount directly.
func (d *Detector) CloseCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.CloseCallCount
}

// Ensure Detector implements dsp.Detector at compile time.
var _ dsp.Detector = (*Detector)(nil)
