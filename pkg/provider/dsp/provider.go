// Package dsp defines the Engine interface for silence-detection backends.
//
// A DSP engine wraps a frame-level signal-energy detector and surfaces it as
// a stateful, per-call detector. Each detector maintains its own accumulated
// silence state so that multiple concurrent calls can be analysed
// independently.
//
// Detection is synchronous by design: MeasureSilence returns immediately with
// the accumulated silence duration, making it suitable for the low-latency
// per-frame analysis loop that gates call admission.
//
// Implementations must be safe for concurrent use across different detectors.
// A single Detector must not be shared across goroutines.
package dsp

import (
	"errors"

	"github.com/dialsift/dialsift/pkg/audio"
)

// ErrDetectorUnavailable is returned (possibly wrapped) by [Engine.NewDetector]
// when a detector cannot be constructed. Callers must abort the call's
// analysis before entering the loop; no classification result is produced.
var ErrDetectorUnavailable = errors.New("dsp: silence detector unavailable")

// Detector measures accumulated silence across the voice frames of one call.
//
// A Detector is created once per call, fed every voice frame in order, and
// closed when the call's analysis terminates — including early terminations.
type Detector interface {
	// MeasureSilence feeds one voice frame into the detector and returns the
	// silence accumulated up to and including that frame, in milliseconds.
	// A return of 0 means the frame carried voice energy and any running
	// silence streak has been reset.
	//
	// Called synchronously from the analysis loop; it must not block.
	MeasureSilence(f audio.Frame) int

	// Close releases the detector's resources. Calling Close more than once
	// is safe and returns nil.
	Close() error
}

// Engine is the factory for per-call detectors. It is the top-level interface
// implemented by each DSP backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may
// call NewDetector simultaneously to create independent detectors.
type Engine interface {
	// NewDetector creates a detector with the given energy threshold: frames
	// whose average amplitude falls below the threshold count as silence.
	//
	// Returns an error wrapping [ErrDetectorUnavailable] if the detector
	// cannot be constructed.
	NewDetector(threshold int) (Detector, error)
}
