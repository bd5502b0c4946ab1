// Package audio defines the frame model and frame-source contract shared by
// the dialsift classification core and its ingress adapters.
//
// A call's early audio arrives as a sequence of discrete [Frame] values pulled
// from a [Source]. Voice frames carry signed-linear PCM samples; marker frames
// stand in for the null/comfort-noise ticks a telephony channel emits while
// idle; DTMF frames carry a single dialed digit. The classification core
// consumes frames without caring where they came from, so a Source may be a
// live websocket ingest, a recorded capture replay, or a scripted test double.
package audio

import (
	"fmt"
	"time"
)

// SamplesPerMS is the sample count per millisecond for the signed-linear
// 8 kHz mono format the analysis loop requires.
const SamplesPerMS = 8

// Kind discriminates the frame types a [Source] may deliver.
type Kind int

const (
	// KindVoice is an audio frame carrying PCM samples.
	KindVoice Kind = iota

	// KindMarker is a non-audio tick: a null or comfort-noise frame emitted
	// while the channel is idle. Markers carry no samples; the analysis loop
	// assigns them a fixed duration derived from its frame-wait bound.
	KindMarker

	// KindDTMF is a dialed digit detected on the channel.
	KindDTMF
)

// String returns the lowercase name of the kind for logging.
func (k Kind) String() string {
	switch k {
	case KindVoice:
		return "voice"
	case KindMarker:
		return "marker"
	case KindDTMF:
		return "dtmf"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Frame is one discrete unit of the incoming audio/signaling stream.
type Frame struct {
	// Kind discriminates which of the remaining fields are meaningful.
	Kind Kind

	// Samples holds signed-linear PCM for voice frames. Nil otherwise.
	Samples []int16

	// Digit is the DTMF digit character ('0'–'9', '*', '#') for DTMF frames.
	Digit byte
}

// VoiceFrame wraps PCM samples in a voice frame.
func VoiceFrame(samples []int16) Frame {
	return Frame{Kind: KindVoice, Samples: samples}
}

// MarkerFrame returns an idle-channel tick.
func MarkerFrame() Frame {
	return Frame{Kind: KindMarker}
}

// DTMFFrame returns a frame carrying the given dialed digit.
func DTMFFrame(digit byte) Frame {
	return Frame{Kind: KindDTMF, Digit: digit}
}

// DurationMS is the frame's audio duration in milliseconds, computed from its
// sample count. Marker and DTMF frames have no intrinsic duration and return 0;
// the consumer assigns marker ticks a duration from its own wait bound.
func (f Frame) DurationMS() int {
	if f.Kind != KindVoice {
		return 0
	}
	return len(f.Samples) / SamplesPerMS
}

// Format describes the negotiated encoding of a frame stream.
type Format struct {
	// Encoding is the codec name (e.g. "slin").
	Encoding string

	// SampleRate is the sample rate in Hz.
	SampleRate int
}

// FormatSlin8k is the only format the analysis loop accepts: signed-linear
// 16-bit PCM at 8 kHz mono.
var FormatSlin8k = Format{Encoding: "slin", SampleRate: 8000}

func (f Format) String() string {
	return fmt.Sprintf("%s/%d", f.Encoding, f.SampleRate)
}

// FormatError reports that a frame producer could not deliver the required
// stream format. It is a setup failure: analysis never starts and no
// classification result is produced.
type FormatError struct {
	// Want is the format the analysis loop requires.
	Want Format

	// Got is the format the producer offered.
	Got Format
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("audio: format %s not supported, need %s", e.Got, e.Want)
}

// Source delivers the frame stream for a single call.
//
// Next blocks until the next frame is available, but never longer than
// maxWait. A wait that elapses with no data must be surfaced as a
// [KindMarker] tick rather than an error. Next returns [ErrHangup] once the
// stream has ended; any other error means the source has given up producing
// frames entirely.
//
// A Source is owned by a single call's analysis loop and need not be safe for
// concurrent use.
type Source interface {
	Next(maxWait time.Duration) (Frame, error)
}
