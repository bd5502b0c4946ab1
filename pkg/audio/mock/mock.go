// Package mock provides a scripted test double for the audio.Source interface.
//
// Use Source to feed a predetermined frame sequence into the analysis loop and
// inspect the wait bounds it was called with.
//
// Example:
//
//	src := &mock.Source{
//	    Frames: []audio.Frame{audio.VoiceFrame(pcm)},
//	    Final:  audio.ErrHangup,
//	}
package mock

import (
	"sync"
	"time"

	"github.com/dialsift/dialsift/pkg/audio"
)

// NextCall records a single invocation of Source.Next.
type NextCall struct {
	// MaxWait is the wait bound passed to Next.
	MaxWait time.Duration
}

// Source is a scripted implementation of audio.Source. It returns Frames in
// order, then Final (or audio.ErrHangup if Final is nil) on every subsequent
// call.
type Source struct {
	mu sync.Mutex

	// Frames is the scripted frame sequence, returned one per Next call.
	Frames []audio.Frame

	// Final is the error returned once Frames is exhausted. Nil means
	// audio.ErrHangup.
	Final error

	// NextCalls records every call to Next in order.
	NextCalls []NextCall

	pos int
}

// Next returns the next scripted frame, recording the call.
func (s *Source) Next(maxWait time.Duration) (audio.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NextCalls = append(s.NextCalls, NextCall{MaxWait: maxWait})
	if s.pos >= len(s.Frames) {
		if s.Final != nil {
			return audio.Frame{}, s.Final
		}
		return audio.Frame{}, audio.ErrHangup
	}
	f := s.Frames[s.pos]
	s.pos++
	return f, nil
}

// Rewind restarts the scripted sequence and clears recorded calls.
func (s *Source) Rewind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = 0
	s.NextCalls = nil
}

// Ensure Source implements audio.Source at compile time.
var _ audio.Source = (*Source)(nil)
