// Package classify implements the frame-driven detection state machine that
// decides whether a call's early audio came from a human, an automated
// dialer/answering machine, or a DTMF-capable device.
//
// # Algorithm
//
// The machine consumes frames one at a time, tracking four running counters
// (total elapsed, cumulative voice, consecutive voice, current silence), a
// word count, a two-state word/silence automaton, and two call-lifetime phase
// flags (in-initial-silence and in-greeting). After each frame it evaluates a
// fixed sequence of terminal conditions; the first condition satisfied wins
// and the loop exits immediately, so within one frame no later counter update
// can occur.
//
// The check order is load-bearing and must not be rearranged: hangup, DTMF,
// total-time budget, then — on the silence branch — initial-silence before
// after-greeting silence, and — on the voice branch — max word length before
// max words before long greeting.
//
// Timeouts are enforced purely by the elapsed-time accumulator rather than a
// wall clock, so a recorded frame sequence replays to the identical result.
//
// One historical quirk is preserved deliberately: silence exceeding
// InitialSilence before any speech yields HUMAN, even though dead air is not
// exactly proof of one. Downstream dialplans depend on the label.
package classify

import (
	"errors"
	"log/slog"
	"time"

	"github.com/dialsift/dialsift/pkg/audio"
	"github.com/dialsift/dialsift/pkg/provider/dsp"
)

// wordState is the toggling half of the automaton. The phase flags
// (inInitialSilence, inGreeting) are kept separate because they are
// call-lifetime monotone while this state flips continuously.
type wordState int

const (
	stateInWord wordState = iota + 1
	stateInSilence
)

// Analyze runs the detection loop over the call's frame stream and returns
// its terminal classification. It is a pure function of the frame sequence
// and parameters: identical inputs always produce the identical Result.
//
// The detector must have been created for this call and is fed every voice
// frame in order; the caller retains ownership and closes it. Analyze itself
// performs no I/O beyond pulling frames and cannot fail — every outcome is a
// Result.
func Analyze(src audio.Source, det dsp.Detector, p Params) Result {
	var (
		totalTime                int
		voiceDuration            int
		consecutiveVoiceDuration int
		silenceDuration          int
		dspSilence               int
		words                    int

		state            = stateInWord
		inInitialSilence = true
		inGreeting       = false
	)

	maxWait := 2 * time.Duration(p.MaxWaitTimeForFrame) * time.Millisecond

	for {
		f, err := src.Next(maxWait)
		if err != nil {
			if errors.Is(err, audio.ErrHangup) {
				slog.Debug("classify: hangup")
				return Result{Status: StatusHangup}
			}
			slog.Debug("classify: no frames", "err", err, "total_ms", totalTime)
			return Result{Status: StatusNoFrames, Cause: causeTimeout(totalTime)}
		}

		if f.Kind == audio.KindDTMF {
			slog.Debug("classify: incoming DTMF", "digit", string(f.Digit))
			return Result{Status: StatusDTMF, Cause: causeDTMF(f.Digit)}
		}

		var frameLength int
		if f.Kind == audio.KindVoice {
			frameLength = f.DurationMS()
		} else {
			frameLength = 2 * p.MaxWaitTimeForFrame
		}

		totalTime += frameLength
		if totalTime >= p.TotalAnalysisTime {
			slog.Debug("classify: nothing definitive before timeout", "total_ms", totalTime)
			return Result{Status: StatusNotSure, Cause: causeTimeout(totalTime)}
		}

		// Marker ticks accumulate silence directly; voice frames are measured
		// by the detector, which reports the standing silence streak.
		if f.Kind != audio.KindVoice {
			dspSilence += 2 * p.MaxWaitTimeForFrame
		} else {
			dspSilence = det.MeasureSilence(f)
		}

		if dspSilence > 0 {
			silenceDuration = dspSilence

			if silenceDuration >= p.BetweenWordsSilence {
				if state != stateInSilence {
					slog.Debug("classify: entering silence state")
				}
				if consecutiveVoiceDuration < p.MinimumWordLength && consecutiveVoiceDuration > 0 {
					slog.Debug("classify: short word discarded", "voice_ms", consecutiveVoiceDuration)
				}
				state = stateInSilence
				consecutiveVoiceDuration = 0
			}

			if inInitialSilence && silenceDuration >= p.InitialSilence {
				slog.Debug("classify: silence before speech exceeded budget",
					"silence_ms", silenceDuration, "initial_silence", p.InitialSilence)
				return Result{Status: StatusHuman, Cause: causeInitialSilence(silenceDuration, p.InitialSilence)}
			}

			if silenceDuration >= p.AfterGreetingSilence && inGreeting {
				slog.Debug("classify: silence after greeting",
					"silence_ms", silenceDuration, "after_greeting_silence", p.AfterGreetingSilence)
				return Result{Status: StatusHuman, Cause: causeSilenceAfterNoise(silenceDuration, p.AfterGreetingSilence)}
			}
		} else {
			consecutiveVoiceDuration += frameLength
			voiceDuration += frameLength

			// A word is counted once per silence→voice transition, when
			// enough consecutive voice has accrued to call it a word.
			if consecutiveVoiceDuration >= p.MinimumWordLength && state == stateInSilence {
				words++
				slog.Debug("classify: word detected", "words", words)
				state = stateInWord
			}

			if consecutiveVoiceDuration >= p.MaximumWordLength {
				slog.Debug("classify: maximum word length exceeded", "voice_ms", consecutiveVoiceDuration)
				return Result{Status: StatusMachine, Cause: causeMaxWordLength(consecutiveVoiceDuration)}
			}

			if words >= p.MaximumNumberOfWords {
				slog.Debug("classify: maximum word count reached", "words", words)
				return Result{Status: StatusMachine, Cause: causeMaxWords(words, p.MaximumNumberOfWords)}
			}

			if inGreeting && voiceDuration >= p.Greeting {
				slog.Debug("classify: greeting too long",
					"voice_ms", voiceDuration, "greeting", p.Greeting)
				return Result{Status: StatusMachine, Cause: causeLongGreeting(voiceDuration, p.Greeting)}
			}

			if voiceDuration >= p.MinimumWordLength {
				silenceDuration = 0
			}

			// One-time transition on the first sufficient word: the call
			// leaves initial silence and enters the greeting phase for the
			// remainder of the analysis.
			if consecutiveVoiceDuration >= p.MinimumWordLength && !inGreeting {
				inInitialSilence = false
				inGreeting = true
			}
		}

		slog.Debug("classify: frame processed",
			"kind", f.Kind,
			"silence_ms", silenceDuration,
			"voice_ms", voiceDuration,
			"consecutive_voice_ms", consecutiveVoiceDuration,
			"words", words,
			"in_initial_silence", inInitialSilence,
			"in_greeting", inGreeting,
		)
	}
}
