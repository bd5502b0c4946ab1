package classify

import (
	"strconv"
	"strings"
)

// maxWaitFloorMS is the starting value for the derived per-frame wait bound.
// Resolution only ever lowers it, never raises it.
const maxWaitFloorMS = 50

// Params is the fully resolved parameter set for one call's analysis. All
// durations are in milliseconds. A Params value is immutable once resolved:
// the analysis loop reads it but never writes it, so a process-wide defaults
// holder can hand out copies without synchronising with in-flight calls.
type Params struct {
	// InitialSilence is the maximum silence allowed before any voice is seen.
	InitialSilence int `yaml:"initial_silence"`

	// Greeting caps cumulative voice duration while still in the greeting.
	Greeting int `yaml:"greeting"`

	// AfterGreetingSilence is the silence length after the greeting that
	// signals the caller paused for a response.
	AfterGreetingSilence int `yaml:"after_greeting_silence"`

	// TotalAnalysisTime is the hard cap on total elapsed analysis time.
	TotalAnalysisTime int `yaml:"total_analysis_time"`

	// MinimumWordLength is the minimum consecutive voice duration that
	// counts as a word.
	MinimumWordLength int `yaml:"min_word_length"`

	// BetweenWordsSilence is the minimum silence that finishes the current
	// word.
	BetweenWordsSilence int `yaml:"between_words_silence"`

	// MaximumNumberOfWords is the word count at which the call is declared
	// a machine.
	MaximumNumberOfWords int `yaml:"maximum_number_of_words"`

	// SilenceThreshold is the energy level passed to the silence detector.
	SilenceThreshold int `yaml:"silence_threshold"`

	// MaximumWordLength is the maximum consecutive voice duration before
	// declaring a machine.
	MaximumWordLength int `yaml:"maximum_word_length"`

	// MaxWaitTimeForFrame bounds the per-frame wait. Derived during
	// resolution as the minimum of the duration fields above and the preset
	// floor; never set directly.
	MaxWaitTimeForFrame int `yaml:"-"`
}

// Defaults returns the shipping parameter set. These are the values a call
// runs with when neither the configuration file nor per-call overrides say
// otherwise.
func Defaults() Params {
	return Params{
		InitialSilence:       2500,
		Greeting:             1500,
		AfterGreetingSilence: 800,
		TotalAnalysisTime:    5000,
		MinimumWordLength:    100,
		BetweenWordsSilence:  50,
		MaximumNumberOfWords: 3,
		SilenceThreshold:     256,
		// Large so it stays inert unless configured or overridden.
		MaximumWordLength:   5000,
		MaxWaitTimeForFrame: maxWaitFloorMS,
	}
}

// Overrides holds optional per-call parameter overrides. A nil field falls
// back to the default for that parameter.
type Overrides struct {
	InitialSilence       *int
	Greeting             *int
	AfterGreetingSilence *int
	TotalAnalysisTime    *int
	MinimumWordLength    *int
	BetweenWordsSilence  *int
	MaximumNumberOfWords *int
	SilenceThreshold     *int
	MaximumWordLength    *int
}

// ParseOverrides parses a comma-separated positional override list in the
// legacy argument order: initialSilence, greeting, afterGreetingSilence,
// totalAnalysisTime, minimumWordLength, betweenWordsSilence,
// maximumNumberOfWords, silenceThreshold, maximumWordLength.
//
// Empty fields are absent (the default applies). Parsing is best-effort:
// an unparseable numeric becomes 0, preserving legacy atoi behaviour.
func ParseOverrides(s string) Overrides {
	var ov Overrides
	if strings.TrimSpace(s) == "" {
		return ov
	}
	fields := strings.Split(s, ",")
	slots := []**int{
		&ov.InitialSilence,
		&ov.Greeting,
		&ov.AfterGreetingSilence,
		&ov.TotalAnalysisTime,
		&ov.MinimumWordLength,
		&ov.BetweenWordsSilence,
		&ov.MaximumNumberOfWords,
		&ov.SilenceThreshold,
		&ov.MaximumWordLength,
	}
	for i, f := range fields {
		if i >= len(slots) {
			break
		}
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			n = 0
		}
		v := n
		*slots[i] = &v
	}
	return ov
}

// Resolve merges defaults with per-call overrides into a fully populated
// Params and derives MaxWaitTimeForFrame as the minimum of the duration
// fields and the preset floor. It never fails; resolution has no error
// conditions.
func Resolve(defaults Params, ov Overrides) Params {
	p := defaults

	apply := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&p.InitialSilence, ov.InitialSilence)
	apply(&p.Greeting, ov.Greeting)
	apply(&p.AfterGreetingSilence, ov.AfterGreetingSilence)
	apply(&p.TotalAnalysisTime, ov.TotalAnalysisTime)
	apply(&p.MinimumWordLength, ov.MinimumWordLength)
	apply(&p.BetweenWordsSilence, ov.BetweenWordsSilence)
	apply(&p.MaximumNumberOfWords, ov.MaximumNumberOfWords)
	apply(&p.SilenceThreshold, ov.SilenceThreshold)
	apply(&p.MaximumWordLength, ov.MaximumWordLength)

	p.MaxWaitTimeForFrame = deriveMaxWait(p)
	return p
}

// deriveMaxWait finds the lowest of the duration parameters that bound how
// long the loop may wait for a single frame. Non-positive durations are
// skipped: the wait never drops below 1 ms, so every empty tick advances the
// frame clock and the analysis time budget always fires.
func deriveMaxWait(p Params) int {
	w := maxWaitFloorMS
	for _, d := range []int{
		p.InitialSilence,
		p.Greeting,
		p.AfterGreetingSilence,
		p.TotalAnalysisTime,
		p.MinimumWordLength,
		p.BetweenWordsSilence,
	} {
		if d > 0 && d < w {
			w = d
		}
	}
	return w
}
