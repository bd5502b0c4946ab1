package classify

import "fmt"

// Status is the terminal classification of a call's early audio.
type Status string

const (
	// StatusDialer marks a continuous stream of audio from the caller.
	// Kept for compatibility with the legacy status set; no current rule
	// emits it.
	StatusDialer Status = "DIALER"

	// StatusHuman marks noise from the caller followed by silence.
	StatusHuman Status = "HUMAN"

	// StatusDTMF marks a dialed digit on the incoming stream.
	StatusDTMF Status = "DTMF"

	// StatusNotSure marks an analysis that hit its time budget with nothing
	// conclusive.
	StatusNotSure Status = "NOTSURE"

	// StatusMachine marks an automated dialer or answering machine.
	StatusMachine Status = "MACHINE"

	// StatusHangup marks a stream that ended before a conclusion.
	StatusHangup Status = "HANGUP"

	// StatusNoFrames marks a source that stopped producing frames.
	StatusNoFrames Status = "NOFRAMES"
)

// Result is the terminal outcome of one call's analysis. Exactly one Result
// is produced per analysed call.
type Result struct {
	// Status is the classification.
	Status Status `json:"status"`

	// Cause pairs the rule that fired with the measured values that
	// triggered it, e.g. "INITIALSILENCE-2600-2500". Empty for HANGUP.
	Cause string `json:"cause"`
}

// Rule returns the leading rule token of the cause string ("TIMEOUT",
// "MAXWORDS", ...), or "" when no cause was recorded. Used as a metric
// attribute.
func (r Result) Rule() string {
	for i := 0; i < len(r.Cause); i++ {
		if r.Cause[i] == '-' {
			return r.Cause[:i]
		}
	}
	return r.Cause
}

func causeTimeout(totalMS int) string {
	return fmt.Sprintf("TIMEOUT-%d", totalMS)
}

func causeInitialSilence(silenceMS, initialSilence int) string {
	return fmt.Sprintf("INITIALSILENCE-%d-%d", silenceMS, initialSilence)
}

func causeSilenceAfterNoise(silenceMS, afterGreetingSilence int) string {
	return fmt.Sprintf("SILENCEAFTERNOISE-%d-%d", silenceMS, afterGreetingSilence)
}

func causeMaxWordLength(consecutiveVoiceMS int) string {
	return fmt.Sprintf("MAXWORDLENGTH-%d", consecutiveVoiceMS)
}

func causeMaxWords(words, maximumWords int) string {
	return fmt.Sprintf("MAXWORDS-%d-%d", words, maximumWords)
}

func causeLongGreeting(voiceMS, greeting int) string {
	return fmt.Sprintf("LONGGREETING-%d-%d", voiceMS, greeting)
}

func causeDTMF(digit byte) string {
	// Legacy encoding: the digit's offset from '0', which yields negative
	// values for '*' and '#'. Preserved as-is.
	return fmt.Sprintf("DTMFFRAME-%d", int(digit)-'0')
}
