package ingest

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// dtmfPrefix marks a text message carrying a single DTMF digit, e.g. "dtmf:5".
const dtmfPrefix = "dtmf:"

// helloMessage is the first text message a client must send after the
// WebSocket handshake. It declares the audio format and may carry a per-call
// override list in the legacy positional comma format.
type helloMessage struct {
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
	Overrides  string `json:"overrides,omitempty"`
}

// resultMessage is the single text message the server sends back once the
// analysis terminates.
type resultMessage struct {
	Status string `json:"status"`
	Cause  string `json:"cause,omitempty"`
}

// errorMessage is sent instead of a result when the call is rejected before
// analysis starts.
type errorMessage struct {
	Error string `json:"error"`
}

// decodePCM converts a little-endian signed 16-bit PCM payload into samples.
func decodePCM(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("pcm payload has odd length %d", len(data))
	}
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return samples, nil
}

// parseDTMF extracts the digit from a "dtmf:<d>" text message.
// Returns (digit, true) when the message is a well-formed DTMF event.
func parseDTMF(msg string) (byte, bool) {
	rest, ok := strings.CutPrefix(msg, dtmfPrefix)
	if !ok || len(rest) != 1 {
		return 0, false
	}
	return rest[0], true
}
