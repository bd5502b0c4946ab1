package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/coder/websocket"

	"github.com/dialsift/dialsift/pkg/audio"
)

// wsSource adapts a WebSocket connection into an [audio.Source]. Binary
// messages are voice frames (little-endian 16-bit PCM), "dtmf:<d>" text
// messages are DTMF events, and a wait that expires without a message yields
// a marker frame. A close from the peer surfaces as [audio.ErrHangup].
//
// wsSource also keeps the running stream time in milliseconds, counting a
// marker as the full wait it stood in for, so the caller can report how much
// call audio an analysis consumed.
type wsSource struct {
	ctx  context.Context
	conn *websocket.Conn

	elapsedMS int
}

func newSource(ctx context.Context, conn *websocket.Conn) *wsSource {
	return &wsSource{ctx: ctx, conn: conn}
}

var _ audio.Source = (*wsSource)(nil)

// Next waits up to maxWait for the next frame from the peer. Text messages
// that are not DTMF events are ignored without resetting the wait.
func (s *wsSource) Next(maxWait time.Duration) (audio.Frame, error) {
	ctx, cancel := context.WithTimeout(s.ctx, maxWait)
	defer cancel()

	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				s.elapsedMS += int(maxWait / time.Millisecond)
				return audio.MarkerFrame(), nil
			}
			if websocket.CloseStatus(err) != -1 || errors.Is(err, io.EOF) {
				return audio.Frame{}, audio.ErrHangup
			}
			return audio.Frame{}, fmt.Errorf("read frame: %w", err)
		}

		switch typ {
		case websocket.MessageBinary:
			samples, err := decodePCM(data)
			if err != nil {
				return audio.Frame{}, fmt.Errorf("decode frame: %w", err)
			}
			f := audio.VoiceFrame(samples)
			s.elapsedMS += f.DurationMS()
			return f, nil
		case websocket.MessageText:
			if digit, ok := parseDTMF(string(data)); ok {
				return audio.DTMFFrame(digit), nil
			}
			// Unknown control text; keep waiting within the same budget.
		}
	}
}

// ElapsedMS reports the stream time delivered so far.
func (s *wsSource) ElapsedMS() int {
	return s.elapsedMS
}
