// Package ingest terminates inbound call-audio WebSocket streams and runs
// each one through the classification loop.
//
// The wire protocol is deliberately small: the client opens a WebSocket
// against /v1/analyze, sends one JSON hello declaring the audio format (and
// optionally a positional override list), then streams binary PCM frames and
// "dtmf:<d>" text events. The server answers with a single JSON result when
// the analysis terminates and closes the connection.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/dialsift/dialsift/internal/classify"
	"github.com/dialsift/dialsift/internal/config"
	"github.com/dialsift/dialsift/internal/observe"
	"github.com/dialsift/dialsift/pkg/audio"
	"github.com/dialsift/dialsift/pkg/provider/dsp"
)

// helloTimeout bounds how long a freshly accepted connection may take to send
// its hello message.
const helloTimeout = 5 * time.Second

// maxFrameBytes caps a single WebSocket message. Generous enough for several
// seconds of 8 kHz 16-bit PCM in one frame.
const maxFrameBytes = 1 << 20

// Server accepts call-audio streams and classifies them.
type Server struct {
	cfg     *config.Holder
	engine  dsp.Engine
	metrics *observe.Metrics
}

// NewServer creates a Server reading defaults from cfg and building one
// detector per call from engine. A nil metrics falls back to the package
// default instruments.
func NewServer(cfg *config.Holder, engine dsp.Engine, metrics *observe.Metrics) *Server {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Server{cfg: cfg, engine: engine, metrics: metrics}
}

// Register mounts the analysis endpoint on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/analyze", s.handleAnalyze)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	log := slog.With("remote", r.RemoteAddr)

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxFrameBytes)

	ctx := r.Context()

	hello, err := readHello(ctx, conn)
	if err != nil {
		log.Warn("bad hello", "err", err)
		closeWithError(ctx, conn, websocket.StatusPolicyViolation, err)
		return
	}

	if hello.Format != audio.FormatSlin8k.Encoding || hello.SampleRate != audio.FormatSlin8k.SampleRate {
		ferr := &audio.FormatError{
			Want: audio.FormatSlin8k,
			Got:  audio.Format{Encoding: hello.Format, SampleRate: hello.SampleRate},
		}
		log.Warn("unsupported audio format", "err", ferr)
		s.metrics.RecordSetupFailure(ctx, "format")
		closeWithError(ctx, conn, websocket.StatusUnsupportedData, ferr)
		return
	}

	params := classify.Resolve(s.cfg.Params(), classify.ParseOverrides(hello.Overrides))

	det, err := s.engine.NewDetector(params.SilenceThreshold)
	if err != nil {
		log.Error("detector setup failed", "err", err, "threshold", params.SilenceThreshold)
		s.metrics.RecordSetupFailure(ctx, "detector")
		closeWithError(ctx, conn, websocket.StatusInternalError, errors.New("detector unavailable"))
		return
	}
	defer det.Close()

	s.metrics.ActiveCalls.Add(ctx, 1)
	defer s.metrics.ActiveCalls.Add(ctx, -1)

	src := newSource(ctx, conn)
	res := classify.Analyze(src, det, params)

	audioSeconds := float64(src.ElapsedMS()) / 1000
	s.metrics.RecordClassification(ctx, string(res.Status), res.Rule(), audioSeconds)
	log.Info("call classified",
		"status", res.Status, "cause", res.Cause, "audio_s", audioSeconds)

	if err := writeJSON(ctx, conn, resultMessage{Status: string(res.Status), Cause: res.Cause}); err != nil {
		// The peer hanging up before the verdict is a normal outcome.
		log.Debug("result not delivered", "err", err)
		return
	}
	conn.Close(websocket.StatusNormalClosure, "analysis complete")
}

// readHello reads and decodes the client's hello within the handshake budget.
func readHello(ctx context.Context, conn *websocket.Conn) (helloMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, helloTimeout)
	defer cancel()

	typ, data, err := conn.Read(ctx)
	if err != nil {
		return helloMessage{}, fmt.Errorf("read hello: %w", err)
	}
	if typ != websocket.MessageText {
		return helloMessage{}, fmt.Errorf("hello must be a text message, got %v", typ)
	}
	var hello helloMessage
	if err := json.Unmarshal(data, &hello); err != nil {
		return helloMessage{}, fmt.Errorf("decode hello: %w", err)
	}
	return hello, nil
}

// closeWithError sends an error message to the peer and closes the
// connection with the given status. Best effort on an already broken peer.
func closeWithError(ctx context.Context, conn *websocket.Conn, status websocket.StatusCode, cause error) {
	_ = writeJSON(ctx, conn, errorMessage{Error: cause.Error()})
	conn.Close(status, cause.Error())
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
