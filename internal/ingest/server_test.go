package ingest_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/dialsift/dialsift/internal/config"
	"github.com/dialsift/dialsift/internal/ingest"
	"github.com/dialsift/dialsift/pkg/provider/dsp"
	dspmock "github.com/dialsift/dialsift/pkg/provider/dsp/mock"
)

// result mirrors the server's terminal message.
type result struct {
	Status string `json:"status"`
	Cause  string `json:"cause"`
	Error  string `json:"error"`
}

func newTestConn(t *testing.T, engine dsp.Engine) *websocket.Conn {
	t.Helper()

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	mux := http.NewServeMux()
	ingest.NewServer(config.NewHolder(cfg), engine, nil).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/analyze", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func sendText(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
		t.Fatalf("write %q: %v", msg, err)
	}
}

// sendVoice sends ms milliseconds of 8 kHz PCM as one binary frame.
func sendVoice(t *testing.T, conn *websocket.Conn, ms int) {
	t.Helper()
	data := make([]byte, 2*8*ms)
	for i := 0; i < len(data); i += 2 {
		binary.LittleEndian.PutUint16(data[i:], 1000)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageBinary, data); err != nil {
		t.Fatalf("write voice frame: %v", err)
	}
}

func readResult(t *testing.T, conn *websocket.Conn) result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	var res result
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatalf("decode result %q: %v", data, err)
	}
	return res
}

func TestServer_DTMFTerminatesCall(t *testing.T) {
	t.Parallel()
	conn := newTestConn(t, &dspmock.Engine{})

	sendText(t, conn, `{"format":"slin","sample_rate":8000}`)
	sendText(t, conn, "dtmf:5")

	res := readResult(t, conn)
	if res.Status != "DTMF" {
		t.Fatalf("status = %q, want DTMF (error %q)", res.Status, res.Error)
	}
	if res.Cause != "DTMFFRAME-5" {
		t.Errorf("cause = %q, want DTMFFRAME-5", res.Cause)
	}
}

func TestServer_SilentCallerWithOverrides(t *testing.T) {
	t.Parallel()
	conn := newTestConn(t, &dspmock.Engine{})

	// Shrink the initial-silence budget so two empty wait ticks suffice.
	sendText(t, conn, `{"format":"slin","sample_rate":8000,"overrides":"200"}`)

	res := readResult(t, conn)
	if res.Status != "HUMAN" {
		t.Fatalf("status = %q, want HUMAN (cause %q)", res.Status, res.Cause)
	}
	if res.Cause != "INITIALSILENCE-200-200" {
		t.Errorf("cause = %q, want INITIALSILENCE-200-200", res.Cause)
	}
}

func TestServer_GarbageOverridesStillAnswer(t *testing.T) {
	t.Parallel()
	conn := newTestConn(t, &dspmock.Engine{})

	// Unparseable override fields become 0; the zeroed initial-silence
	// budget fires on the first empty tick instead of stalling the call.
	sendText(t, conn, `{"format":"slin","sample_rate":8000,"overrides":"abc"}`)

	res := readResult(t, conn)
	if res.Status != "HUMAN" {
		t.Fatalf("status = %q, want HUMAN (cause %q)", res.Status, res.Cause)
	}
	if res.Cause != "INITIALSILENCE-100-0" {
		t.Errorf("cause = %q, want INITIALSILENCE-100-0", res.Cause)
	}
}

func TestServer_MaxWordsOverTheWire(t *testing.T) {
	t.Parallel()
	engine := &dspmock.Engine{Detector: &dspmock.Detector{
		Silences: []int{100, 0, 0, 100, 0, 0, 100, 0},
	}}
	conn := newTestConn(t, engine)

	sendText(t, conn, `{"format":"slin","sample_rate":8000}`)
	for range 8 {
		sendVoice(t, conn, 100)
	}

	res := readResult(t, conn)
	if res.Status != "MACHINE" {
		t.Fatalf("status = %q, want MACHINE (cause %q)", res.Status, res.Cause)
	}
	if res.Cause != "MAXWORDS-3-3" {
		t.Errorf("cause = %q, want MAXWORDS-3-3", res.Cause)
	}
}

func TestServer_RejectsWrongFormat(t *testing.T) {
	t.Parallel()
	engine := &dspmock.Engine{}
	conn := newTestConn(t, engine)

	sendText(t, conn, `{"format":"ulaw","sample_rate":8000}`)

	res := readResult(t, conn)
	if res.Error == "" || !strings.Contains(res.Error, "slin/8000") {
		t.Errorf("error = %q, want mention of the required format", res.Error)
	}
	if len(engine.NewDetectorCalls) != 0 {
		t.Errorf("detector was created for a rejected call")
	}
}

func TestServer_DetectorUnavailable(t *testing.T) {
	t.Parallel()
	conn := newTestConn(t, &dspmock.Engine{NewDetectorErr: dsp.ErrDetectorUnavailable})

	sendText(t, conn, `{"format":"slin","sample_rate":8000}`)

	res := readResult(t, conn)
	if res.Error != "detector unavailable" {
		t.Errorf("error = %q, want detector unavailable", res.Error)
	}
}

func TestServer_MalformedFrameGivesNoFrames(t *testing.T) {
	t.Parallel()
	conn := newTestConn(t, &dspmock.Engine{})

	sendText(t, conn, `{"format":"slin","sample_rate":8000}`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageBinary, []byte{1, 2, 3}); err != nil {
		t.Fatalf("write odd frame: %v", err)
	}

	res := readResult(t, conn)
	if res.Status != "NOFRAMES" {
		t.Fatalf("status = %q, want NOFRAMES (cause %q)", res.Status, res.Cause)
	}
	if res.Cause != "TIMEOUT-0" {
		t.Errorf("cause = %q, want TIMEOUT-0", res.Cause)
	}
}

func TestServer_HangupAfterHello(t *testing.T) {
	t.Parallel()
	engine := &dspmock.Engine{Detector: &dspmock.Detector{}}
	conn := newTestConn(t, engine)

	sendText(t, conn, `{"format":"slin","sample_rate":8000}`)
	if err := conn.Close(websocket.StatusNormalClosure, "caller hung up"); err != nil {
		t.Fatalf("close: %v", err)
	}

	// The server has no peer left to answer; the call must still release its
	// detector. Poll until the server side has run its deferred cleanup.
	deadline := time.Now().Add(5 * time.Second)
	for engine.Detector.(*dspmock.Detector).CloseCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("detector was not closed after hangup")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
