package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/dialsift/dialsift/internal/app"
	"github.com/dialsift/dialsift/internal/config"
	dspmock "github.com/dialsift/dialsift/pkg/provider/dsp/mock"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{ListenAddr: "127.0.0.1:0", LogLevel: config.LogInfo},
		Metrics: config.MetricsConfig{Enabled: true},
	}
}

// startApp runs a in the background and verifies a clean stop during cleanup.
func startApp(t *testing.T, a *app.App) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("Run returned %v, want nil or context.Canceled", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Run did not return after cancel")
		}
		sdCtx, sdCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer sdCancel()
		a.Shutdown(sdCtx)
	})
}

func TestApp_ServesHealthMetricsAndAnalysis(t *testing.T) {
	a, err := app.New(testConfig(), app.WithEngine(&dspmock.Engine{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	startApp(t, a)

	base := "http://" + a.Addr()
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(base + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}

	// One call over the wire: a DTMF digit answers on the spot.
	ctx, wsCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer wsCancel()
	conn, _, err := websocket.Dial(ctx, "ws://"+a.Addr()+"/v1/analyze", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	mustWrite := func(msg string) {
		t.Helper()
		if err := conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
			t.Fatalf("write %q: %v", msg, err)
		}
	}
	mustWrite(`{"format":"slin","sample_rate":8000}`)
	mustWrite("dtmf:9")

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	var res struct {
		Status string `json:"status"`
		Cause  string `json:"cause"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatalf("decode result %q: %v", data, err)
	}
	if res.Status != "DTMF" || res.Cause != "DTMFFRAME-9" {
		t.Errorf("result = %+v, want DTMF / DTMFFRAME-9", res)
	}
}

func TestApp_MetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false

	a, err := app.New(cfg, app.WithEngine(&dspmock.Engine{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	startApp(t, a)

	resp, err := http.Get("http://" + a.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /metrics = %d, want 404 when disabled", resp.StatusCode)
	}
}

func TestApp_ConfigFileReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	write := func(content string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	write("server:\n  listen_addr: \"127.0.0.1:0\"\ndetection:\n  initial_silence: 111\n")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	a, err := app.New(cfg, app.WithEngine(&dspmock.Engine{}), app.WithConfigFile(path))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	startApp(t, a)

	if got := a.Config().Detection.Params().InitialSilence; got != 111 {
		t.Fatalf("initial InitialSilence = %d, want 111", got)
	}

	write("server:\n  listen_addr: \"127.0.0.1:0\"\ndetection:\n  initial_silence: 222\n")

	deadline := time.Now().Add(3 * time.Second)
	for a.Config().Detection.Params().InitialSilence != 222 {
		if time.Now().After(deadline) {
			t.Fatalf("config not reloaded, InitialSilence = %d",
				a.Config().Detection.Params().InitialSilence)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestNew_BadListenAddr(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Server.ListenAddr = "127.0.0.1:-1"

	if _, err := app.New(cfg, app.WithEngine(&dspmock.Engine{})); err == nil {
		t.Fatal("New accepted an invalid listen address")
	}
}
