package health_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dialsift/dialsift/internal/health"
	"github.com/dialsift/dialsift/pkg/provider/dsp"
	dspmock "github.com/dialsift/dialsift/pkg/provider/dsp/mock"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestHealthz_AlwaysOK(t *testing.T) {
	t.Parallel()
	h := health.New()
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "ok" {
		t.Errorf("body status = %v, want ok", body["status"])
	}
}

func TestReadyz_DetectorHealthy(t *testing.T) {
	t.Parallel()
	eng := &dspmock.Engine{}
	h := health.New(health.DetectorCheck(eng, 256))

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body)
	}
	// The probe must have exercised the engine with the configured threshold.
	if len(eng.NewDetectorCalls) != 1 || eng.NewDetectorCalls[0].Threshold != 256 {
		t.Errorf("NewDetector calls = %+v, want one call with threshold 256", eng.NewDetectorCalls)
	}
}

func TestReadyz_DetectorUnavailable(t *testing.T) {
	t.Parallel()
	eng := &dspmock.Engine{NewDetectorErr: dsp.ErrDetectorUnavailable}
	h := health.New(health.DetectorCheck(eng, 256))

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "fail" {
		t.Errorf("body status = %v, want fail", body["status"])
	}
}

func TestRegister_Routes(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	health.New().Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /readyz = %d, want 200", rec.Code)
	}
}
