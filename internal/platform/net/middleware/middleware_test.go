package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	perr "newsroom/internal/platform/errors"

	"github.com/go-chi/chi/v5"
)

func TestRecoverJSON(t *testing.T) {
	h := RecoverJSON(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var body panicWire
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != perr.ErrorCodePanic || body.Error != "internal error" {
		t.Fatalf("body = %+v", body)
	}
}

func TestAccessLog_CapturesStatus(t *testing.T) {
	var seen int
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})
	h := AccessLog(AccessLogOptions{Slow: time.Nanosecond})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner.ServeHTTP(w, r)
		seen = w.(*captureWriter).status
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/inbound/email", nil))
	if rec.Code != http.StatusAccepted || seen != http.StatusAccepted {
		t.Fatalf("status = %d seen = %d", rec.Code, seen)
	}
}

func TestDefaults_RequestIDHeaderAndCORS(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Defaults(time.Second, CORSOptions{AllowedOrigins: []string{"https://desk.example"}})...)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://desk.example")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://desk.example" {
		t.Fatalf("missing CORS header: %v", rec.Header())
	}
}
