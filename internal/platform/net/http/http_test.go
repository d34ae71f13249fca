package http

import (
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"newsroom/internal/platform/config"
	perr "newsroom/internal/platform/errors"

	"github.com/go-chi/chi/v5"
)

type echoIn struct {
	Name string `json:"name" validate:"required"`
}

func newTestRouter() (*chi.Mux, Router) {
	m := chi.NewRouter()
	return m, AdaptChi(m)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestPostJSON(t *testing.T) {
	m, r := newTestRouter()
	r.Route("/v1", func(r Router) {
		PostJSON(r, "/echo", func(_ *stdhttp.Request, in echoIn) (any, error) {
			if in.Name == "queued" {
				return Accepted(map[string]string{"name": in.Name}), nil
			}
			if in.Name == "missing" {
				return nil, perr.NotFoundf("no %s", in.Name)
			}
			return map[string]string{"name": in.Name}, nil
		})
	})

	cases := []struct {
		body   string
		status int
		code   perr.ErrorCode
	}{
		{`{"name":"desk"}`, stdhttp.StatusOK, 0},
		{`{"name":"queued"}`, stdhttp.StatusAccepted, 0},
		{`{"name":"missing"}`, stdhttp.StatusNotFound, perr.ErrorCodeNotFound},
		{`{}`, stdhttp.StatusBadRequest, perr.ErrorCodeValidation},
		{`nope`, stdhttp.StatusBadRequest, perr.ErrorCodeJSON},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		m.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodPost, "/v1/echo", strings.NewReader(c.body)))
		if rec.Code != c.status {
			t.Fatalf("%s: status = %d", c.body, rec.Code)
		}
		env := decode(t, rec)
		if env.StatusCode != c.status || env.Code != c.code {
			t.Fatalf("%s: envelope = %+v", c.body, env)
		}
	}
}

func TestGetJSON(t *testing.T) {
	m, r := newTestRouter()
	r.Group(func(r Router) {
		GetJSON(r, "/ok", func(*stdhttp.Request) (any, error) { return "fine", nil })
		GetJSON(r, "/fail", func(*stdhttp.Request) (any, error) { return nil, errors.New("boom") })
	})

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/ok", nil))
	if env := decode(t, rec); env.Data != "fine" {
		t.Fatalf("data = %v", env.Data)
	}

	rec = httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/fail", nil))
	if rec.Code != stdhttp.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	Handle(func(*stdhttp.Request) Response { return Response{Status: stdhttp.StatusNoContent} })(rec, httptest.NewRequest(stdhttp.MethodGet, "/", nil))
	if rec.Code != stdhttp.StatusNoContent || rec.Body.Len() != 0 {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestMountSwagger(t *testing.T) {
	m, r := newTestRouter()
	MountSwagger(r, func() (string, error) { return `{"swagger":"2.0"}`, nil })

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/docs/doc.json", nil))
	if rec.Code != stdhttp.StatusOK || !strings.Contains(rec.Body.String(), "2.0") {
		t.Fatalf("doc.json = %d %q", rec.Code, rec.Body.String())
	}
}

func TestNewServer_Port(t *testing.T) {
	t.Setenv("CORE_API_PORT", "4811")
	s := NewServer(config.New())
	if s.Addr() != ":4811" {
		t.Fatalf("Addr = %q", s.Addr())
	}
	if s.Router().Mux() == nil {
		t.Fatalf("nil mux")
	}
}
