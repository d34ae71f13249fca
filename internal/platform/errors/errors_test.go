package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrorCodeNotFound, http.StatusNotFound},
		{ErrorCodeInvalidArgument, http.StatusUnprocessableEntity},
		{ErrorCodeConfiguration, http.StatusUnprocessableEntity},
		{ErrorCodeDuplicateKey, http.StatusConflict},
		{ErrorCodeConflict, http.StatusConflict},
		{ErrorCodeValidation, http.StatusBadRequest},
		{ErrorCodeJSON, http.StatusBadRequest},
		{ErrorCodeUnavailable, http.StatusServiceUnavailable},
		{ErrorCodeSource, http.StatusBadGateway},
		{ErrorCodeTimeout, http.StatusBadGateway},
		{ErrorCodeDB, http.StatusInternalServerError},
		{ErrorCodeUnknown, http.StatusInternalServerError},
		{9999, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := HTTPStatusCode(c.code); got != c.want {
			t.Fatalf("HTTPStatusCode(%v) = %d, want %d", c.code, got, c.want)
		}
	}
}

func TestErrorRendering(t *testing.T) {
	var nilErr *Error
	if nilErr.Error() != "<nil>" {
		t.Fatalf("nil render = %q", nilErr.Error())
	}

	e := WithOp(Wrap(stderrs.New("eof"), ErrorCodeSource, "fetch feed"), "rss.scan")
	if got := e.Error(); got != "rss.scan: fetch feed: eof" {
		t.Fatalf("Error() = %q", got)
	}
	pe, _ := As(e)
	if pe.Message() != "fetch feed" || pe.Op() != "rss.scan" {
		t.Fatalf("accessors wrong: %q %q", pe.Message(), pe.Op())
	}
	if ErrorCodeExtraction.String() != "extraction" || ErrorCode(999).String() != "code(999)" {
		t.Fatalf("String() wrong")
	}
}

func TestCodeOfThroughForeignWrap(t *testing.T) {
	inner := Extractionf("item %d has no title", 3)
	outer := fmt.Errorf("scan: %w", inner)
	if !IsCode(outer, ErrorCodeExtraction) {
		t.Fatalf("CodeOf(outer) = %v", CodeOf(outer))
	}
	if CodeOf(stderrs.New("plain")) != ErrorCodeUnknown {
		t.Fatalf("plain error should be unknown")
	}
	if CodeOf(fmt.Errorf("x: %w", context.DeadlineExceeded)) != ErrorCodeTimeout {
		t.Fatalf("deadline should map to timeout")
	}
}

func TestWithFieldCopyOnWrite(t *testing.T) {
	base := Validationf("bad")
	withF := WithField(base, "title")
	if b, _ := As(base); b.Field() != "" {
		t.Fatalf("base mutated")
	}
	if w, _ := As(withF); w.Field() != "title" {
		t.Fatalf("field not set")
	}
	plain := stderrs.New("x")
	if WithField(plain, "f") != plain || WithOp(plain, "o") != plain {
		t.Fatalf("foreign errors must pass through")
	}
}

func TestWireAndHTTP(t *testing.T) {
	if (WireFrom(nil) != Wire{}) {
		t.Fatalf("nil wire not zero")
	}
	w := WireFrom(stderrs.New("boom"))
	if w.Code != ErrorCodeUnknown || w.Message != "boom" {
		t.Fatalf("foreign wire = %+v", w)
	}
	st, w2 := HTTP(WithField(NotFoundf("method %s", "m1"), "id"))
	if st != http.StatusNotFound || w2.Field != "id" || w2.Message != "method m1" {
		t.Fatalf("HTTP = %d %+v", st, w2)
	}
	if st, _ := HTTP(nil); st != http.StatusOK {
		t.Fatalf("HTTP(nil) = %d", st)
	}
}

func TestWrapIfAndRoot(t *testing.T) {
	if WrapIf(nil, ErrorCodeDB, "x") != nil {
		t.Fatalf("WrapIf(nil) should be nil")
	}
	src := stderrs.New("root")
	e := Wrapf(WrapIf(src, ErrorCodeDB, "inner"), ErrorCodeUnavailable, "outer %d", 1)
	if Root(e) != src {
		t.Fatalf("Root lost the cause")
	}
	if Root(nil) != nil {
		t.Fatalf("Root(nil) should be nil")
	}
	if !Is(e, src) {
		t.Fatalf("Is should find the cause")
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unavailable", Unavailablef("pg down"), true},
		{"source", Sourcef("feed 503"), true},
		{"config", Configf("no url"), false},
		{"validation", Validationf("no title"), false},
		{"plain", stderrs.New("nope"), false},
		{"canceled", context.Canceled, false},
	}
	for _, c := range cases {
		if got := Retryable(c.err); got != c.want {
			t.Fatalf("%s: Retryable = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestPermanent(t *testing.T) {
	if Permanent(nil) {
		t.Fatalf("nil is not permanent")
	}
	for _, err := range []error{Configf("x"), Validationf("x"), NotFoundf("x"), InvalidArgf("x"), JSONErrf("x")} {
		if !Permanent(err) {
			t.Fatalf("%v should be permanent", err)
		}
	}
	for _, err := range []error{Sourcef("x"), Unavailablef("x"), New(ErrorCodeUnknown, "x")} {
		if Permanent(err) {
			t.Fatalf("%v should not be permanent", err)
		}
	}
}
