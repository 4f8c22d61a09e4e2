package net

import (
	"context"
	"net/http"
	"testing"

	perr "newswire/internal/platform/errors"
)

func TestWithRequestAndGetters(t *testing.T) {
	ctx := WithRequest(context.Background(), "req-9", "anon")
	if got := RequestID(ctx); got != "req-9" {
		t.Fatalf("RequestID = %q", got)
	}
	if got := Identifier(ctx); got != "anon" {
		t.Fatalf("Identifier = %q", got)
	}

	// empty values must not be stored
	empty := WithRequest(context.Background(), "", "")
	if RequestID(empty) != "" || Identifier(empty) != "" {
		t.Fatal("empty ids should not be set on context")
	}
}

func TestOKEnvelope(t *testing.T) {
	status, w := OK(map[string]int{"n": 1}, "req-1")
	if status != http.StatusOK || w.StatusCode != http.StatusOK || w.RequestID != "req-1" {
		t.Fatalf("OK envelope = %d %+v", status, w)
	}
	if w.Error != "" {
		t.Fatalf("OK envelope carries error %q", w.Error)
	}
}

func TestNoContentEnvelope(t *testing.T) {
	status, w := NoContent("req-2")
	if status != http.StatusNoContent || w.Data != nil {
		t.Fatalf("NoContent = %d %+v", status, w)
	}
}

func TestErrorEnvelope(t *testing.T) {
	status, w := Error(perr.TooManyRequestsf("try again shortly"), "req-3")
	if status != http.StatusTooManyRequests {
		t.Fatalf("Error status = %d", status)
	}
	if w.Code != perr.ErrorCodeTooManyRequests || w.Error != "try again shortly" {
		t.Fatalf("Error wire = %+v", w)
	}

	// nil error degrades to OK
	status, _ = Error(nil, "req-4")
	if status != http.StatusOK {
		t.Fatalf("Error(nil) status = %d", status)
	}
}

func TestHTTPStatus(t *testing.T) {
	if HTTPStatus(nil) != http.StatusOK {
		t.Fatal("HTTPStatus(nil) != 200")
	}
	if HTTPStatus(perr.NotFoundf("x")) != http.StatusNotFound {
		t.Fatal("HTTPStatus(not found) != 404")
	}
}
