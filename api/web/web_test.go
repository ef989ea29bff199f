package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/payments?page=3&limit=x", nil)

	if n, err := QueryInt(r, "page"); err != nil || n != 3 {
		t.Fatalf("expected 3, got %d (%v)", n, err)
	}
	if n, err := QueryInt(r, "missing"); err != nil || n != 0 {
		t.Fatalf("expected 0 for a missing parameter, got %d (%v)", n, err)
	}
	if _, err := QueryInt(r, "limit"); err == nil {
		t.Fatal("expected an error for a non numeric parameter")
	}
}

func TestRawBody(t *testing.T) {
	body := `{"id":"evt_1"}`

	r := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(body))
	w := httptest.NewRecorder()
	b, err := RawBody(w, r, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != body {
		t.Fatalf("expected the body untouched, got %q", b)
	}

	r = httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(body))
	if _, err := RawBody(w, r, 4); err == nil {
		t.Fatal("expected an error for an oversized body")
	}
}

func TestWrapMiddlewareOrder(t *testing.T) {
	var calls []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				calls = append(calls, name)
				return next(ctx, w, r)
			}
		}
	}

	h := WrapMiddleware([]Middleware{mw("first"), nil, mw("second")}, func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		calls = append(calls, "handler")
		return nil
	})

	if err := h(context.Background(), httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)); err != nil {
		t.Fatal(err)
	}

	if got := strings.Join(calls, ","); got != "first,second,handler" {
		t.Fatalf("unexpected call order %s", got)
	}
}
