package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lmshub/coursepay/api/weberr"
	"github.com/lmshub/coursepay/core/claims"
)

const secret = "test-secret"

func TestTokenRoundTrip(t *testing.T) {
	tok, err := NewToken(secret, "7b0c3c1e-5f1d-4d0b-9a55-0d3c1a2b3c4d", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	id, err := ParseToken(secret, tok)
	if err != nil {
		t.Fatal(err)
	}
	if id != "7b0c3c1e-5f1d-4d0b-9a55-0d3c1a2b3c4d" {
		t.Fatalf("unexpected user id %s", id)
	}
}

func TestParseTokenRejects(t *testing.T) {
	expired, err := NewToken(secret, "u1", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken(secret, expired); err == nil {
		t.Fatal("expected expired token to be rejected")
	}

	other, err := NewToken("other-secret", "u1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken(secret, other); err == nil {
		t.Fatal("expected token with a foreign signature to be rejected")
	}

	if _, err := ParseToken(secret, "garbage"); err == nil {
		t.Fatal("expected malformed token to be rejected")
	}
}

func TestBearer(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc")
	if got := bearer(r); got != "abc" {
		t.Fatalf("expected header token, got %q", got)
	}

	r.AddCookie(&http.Cookie{Name: CookieName, Value: "fromcookie"})
	if got := bearer(r); got != "fromcookie" {
		t.Fatalf("expected cookie to take precedence, got %q", got)
	}

	if got := bearer(httptest.NewRequest(http.MethodGet, "/", nil)); got != "" {
		t.Fatalf("expected no token, got %q", got)
	}
}

func TestAuthorize(t *testing.T) {
	called := false
	h := Authorize(claims.RoleAdmin)(func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		called = true
		return nil
	})

	ctx := claims.Set(context.Background(), claims.Claims{UserID: "u1", Role: claims.RoleStudent})
	err := h(ctx, httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if _, status, ok := weberr.Response(err); !ok || status != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
	if called {
		t.Fatal("handler must not run for a student")
	}

	ctx = claims.Set(context.Background(), claims.Claims{UserID: "u2", Role: claims.RoleAdmin})
	if err := h(ctx, httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Fatal("expected handler to run for an admin")
	}
}
