package middleware

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tt := []struct {
		name       string
		remote     string
		forwarded  string
		trustProxy bool
		want       string
	}{
		{name: "remote addr", remote: "10.0.0.1:5555", want: "10.0.0.1"},
		{name: "forwarded ignored", remote: "10.0.0.1:5555", forwarded: "1.2.3.4", want: "10.0.0.1"},
		{name: "forwarded trusted", remote: "10.0.0.1:5555", forwarded: "1.2.3.4", trustProxy: true, want: "1.2.3.4"},
		{name: "last hop wins", remote: "10.0.0.1:5555", forwarded: "9.9.9.9, 1.2.3.4", trustProxy: true, want: "1.2.3.4"},
		{name: "no header", remote: "10.0.0.1:5555", trustProxy: true, want: "10.0.0.1"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/payments/history", nil)
			r.RemoteAddr = tc.remote
			if tc.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tc.forwarded)
			}

			if got := clientIP(r, tc.trustProxy); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
