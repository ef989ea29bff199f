package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/lmshub/coursepay/api/web"
	"github.com/lmshub/coursepay/api/weberr"
	"github.com/lmshub/coursepay/rate"
)

// RateLimit rejects clients, keyed by IP, that exceed lim. With trustProxy
// the IP is the last X-Forwarded-For hop, as appended by our own proxy.
func RateLimit(lim *rate.Limiter, trustProxy bool) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if !lim.Check(clientIP(r, trustProxy)) {
				return weberr.TooManyRequests(errors.New("rate limit exceeded"))
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			hops := strings.Split(fwd, ",")
			if ip := strings.TrimSpace(hops[len(hops)-1]); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
