// Package auth verifies the access tokens issued by the account service and
// loads the caller's identity into the request context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"github.com/lmshub/coursepay/api/web"
	"github.com/lmshub/coursepay/api/weberr"
	"github.com/lmshub/coursepay/core/claims"
	"github.com/lmshub/coursepay/core/user"
	"github.com/lmshub/coursepay/database"
	"github.com/lmshub/coursepay/validate"
)

const CookieName = "accessToken"

type TokenClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

func NewToken(secret string, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	tc := TokenClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString([]byte(secret))
}

// ParseToken checks the signature and expiry of tok and returns the user id
// it was issued for.
func ParseToken(secret string, tok string) (string, error) {
	var tc TokenClaims
	_, err := jwt.ParseWithClaims(tok, &tc, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	if tc.UserID == "" {
		return "", errors.New("token carries no user id")
	}
	return tc.UserID, nil
}

func bearer(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}

	h := r.Header.Get("Authorization")
	if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(tok)
	}
	return ""
}

// Authenticate requires a valid access token whose user still exists.
func Authenticate(db *sqlx.DB, secret string) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			tok := bearer(r)
			if tok == "" {
				return weberr.NotAuthorized(errors.New("authentication required"))
			}

			id, err := ParseToken(secret, tok)
			if err != nil {
				return weberr.NotAuthorized(fmt.Errorf("parsing token: %w", err))
			}

			if err := validate.CheckID(id); err != nil {
				return weberr.NotAuthorized(fmt.Errorf("token user id: %w", err))
			}

			usr, err := user.Fetch(ctx, db, id)
			if err != nil {
				if errors.Is(err, database.ErrNotFound) {
					return weberr.NotAuthorized(fmt.Errorf("token for unknown user[%s]", id))
				}
				return fmt.Errorf("loading authenticated user: %w", err)
			}

			ctx = claims.Set(ctx, claims.Claims{
				UserID: usr.ID,
				Email:  usr.Email,
				Name:   usr.Name,
				Role:   usr.Role,
			})

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

// Authorize must run after Authenticate.
func Authorize(roles ...string) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if !claims.HasRole(ctx, roles...) {
				return weberr.Forbidden(errors.New("role not allowed"))
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
