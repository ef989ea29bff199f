// Package claims carries the authenticated identity through the request
// context.
package claims

import (
	"context"
	"errors"
)

const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

type Claims struct {
	UserID string
	Email  string
	Name   string
	Role   string
}

type ctxKey int

const claimsKey ctxKey = 1

var ErrMissing = errors.New("claim value missing from context")

func Set(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func Get(ctx context.Context) (Claims, error) {
	v, ok := ctx.Value(claimsKey).(Claims)
	if !ok {
		return Claims{}, ErrMissing
	}
	return v, nil
}

// HasRole reports whether the identity in ctx holds one of roles.
func HasRole(ctx context.Context, roles ...string) bool {
	c, err := Get(ctx)
	if err != nil {
		return false
	}

	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}

func IsAdmin(ctx context.Context) bool {
	return HasRole(ctx, RoleAdmin)
}

func IsUser(ctx context.Context, id string) bool {
	c, err := Get(ctx)
	if err != nil {
		return false
	}

	return c.UserID == id
}
