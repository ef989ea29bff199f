package claims

import (
	"context"
	"errors"
	"testing"
)

func TestGetMissing(t *testing.T) {
	if _, err := Get(context.Background()); !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
	if IsAdmin(context.Background()) {
		t.Fatal("expected anonymous context not to be admin")
	}
}

func TestRoles(t *testing.T) {
	ctx := Set(context.Background(), Claims{UserID: "u1", Role: RoleTeacher})

	if IsAdmin(ctx) {
		t.Fatal("teacher must not be admin")
	}
	if !HasRole(ctx, RoleTeacher, RoleAdmin) {
		t.Fatal("expected teacher to match the role list")
	}
	if !IsUser(ctx, "u1") || IsUser(ctx, "u2") {
		t.Fatal("IsUser mismatch")
	}
}
