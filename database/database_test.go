package database_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lmshub/coursepay/database"
	"github.com/lmshub/coursepay/database/dbtest"
)

func TestMain(m *testing.M) {
	os.Exit(dbtest.Main(m))
}

type userRow struct {
	ID    string `db:"user_id"`
	Name  string `db:"name"`
	Email string `db:"email"`
}

func TestNamedHelpers(t *testing.T) {
	db := dbtest.NewDatabase(t, "database_helpers")
	ctx := context.Background()

	const ins = `INSERT INTO users (user_id, name, email) VALUES (:user_id, :name, :email)`

	u := userRow{ID: uuid.NewString(), Name: "Asha", Email: "asha@example.com"}
	if err := database.NamedExecContext(ctx, db, ins, u); err != nil {
		t.Fatalf("inserting user: %v", err)
	}

	dup := userRow{ID: uuid.NewString(), Name: "Other", Email: u.Email}
	err := database.NamedExecContext(ctx, db, ins, dup)
	if !errors.Is(err, database.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	var got userRow
	const sel = `SELECT user_id, name, email FROM users WHERE user_id = :user_id`
	if err := database.NamedQueryStruct(ctx, db, sel, u, &got); err != nil {
		t.Fatalf("selecting user: %v", err)
	}
	if got != u {
		t.Fatalf("expected %+v, got %+v", u, got)
	}

	missing := userRow{ID: uuid.NewString()}
	if err := database.NamedQueryStruct(ctx, db, sel, missing, &got); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	var all []userRow
	if err := database.NamedQuerySlice(ctx, db, `SELECT user_id, name, email FROM users`, struct{}{}, &all); err != nil {
		t.Fatalf("listing users: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 user, got %d", len(all))
	}
}

func TestTransactionRollback(t *testing.T) {
	db := dbtest.NewDatabase(t, "database_tx")
	ctx := context.Background()

	boom := errors.New("boom")
	err := database.Transaction(ctx, db, func(tx sqlx.ExtContext) error {
		u := userRow{ID: uuid.NewString(), Name: "Ravi", Email: "ravi@example.com"}
		const q = `INSERT INTO users (user_id, name, email) VALUES (:user_id, :name, :email)`
		if err := database.NamedExecContext(ctx, tx, q, u); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var n int
	if err := db.GetContext(ctx, &n, `SELECT count(*) FROM users`); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected rollback to leave 0 users, got %d", n)
	}
}

func TestTransactionCancelled(t *testing.T) {
	db := dbtest.NewDatabase(t, "database_tx_cancel")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := database.Transaction(ctx, db, func(tx sqlx.ExtContext) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Fatal("transaction body ran under a cancelled context")
	}
}
