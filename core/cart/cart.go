package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lmshub/coursepay/database"
)

type Cart struct {
	UserID    string    `json:"-" db:"user_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
	Version   int       `json:"-" db:"version"`
	Items     []Item    `json:"items" db:"-"`
}

type Item struct {
	UserID    string    `json:"-" db:"user_id"`
	CourseID  string    `json:"courseId" db:"course_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// AddItem puts a course in the user's cart, creating the cart on first use.
// Adding a course twice is a no-op.
func AddItem(ctx context.Context, db sqlx.ExtContext, it Item) error {
	const qc = `
	INSERT INTO carts
		(user_id, created_at, updated_at)
	VALUES
		(:user_id, :created_at, :created_at)
	ON CONFLICT (user_id) DO UPDATE SET
		updated_at = EXCLUDED.updated_at,
		version = carts.version + 1`

	if err := database.NamedExecContext(ctx, db, qc, it); err != nil {
		return fmt.Errorf("upserting cart: %w", err)
	}

	const qi = `
	INSERT INTO cart_items
		(user_id, course_id, created_at)
	VALUES
		(:user_id, :course_id, :created_at)
	ON CONFLICT DO NOTHING`

	if err := database.NamedExecContext(ctx, db, qi, it); err != nil {
		return fmt.Errorf("inserting cart item: %w", err)
	}
	return nil
}

// FetchItems returns the user's cart items in the order they were added. A
// user without a cart has no items.
func FetchItems(ctx context.Context, db sqlx.ExtContext, userID string) ([]Item, error) {
	in := struct {
		UserID string `db:"user_id"`
	}{
		UserID: userID,
	}

	const q = `
	SELECT
		user_id, course_id, created_at
	FROM cart_items
	WHERE user_id = :user_id
	ORDER BY created_at, course_id`

	var items []Item
	if err := database.NamedQuerySlice(ctx, db, q, in, &items); err != nil {
		return nil, fmt.Errorf("selecting cart items: %w", err)
	}
	return items, nil
}

// Clear empties the user's cart. The cart itself is kept.
func Clear(ctx context.Context, db sqlx.ExtContext, userID string, now time.Time) error {
	in := struct {
		UserID    string    `db:"user_id"`
		UpdatedAt time.Time `db:"updated_at"`
	}{
		UserID:    userID,
		UpdatedAt: now,
	}

	const qi = `
	DELETE FROM cart_items
	WHERE user_id = :user_id`

	if err := database.NamedExecContext(ctx, db, qi, in); err != nil {
		return fmt.Errorf("deleting cart items: %w", err)
	}

	const qc = `
	UPDATE carts SET
		updated_at = :updated_at,
		version = version + 1
	WHERE user_id = :user_id`

	if err := database.NamedExecContext(ctx, db, qc, in); err != nil {
		return fmt.Errorf("touching cart: %w", err)
	}
	return nil
}
