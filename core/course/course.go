package course

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/lmshub/coursepay/database"
	"github.com/shopspring/decimal"
)

type Course struct {
	ID             string          `json:"id" db:"course_id"`
	Title          string          `json:"title" db:"title"`
	Description    string          `json:"description" db:"description"`
	Price          decimal.Decimal `json:"price" db:"price"`
	ThumbnailURL   string          `json:"thumbnailUrl" db:"thumbnail_url"`
	InstructorID   sql.NullString  `json:"-" db:"instructor_id"`
	InstructorName sql.NullString  `json:"-" db:"instructor_name"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" db:"updated_at"`
}

// Summary is the slice of a course shown next to payments.
type Summary struct {
	ID           string `json:"id" db:"course_id"`
	Title        string `json:"title" db:"title"`
	ThumbnailURL string `json:"thumbnailUrl" db:"thumbnail_url"`
}

func Create(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	INSERT INTO courses
		(course_id, title, description, price, thumbnail_url, instructor_id, created_at, updated_at)
	VALUES
		(:course_id, :title, :description, :price, :thumbnail_url, :instructor_id, :created_at, :updated_at)`

	if err := database.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("inserting course: %w", err)
	}
	return nil
}

// Fetch loads a course with its instructor's display name.
func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Course, error) {
	in := struct {
		ID string `db:"course_id"`
	}{
		ID: id,
	}

	const q = `
	SELECT
		c.course_id, c.title, c.description, c.price, c.thumbnail_url,
		c.instructor_id, u.name AS instructor_name, c.created_at, c.updated_at
	FROM courses AS c
	LEFT JOIN users AS u ON u.user_id = c.instructor_id
	WHERE c.course_id = :course_id`

	var c Course
	if err := database.NamedQueryStruct(ctx, db, q, in, &c); err != nil {
		return Course{}, fmt.Errorf("selecting course[%s]: %w", id, err)
	}
	return c, nil
}

// FetchSummaries returns the summaries of the given courses keyed by id.
// Unknown ids are absent from the map.
func FetchSummaries(ctx context.Context, db sqlx.ExtContext, ids []string) (map[string]Summary, error) {
	out := make(map[string]Summary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	in := struct {
		IDs pq.StringArray `db:"course_ids"`
	}{
		IDs: ids,
	}

	const q = `
	SELECT
		course_id, title, thumbnail_url
	FROM courses
	WHERE course_id = ANY(:course_ids)`

	var ss []Summary
	if err := database.NamedQuerySlice(ctx, db, q, in, &ss); err != nil {
		return nil, fmt.Errorf("selecting course summaries: %w", err)
	}

	for _, s := range ss {
		out[s.ID] = s
	}
	return out, nil
}
