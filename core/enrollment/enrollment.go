package enrollment

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lmshub/coursepay/database"
)

type Enrollment struct {
	UserID     string    `json:"userId" db:"user_id"`
	CourseID   string    `json:"courseId" db:"course_id"`
	EnrolledAt time.Time `json:"enrolledAt" db:"enrolled_at"`
}

// Ensure grants the user access to the course. It reports whether a new
// enrollment was created; an existing one is left untouched.
func Ensure(ctx context.Context, db sqlx.ExtContext, e Enrollment) (bool, error) {
	const q = `
	INSERT INTO enrollments
		(user_id, course_id, enrolled_at)
	VALUES
		(:user_id, :course_id, :enrolled_at)
	ON CONFLICT ON CONSTRAINT enrollments_user_course_key DO NOTHING`

	n, err := database.NamedExecCount(ctx, db, q, e)
	if err != nil {
		return false, fmt.Errorf("inserting enrollment of user[%s] in course[%s]: %w", e.UserID, e.CourseID, err)
	}
	return n == 1, nil
}

// ListByUser returns the user's enrollments, newest first.
func ListByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Enrollment, error) {
	in := struct {
		UserID string `db:"user_id"`
	}{
		UserID: userID,
	}

	const q = `
	SELECT
		user_id, course_id, enrolled_at
	FROM enrollments
	WHERE user_id = :user_id
	ORDER BY enrolled_at DESC, course_id`

	var es []Enrollment
	if err := database.NamedQuerySlice(ctx, db, q, in, &es); err != nil {
		return nil, fmt.Errorf("selecting enrollments: %w", err)
	}
	return es, nil
}
