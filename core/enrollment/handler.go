package enrollment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/lmshub/coursepay/api/web"
	"github.com/lmshub/coursepay/api/weberr"
	"github.com/lmshub/coursepay/core/claims"
)

// HandleListMine lists the enrollments of the authenticated user.
func HandleListMine(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		es, err := ListByUser(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("listing enrollments of user[%s]: %w", clm.UserID, err)
		}

		if es == nil {
			es = []Enrollment{}
		}

		resp := struct {
			Enrollments []Enrollment `json:"enrollments"`
		}{
			Enrollments: es,
		}

		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}
