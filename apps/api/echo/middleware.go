package echoapi

import (
	"database/sql"
	"database/sql/driver"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/user"
)

// userMiddleware loads the token's user into the context. Unknown users are unauthorized and
// deactivated ones forbidden.
func userMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
			if err != nil {
				switch cause := errors.Cause(err); cause {
				case user.ErrNotFound:
					return errUnauthorized
				case sql.ErrConnDone, driver.ErrBadConn:
					// unrecoverable without a restart
					return core.NewShutdownError("database connection lost: " + cause.Error())
				}
				return errors.Wrap(err, "finding user by ID")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}
			ctx.Set(contextUserKey, usr)
			return next(ctx)
		}
	}
}

// staffMiddleware restricts a route to admins and managers.
func staffMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.User.CanViewAll)
}

func roleMiddleware(allowed func(user.User) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			if !allowed(usr) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}
