package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// parentMiddleware lets through active parents and admins.
func parentMiddleware(auth *authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if !(claims.IsParent || claims.IsAdmin) {
				return errHttpForbidden
			}

			usr, err := auth.contextUser(ctx, claims)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}
			return next(ctx)
		}
	}
}
