package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && claims.hasAnyRole(roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func studentMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if claims.IsStudent {
			return next(ctx)
		}
		return errHttpForbidden
	}
}

// objectMiddleware loads the object identified by the `:id` path param into the context ("object").
func objectMiddleware(load func(ctx echo.Context, id int) (interface{}, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := pathID(ctx)
			if err != nil {
				return errHttpNotFound
			}
			obj, err := load(ctx, id)
			if err != nil {
				return err
			}
			ctx.Set(contextObjectKey, obj)
			return next(ctx)
		}
	}
}
