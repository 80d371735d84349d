package echoapi

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// staffMiddleware restricts an endpoint to admins and teachers.
func staffMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin || claims.IsTeacher {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// webhookAuthMiddleware checks the provider's shared verification token.
func webhookAuthMiddleware(conf *core.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			token := ctx.Request().Header.Get(echo.HeaderAuthorization)
			if conf.Provider.WebhookToken == "" ||
				subtle.ConstantTimeCompare([]byte(token), []byte(conf.Provider.WebhookToken)) != 1 {
				return errUnauthorized
			}
			return next(ctx)
		}
	}
}
