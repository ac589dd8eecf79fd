package apiv1

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// NewTokenAuthMiddleware requires "Authorization: Bearer <token>". An empty
// token disables the check.
func NewTokenAuthMiddleware(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token == "" {
				return next(c)
			}

			header := c.Request().Header.Get("Authorization")
			got, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				log.Debug().
					Str("path", c.Path()).
					Bool("token_present", header != "").
					Msg("token validation failed")
				return ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
			}
			return next(c)
		}
	}
}
