package middleware

import "github.com/labstack/echo/v4"

// SecurityHeaders adds common security headers to responses.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Response().Header()
			header.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
			header.Set("X-Content-Type-Options", "nosniff")
			header.Set("X-Frame-Options", "DENY")

			return next(c)
		}
	}
}
