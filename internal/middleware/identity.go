package middleware

import "github.com/labstack/echo/v4"

// Subject returns the authenticated caller, or "anonymous" on routes that
// do not run JWTAuth.
func Subject(c echo.Context) string {
	if s, ok := c.Get(ContextSubject).(string); ok && s != "" {
		return s
	}
	return "anonymous"
}
