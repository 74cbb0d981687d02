// Package handler exposes the ledger over HTTP.  Handlers are thin: they
// bind and parse requests, call a service and map error kinds to status
// codes.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/repository"
)

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func badID(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
}

// respondError maps repository error kinds onto HTTP statuses.  Domain
// errors carry messages meant for the caller; anything else is logged and
// hidden behind a generic message.
func respondError(c echo.Context, err error) error {
	var domainErr *repository.Error
	if errors.As(err, &domainErr) {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, repository.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, repository.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, repository.ErrConflict), errors.Is(err, repository.ErrReferential):
			status = http.StatusConflict
		}
		return c.JSON(status, echo.Map{"error": domainErr.Message})
	}
	c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
