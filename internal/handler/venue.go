package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/middleware"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/service"
)

// VenueHandler serves /v1/venues.
type VenueHandler struct {
	svc *service.VenueService
}

func NewVenueHandler(svc *service.VenueService) *VenueHandler {
	if svc == nil {
		panic("nil service passed to NewVenueHandler")
	}
	return &VenueHandler{svc: svc}
}

// List handles GET /v1/venues.
func (h *VenueHandler) List(c echo.Context) error {
	venues, err := h.svc.List(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, venues)
}

// Get handles GET /v1/venues/:id.
func (h *VenueHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	v, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Create handles POST /v1/venues.
func (h *VenueHandler) Create(c echo.Context) error {
	var body service.VenueInput
	if err := c.Bind(&body); err != nil {
		return badBody(c)
	}
	v, err := h.svc.Create(c.Request().Context(), body)
	if err != nil {
		return respondError(c, err)
	}
	c.Logger().Infof("venue %d created by %s", v.ID, middleware.Subject(c))
	return c.JSON(http.StatusCreated, v)
}

// Update handles PATCH /v1/venues/:id.  Either field may be omitted.
func (h *VenueHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	var body struct {
		Owner      *string          `json:"owner"`
		NightlyFee *decimal.Decimal `json:"nightly_fee"`
	}
	if err := c.Bind(&body); err != nil {
		return badBody(c)
	}
	v, err := h.svc.Update(c.Request().Context(), id, body.Owner, body.NightlyFee)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Delete handles DELETE /v1/venues/:id.
func (h *VenueHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
