package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/middleware"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/model"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/repository"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/service"
)

// SessionHandler serves /v1/sessions and /v1/line-items.
type SessionHandler struct {
	svc *service.SessionService
}

func NewSessionHandler(svc *service.SessionService) *SessionHandler {
	if svc == nil {
		panic("nil service passed to NewSessionHandler")
	}
	return &SessionHandler{svc: svc}
}

// List handles GET /v1/sessions?venue_id=&from=&to=&limit=.
func (h *SessionHandler) List(c echo.Context) error {
	var f repository.SessionFilter
	if v := c.QueryParam("venue_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue_id"})
		}
		f.VenueID = id
	}
	for _, p := range []struct {
		name string
		dst  *model.Date
	}{{"from", &f.From}, {"to", &f.To}} {
		if v := c.QueryParam(p.name); v != "" {
			d, err := model.ParseDate(v)
			if err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid " + p.name + " date"})
			}
			*p.dst = d
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be between 1 and 1000"})
		}
		f.Limit = n
	}
	sessions, err := h.svc.ListSessions(c.Request().Context(), f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sessions)
}

// Get handles GET /v1/sessions/:id and includes the line items.
func (h *SessionHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	detail, err := h.svc.GetSession(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// Create handles POST /v1/sessions.  The response holds the session and
// the rent line item written with it.
func (h *SessionHandler) Create(c echo.Context) error {
	var body service.CreateSessionInput
	if err := c.Bind(&body); err != nil {
		return badBody(c)
	}
	session, rent, err := h.svc.CreateSession(c.Request().Context(), body)
	if err != nil {
		return respondError(c, err)
	}
	c.Logger().Infof("session %d created by %s", session.ID, middleware.Subject(c))
	return c.JSON(http.StatusCreated, echo.Map{"session": session, "rent": rent})
}

// Update handles PATCH /v1/sessions/:id.
func (h *SessionHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	var body service.UpdateSessionInput
	if err := c.Bind(&body); err != nil {
		return badBody(c)
	}
	session, err := h.svc.UpdateSession(c.Request().Context(), id, body)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

// Delete handles DELETE /v1/sessions/:id.
func (h *SessionHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	if err := h.svc.DeleteSession(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	c.Logger().Infof("session %d deleted by %s", id, middleware.Subject(c))
	return c.NoContent(http.StatusNoContent)
}

// AddLineItem handles POST /v1/sessions/:id/line-items.
func (h *SessionHandler) AddLineItem(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	var body service.AddLineItemInput
	if err := c.Bind(&body); err != nil {
		return badBody(c)
	}
	li, err := h.svc.AddLineItem(c.Request().Context(), id, body)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, li)
}

// GetLineItem handles GET /v1/line-items/:id.
func (h *SessionHandler) GetLineItem(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	li, err := h.svc.GetLineItem(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, li)
}

// DeleteLineItem handles DELETE /v1/line-items/:id.
func (h *SessionHandler) DeleteLineItem(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c)
	}
	if err := h.svc.DeleteLineItem(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
