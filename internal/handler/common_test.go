package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/repository"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/testutil"
)

func TestRespondError(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{repository.Validation("date is required"), http.StatusBadRequest, "date is required"},
		{repository.NotFound("selected venue does not exist"), http.StatusNotFound, "selected venue does not exist"},
		{repository.Conflict("a session already exists for this date", errors.New("unique")), http.StatusConflict, "a session already exists for this date"},
		{fmt.Errorf("create: %w", repository.Referential("selected venue no longer exists", nil)), http.StatusConflict, "selected venue no longer exists"},
		{errors.New("connection reset by peer"), http.StatusInternalServerError, "internal error"},
	}
	e := echo.New()
	e.Logger = testutil.QuietLogger()
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodPost, "/v1/sessions", nil), rec)
		if err := respondError(c, tc.err); err != nil {
			t.Fatal(err)
		}
		if rec.Code != tc.status || !strings.Contains(rec.Body.String(), tc.message) {
			t.Fatalf("%v: got %d %s, want %d %q", tc.err, rec.Code, rec.Body.String(), tc.status, tc.message)
		}
	}
}

func TestParseID(t *testing.T) {
	e := echo.New()
	for raw, want := range map[string]bool{"7": true, "0": false, "-3": false, "x": false, "": false} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(raw)
		if _, ok := parseID(c, "id"); ok != want {
			t.Fatalf("parseID(%q) ok = %v, want %v", raw, ok, want)
		}
	}
}
