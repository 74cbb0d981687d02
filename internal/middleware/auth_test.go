package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const testSecret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestJWTAuthAndRole(t *testing.T) {
	e := echo.New()
	h := JWTAuth(testSecret)(RequireRole(RoleAdmin, RoleOperator)(func(c echo.Context) error {
		return c.String(http.StatusOK, Subject(c))
	}))
	valid := func(role string) string {
		return sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
			"sub": "ops@bunker", "role": role, "exp": time.Now().Add(time.Hour).Unix(),
		})
	}
	cases := []struct {
		name   string
		header string
		status int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "x", "role": RoleAdmin}), http.StatusUnauthorized},
		{"expired", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "x", "role": RoleAdmin, "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized},
		{"wrong algorithm", "Bearer " + sign(t, jwt.SigningMethodHS384, []byte(testSecret), jwt.MapClaims{"sub": "x", "role": RoleAdmin}), http.StatusUnauthorized},
		{"viewer", "Bearer " + valid(RoleViewer), http.StatusForbidden},
		{"operator", "Bearer " + valid(RoleOperator), http.StatusOK},
		{"admin", "Bearer " + valid(RoleAdmin), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			if err := h(e.NewContext(req, rec)); err != nil {
				t.Fatal(err)
			}
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body.String())
			}
			if tc.status == http.StatusOK && rec.Body.String() != "ops@bunker" {
				t.Fatalf("subject = %q", rec.Body.String())
			}
		})
	}
}
