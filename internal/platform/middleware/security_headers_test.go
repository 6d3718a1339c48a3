package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSecurityHeaders(t *testing.T) {
	for _, hsts := range []bool{false, true} {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/extractions/abc", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		h := SecurityHeaders(hsts)(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
		if err := h(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, kv := range apiHeaders {
			if got := rec.Header().Get(kv[0]); got != kv[1] {
				t.Errorf("expected %s %q, got %q", kv[0], kv[1], got)
			}
		}
		if got := rec.Header().Get("Strict-Transport-Security"); (got != "") != hsts {
			t.Errorf("hsts=%v: unexpected Strict-Transport-Security %q", hsts, got)
		}
	}
}
