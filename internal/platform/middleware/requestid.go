package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestIDHeader carries the request correlation id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID reuses an incoming X-Request-ID or generates one, stores it under
// "request_id" in the echo context and echoes it back on the response.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" || len(rid) > 128 {
				rid = uuid.New().String()
			}
			c.Set("request_id", rid)
			c.Response().Header().Set(RequestIDHeader, rid)
			return next(c)
		}
	}
}

func requestID(c echo.Context) string {
	rid, _ := c.Get("request_id").(string)
	return rid
}

// errorJSON writes the same {"message": ...} body echo uses for HTTPError,
// plus the request id so clients can quote it.
func errorJSON(c echo.Context, code int, msg string) error {
	if c.Response().Committed {
		return nil
	}
	body := map[string]interface{}{"message": msg}
	if rid := requestID(c); rid != "" {
		body["request_id"] = rid
	}
	return c.JSON(code, body)
}
