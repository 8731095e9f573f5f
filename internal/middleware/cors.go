package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// corsHeaders are applied to every response, including errors and preflight.
var corsHeaders = [][2]string{
	{"Access-Control-Allow-Origin", "*"},
	{"Access-Control-Allow-Methods", "GET,HEAD,OPTIONS"},
	{"Access-Control-Allow-Headers", "*"},
	{"Access-Control-Max-Age", "86400"},
}

// SetCORSHeaders sets the permissive CORS headers on h, replacing any
// existing values.
func SetCORSHeaders(h http.Header) {
	for _, kv := range corsHeaders {
		h.Set(kv[0], kv[1])
	}
}

// CORS returns an Echo middleware that adds CORS headers to every response
// and answers OPTIONS preflight requests with 204 without calling the handler.
func CORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			SetCORSHeaders(c.Response().Header())

			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}
	}
}
