// Package middleware provides Echo middleware for logging, metrics and CORS.
package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
)

// TargetKey is the echo.Context key under which handlers store the resolved
// upstream URL so it appears in the access log.
const TargetKey = "proxy.target"

// RequestLogger returns an Echo middleware that logs each request with slog.
// Responses with a 5xx status are logged at warn level.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			level := slog.LevelInfo
			if res.Status >= 500 {
				level = slog.LevelWarn
			}

			attrs := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"status", res.Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", res.Header().Get(echo.HeaderXRequestID),
				"remote_ip", c.RealIP(),
				"bytes_out", res.Size,
			}
			if t, ok := c.Get(TargetKey).(string); ok && t != "" {
				attrs = append(attrs, "target", t)
			}

			logger.Log(context.Background(), level, "request", attrs...)

			return err
		}
	}
}
