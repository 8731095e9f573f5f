package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"hls-proxy-go/internal/client"
	"hls-proxy-go/internal/middleware"
	"hls-proxy-go/internal/model"
	"hls-proxy-go/internal/service"
)

// fetchFailed is the error code in 502 bodies.
const fetchFailed = "fetch_failed"

// ProxyHandler forwards requests under the configured prefix to the upstream base URL.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle proxies the request to the upstream and streams the response back.
func (h *ProxyHandler) Handle(c echo.Context) error {
	pr := newProxyRequest(c)
	out := h.service.Prepare(pr)
	c.Set(middleware.TargetKey, out.URL)

	if pr.Debug() {
		return c.JSONPretty(http.StatusOK, h.service.Preview(out), "  ")
	}

	resp, err := h.service.Forward(pr.Ctx, out)
	if err != nil {
		h.logger.Error("proxy error",
			"err", err,
			"kind", client.Classify(err),
			"dest", out.URL,
		)
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error":   fetchFailed,
			"message": err.Error(),
			"dest":    out.URL,
		})
	}

	return writeResponse(c, h.logger, resp)
}

// newProxyRequest captures the parts of the inbound request the services need.
// Path keeps its percent-encoding so subpaths are forwarded byte for byte.
func newProxyRequest(c echo.Context) *model.ProxyRequest {
	req := c.Request()
	return &model.ProxyRequest{
		Ctx:      req.Context(),
		Path:     req.URL.EscapedPath(),
		RawQuery: req.URL.RawQuery,
		Query:    req.URL.Query(),
		Header:   req.Header,
		Origin:   c.Scheme() + "://" + req.Host,
	}
}

// writeResponse copies upstream headers, reapplies CORS over them and
// streams the body. HEAD requests get headers and status only.
func writeResponse(c echo.Context, logger *slog.Logger, resp *model.ProxyResponse) error {
	defer func() { _ = resp.Body.Close() }()

	dst := c.Response().Header()
	for key, vals := range resp.Header {
		for _, v := range vals {
			dst.Add(key, v)
		}
	}
	middleware.SetCORSHeaders(dst)

	c.Response().WriteHeader(resp.StatusCode)
	logger.Debug("relaying response",
		"status", resp.StatusCode,
		"rewritten", resp.Rewritten,
		"path", c.Request().URL.Path,
	)
	if c.Request().Method == http.MethodHead {
		return nil
	}

	// The status is already sent, so a mid-stream failure (usually a client
	// disconnect) can only truncate the body.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		logger.Warn("streaming response body",
			"err", err,
			"path", c.Request().URL.Path,
		)
	}

	return nil
}
