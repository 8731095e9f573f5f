package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"hls-proxy-go/internal/client"
	"hls-proxy-go/internal/middleware"
	"hls-proxy-go/internal/service"
	"hls-proxy-go/internal/target"
)

// PlaylistHandler serves the M3U8 proxy endpoint.
type PlaylistHandler struct {
	service *service.PlaylistService
	logger  *slog.Logger
}

// NewPlaylistHandler creates a PlaylistHandler.
func NewPlaylistHandler(svc *service.PlaylistService, logger *slog.Logger) *PlaylistHandler {
	return &PlaylistHandler{
		service: svc,
		logger:  logger.With("component", "playlist_handler"),
	}
}

// Handle fetches the url query parameter and returns it, rewriting HLS
// playlists so every reference routes back through this endpoint.
func (h *PlaylistHandler) Handle(c echo.Context) error {
	pr := newProxyRequest(c)

	out, err := h.service.Prepare(pr)
	if err != nil {
		return c.String(http.StatusBadRequest, badRequestText(err))
	}
	c.Set(middleware.TargetKey, out.URL)

	if pr.Debug() {
		return c.JSONPretty(http.StatusOK, h.service.Preview(out), "  ")
	}

	resp, err := h.service.Forward(pr.Ctx, out)
	if err != nil {
		h.logger.Error("playlist proxy error",
			"err", err,
			"kind", client.Classify(err),
			"target", out.URL,
		)
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error":   fetchFailed,
			"message": err.Error(),
			"target":  out.URL,
		})
	}

	return writeResponse(c, h.logger, resp)
}

func badRequestText(err error) string {
	switch {
	case errors.Is(err, service.ErrMissingURL):
		return "Missing url"
	case errors.Is(err, target.ErrUnsupportedProtocol):
		return "Unsupported protocol"
	default:
		return "Invalid url"
	}
}
