package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cutwatch-worker-go/internal/logging"
	"cutwatch-worker-go/internal/models"
)

// Registry resolves and registers Telegram handles
type Registry interface {
	Resolve(ctx context.Context, handle string) (string, error)
	Register(ctx context.Context, handle string) (string, error)
}

type RegistrationHandler struct {
	registry Registry
}

func NewRegistrationHandler(registry Registry) *RegistrationHandler {
	return &RegistrationHandler{registry: registry}
}

type RegisterRequest struct {
	Handle string `json:"handle" binding:"required" example:"alice"`
}

type RegistrationResponse struct {
	Handle          string `json:"handle" example:"alice"`
	ChannelIdentity string `json:"channel_identity" example:"123456789"`
}

// Register godoc
// @Summary Register a Telegram handle
// @Description Runs the registration handshake with the bot. The user must have sent the bot a message first.
// @Tags registrations
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Handle to register"
// @Success 200 {object} RegistrationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/registrations [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	if h.registry == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "telegram is not configured", Code: "not_configured"})
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.Trim(strings.TrimSpace(req.Handle), "@") == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "handle is required", Code: "invalid_request"})
		return
	}

	identity, err := h.registry.Register(c.Request.Context(), req.Handle)
	if err != nil {
		logging.Warn(c).Err(err).Str("handle", req.Handle).Msg("Registration failed")
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error(), Code: "registration_failed"})
		return
	}

	logging.Info(c).Str("handle", req.Handle).Msg("Handle registered")
	c.JSON(http.StatusOK, RegistrationResponse{Handle: req.Handle, ChannelIdentity: identity})
}

// Resolve godoc
// @Summary Resolve a Telegram handle
// @Tags registrations
// @Produce json
// @Param handle path string true "Telegram handle"
// @Success 200 {object} RegistrationResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/registrations/{handle} [get]
func (h *RegistrationHandler) Resolve(c *gin.Context) {
	if h.registry == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "telegram is not configured", Code: "not_configured"})
		return
	}

	handle := c.Param("handle")
	identity, err := h.registry.Resolve(c.Request.Context(), handle)
	if errors.Is(err, models.ErrNotRegistered) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "recipient_not_registered"})
		return
	}
	if err != nil {
		logging.Error(c).Err(err).Str("handle", handle).Msg("Failed to resolve handle")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to resolve handle"})
		return
	}

	c.JSON(http.StatusOK, RegistrationResponse{Handle: handle, ChannelIdentity: identity})
}
