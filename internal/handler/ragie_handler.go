package handler

import (
	"net/http"

	"creatorchat-service/internal/middleware"
	"creatorchat-service/internal/ragie"
	"creatorchat-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RagieHandler serves the content-source connection flow: starting the
// Google Drive OAuth hand-off and relaying the provider's callback back
// to the dashboard.
type RagieHandler struct {
	client *ragie.Client
	appURL string
}

// NewRagieHandler creates the handler.
func NewRagieHandler(client *ragie.Client, appURL string) *RagieHandler {
	return &RagieHandler{client: client, appURL: appURL}
}

// InitConnection starts the OAuth hand-off for the caller's own org and
// returns the authorization URL.
func (h *RagieHandler) InitConnection(c echo.Context) error {
	log := logger.FromContext(c)

	uid, ok := middleware.AuthUID(c)
	if !ok {
		log.Error("Failed to get subject id from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	var req struct {
		OrgID string `json:"orgId"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse connection request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.OrgID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "orgId is required"})
	}
	// Only the org owner can connect a content source.
	if req.OrgID != uid {
		log.Warn("Non-owner connection attempt",
			zap.String("org_id", req.OrgID),
			zap.String("user_id", uid))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "Forbidden"})
	}

	redirectURI := h.appURL + "/api/ragie/callback"
	authURL, err := h.client.InitGoogleDriveConnection(c.Request().Context(), req.OrgID, redirectURI)
	if err != nil {
		log.Error("Failed to initialize content-source connection", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to initialize connection"})
	}

	return c.JSON(http.StatusOK, echo.Map{"url": authURL})
}

// Callback relays the provider's redirect to the dashboard. The browser
// carries the connection id forward; saving it onto the org happens via
// the org update endpoint.
func (h *RagieHandler) Callback(c echo.Context) error {
	log := logger.FromContext(c)

	if errParam := c.QueryParam("error"); errParam != "" {
		log.Warn("Content-source connection failed", zap.String("error", errParam))
		return c.Redirect(http.StatusFound, h.appURL+"/dashboard?error=connection_failed")
	}

	connectionID := c.QueryParam("connection_id")
	if connectionID == "" {
		return c.Redirect(http.StatusFound, h.appURL+"/dashboard?error=missing_connection_id")
	}

	return c.Redirect(http.StatusFound, h.appURL+"/dashboard?connection_id="+connectionID)
}
