package handler

import (
	"net/http"
	"time"

	"creatorchat-service/internal/middleware"
	"creatorchat-service/internal/model"
	"creatorchat-service/internal/store"
	"creatorchat-service/pkg/database"
	"creatorchat-service/pkg/logger"
	"creatorchat-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SubscriptionHandler serves the free-tier self-service entitlement
// flow. Paid subscriptions are created through checkout and end through
// processor webhooks only.
type SubscriptionHandler struct {
	store *store.Store
}

// NewSubscriptionHandler creates the handler.
func NewSubscriptionHandler(st *store.Store) *SubscriptionHandler {
	return &SubscriptionHandler{store: st}
}

// Subscribe grants a free entitlement to the caller for an org that has
// no price configured. Idempotent.
func (h *SubscriptionHandler) Subscribe(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordSubscriptionOperation("free_subscribe")

	uid, ok := middleware.AuthUID(c)
	if !ok {
		log.Error("Failed to get subject id from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	var req struct {
		OrgID string `json:"orgId"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse subscribe request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.OrgID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "orgId is required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var org model.Org
	if result := database.GetDB().First(&org, "id = ?", req.OrgID); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "org not found"})
	}

	if org.HasPaidTier() {
		// Paid orgs go through checkout; the webhook grants access.
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "subscription requires checkout"})
	}

	if err := h.store.AddSubscription(c.Request().Context(), model.Subscription{
		UserID: uid,
		OrgID:  req.OrgID,
	}); err != nil {
		log.Error("Failed to add free subscription", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "subscribe failed"})
	}

	log.Info("Free subscription granted",
		zap.String("user_id", uid),
		zap.String("org_id", req.OrgID))
	return c.JSON(http.StatusCreated, echo.Map{"subscribed": true, "org_id": req.OrgID})
}

// Unsubscribe removes a free entitlement. Paid subscriptions must be
// canceled with the processor; their removal arrives via webhook.
func (h *SubscriptionHandler) Unsubscribe(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordSubscriptionOperation("free_unsubscribe")

	uid, ok := middleware.AuthUID(c)
	if !ok {
		log.Error("Failed to get subject id from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	orgID := c.Param("orgId")
	if orgID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "orgId is required"})
	}

	sub, err := h.store.FindSubscription(c.Request().Context(), uid, orgID)
	if err != nil {
		log.Error("Failed to look up subscription", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "unsubscribe failed"})
	}
	if sub != nil && sub.IsPaid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "paid subscriptions are canceled through the billing portal"})
	}

	if err := h.store.RemoveSubscription(c.Request().Context(), uid, orgID); err != nil {
		log.Error("Failed to remove subscription", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "unsubscribe failed"})
	}

	log.Info("Free subscription removed",
		zap.String("user_id", uid),
		zap.String("org_id", orgID))
	return c.JSON(http.StatusOK, echo.Map{"subscribed": false, "org_id": orgID})
}
