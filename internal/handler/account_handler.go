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
	"gorm.io/gorm/clause"
)

// CreateAccount bootstraps a fan account for the verified subject.
// Idempotent: re-posting returns the existing record.
func CreateAccount(c echo.Context) error {
	log := logger.FromContext(c)

	uid, ok := middleware.AuthUID(c)
	if !ok {
		log.Error("Failed to get subject id from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	user := model.User{
		ID:    uid,
		Email: middleware.AuthEmail(c),
	}
	user.AddRole(model.RoleUser)

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Clauses(clause.OnConflict{DoNothing: true}).Create(&user); result.Error != nil {
		log.Error("Failed to create user record", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "account creation failed"})
	}

	var saved model.User
	if result := database.GetDB().First(&saved, "id = ?", uid); result.Error != nil {
		log.Error("Failed to load user record", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "account creation failed"})
	}

	log.Info("Account ready", zap.String("user_id", saved.ID))
	return c.JSON(http.StatusCreated, echo.Map{"user": saved})
}

// MeHandler serves the caller's profile plus entitlements.
type MeHandler struct {
	store *store.Store
}

// NewMeHandler creates the profile handler.
func NewMeHandler(st *store.Store) *MeHandler {
	return &MeHandler{store: st}
}

// GetMe returns the account record and the org ids it may chat against.
func (h *MeHandler) GetMe(c echo.Context) error {
	log := logger.FromContext(c)

	uid, ok := middleware.AuthUID(c)
	if !ok {
		log.Error("Failed to get subject id from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	if result := database.GetDB().First(&user, "id = ?", uid); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
	}

	orgIDs, err := h.store.ListSubscribedOrgIDs(c.Request().Context(), uid)
	if err != nil {
		log.Error("Failed to list subscribed orgs", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load subscriptions"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user":               user,
		"subscribed_org_ids": orgIDs,
	})
}
