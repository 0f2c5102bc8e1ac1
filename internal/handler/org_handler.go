package handler

import (
	"net/http"
	"time"

	"creatorchat-service/internal/middleware"
	"creatorchat-service/internal/model"
	"creatorchat-service/pkg/database"
	"creatorchat-service/pkg/logger"
	"creatorchat-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm/clause"
)

// CreateOrg bootstraps a creator: an org keyed by the caller's subject
// id plus a user record carrying the creator role. Re-posting is safe;
// an existing org is returned unchanged.
func CreateOrg(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOrgOperation("create")

	uid, ok := middleware.AuthUID(c)
	if !ok {
		log.Error("Failed to get subject id from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse org creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	var existing model.Org
	if result := database.GetDB().First(&existing, "id = ?", uid); result.Error == nil {
		return c.JSON(http.StatusOK, echo.Map{"org": existing})
	}

	org := model.Org{
		ID:   uid,
		Name: req.Name,
	}
	if result := database.GetDB().Create(&org); result.Error != nil {
		log.Error("Failed to create org", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "org creation failed"})
	}

	// The owning user record: created if absent, tagged as creator
	// either way.
	user := model.User{
		ID:         uid,
		Email:      middleware.AuthEmail(c),
		OwnedOrgID: &org.ID,
	}
	user.AddRole(model.RoleCreator)
	if result := database.GetDB().Clauses(clause.OnConflict{DoNothing: true}).Create(&user); result.Error != nil {
		log.Error("Failed to create owning user record", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "org creation failed"})
	}

	log.Info("Org created", zap.String("org_id", org.ID), zap.String("name", org.Name))
	return c.JSON(http.StatusCreated, echo.Map{"org": org})
}

// ListOrgs returns the creator directory for the select-creator flow.
func ListOrgs(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOrgOperation("list")

	defer prometheus.TrackDBOperation("query")(time.Now())
	var orgs []model.Org
	if result := database.GetDB().Order("created_at").Find(&orgs); result.Error != nil {
		log.Error("Failed to list orgs", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list orgs"})
	}

	return c.JSON(http.StatusOK, echo.Map{"orgs": orgs})
}

// GetOrg retrieves one org.
func GetOrg(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOrgOperation("access")

	defer prometheus.TrackDBOperation("query")(time.Now())
	var org model.Org
	if result := database.GetDB().First(&org, "id = ?", c.Param("id")); result.Error != nil {
		log.Warn("Org not found", zap.String("org_id", c.Param("id")))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "org not found"})
	}

	return c.JSON(http.StatusOK, org)
}

// UpdateOrg lets the owner rename the org or save the retrieval
// connection handle after the content-source OAuth callback.
func UpdateOrg(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOrgOperation("update")

	uid, ok := middleware.AuthUID(c)
	if !ok {
		log.Error("Failed to get subject id from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	orgID := c.Param("id")
	if orgID != uid {
		log.Warn("Non-owner org update attempt",
			zap.String("org_id", orgID),
			zap.String("user_id", uid))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "Forbidden"})
	}

	var req struct {
		Name              *string `json:"name,omitempty"`
		RagieConnectionID *string `json:"ragie_connection_id,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse org update request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	var org model.Org
	if result := database.GetDB().First(&org, "id = ?", orgID); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "org not found"})
	}

	updates := map[string]interface{}{}
	if req.Name != nil && *req.Name != "" {
		updates["name"] = *req.Name
	}
	if req.RagieConnectionID != nil {
		updates["ragie_connection_id"] = *req.RagieConnectionID
	}
	if len(updates) == 0 {
		return c.JSON(http.StatusOK, org)
	}

	if result := database.GetDB().Model(&org).Updates(updates); result.Error != nil {
		log.Error("Failed to update org", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "org update failed"})
	}

	log.Info("Org updated", zap.String("org_id", org.ID))
	return c.JSON(http.StatusOK, org)
}
