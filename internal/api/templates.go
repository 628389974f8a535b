package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/bjo163/wablast/internal/domain"
	"github.com/bjo163/wablast/internal/webserver"
	"github.com/bjo163/wablast/pkg/common"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func registerTemplateRoutes() {
	// both prefixes are in active use by the dashboard
	for _, prefix := range []string{"/whatsapp/templates", "/templates"} {
		webserver.ApiGET(prefix, listTemplates)
		webserver.ApiPOST(prefix, postCreateTemplate)
		webserver.ApiPUT(prefix+"/:id", putUpdateTemplate)
		webserver.ApiDELETE(prefix+"/:name", deleteTemplate)
	}
}

func listTemplates(c echo.Context) error {
	var tpls []domain.WaTemplate
	if err := GetDB(c).Order("name asc").Find(&tpls).Error; err != nil {
		zap.L().Warn("api: list templates failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list templates", err.Error())
	}
	return ok(c, tpls)
}

type templatePayload struct {
	Name    string `json:"name" validate:"required"`
	Content string `json:"content" validate:"required"`
}

func postCreateTemplate(c echo.Context) error {
	var payload templatePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "name and content are required", err.Error())
	}

	db := GetDB(c)
	var count int64
	db.Model(&domain.WaTemplate{}).Where("name = ?", payload.Name).Count(&count)
	if count > 0 {
		return fail(c, http.StatusConflict, "DUPLICATE_NAME", "Template name already exists", nil)
	}

	tpl := domain.WaTemplate{
		ID:      common.UUIDint64(),
		Name:    payload.Name,
		Content: payload.Content,
	}
	if err := db.Create(&tpl).Error; err != nil {
		zap.L().Warn("api: create template failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create template", err.Error())
	}
	return ok(c, tpl)
}

func putUpdateTemplate(c echo.Context) error {
	id := common.ParseInt64(c.Param("id"), 0)
	if id == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid template id", nil)
	}

	var payload templatePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "name and content are required", err.Error())
	}

	db := GetDB(c)
	var tpl domain.WaTemplate
	if err := db.First(&tpl, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, http.StatusNotFound, "NOT_FOUND", "Template not found", nil)
		}
		return fail(c, http.StatusInternalServerError, "LOOKUP_FAILED", "Failed to load template", err.Error())
	}

	// renaming onto another template's name is rejected
	var count int64
	db.Model(&domain.WaTemplate{}).Where("name = ? and id <> ?", payload.Name, id).Count(&count)
	if count > 0 {
		return fail(c, http.StatusConflict, "DUPLICATE_NAME", "Template name already exists", nil)
	}

	err := db.Model(&domain.WaTemplate{}).Where("id = ?", id).Updates(map[string]interface{}{
		"name":       payload.Name,
		"content":    payload.Content,
		"updated_at": time.Now(),
	}).Error
	if err != nil {
		zap.L().Warn("api: update template failed", zap.Int64("id", id), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update template", err.Error())
	}
	return ok(c, map[string]interface{}{"message": "Template diperbarui"})
}

func deleteTemplate(c echo.Context) error {
	name := c.Param("name")
	if name == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "name required", nil)
	}

	res := GetDB(c).Where("name = ?", name).Delete(&domain.WaTemplate{})
	if res.Error != nil {
		zap.L().Warn("api: delete template failed", zap.String("name", name), zap.Error(res.Error))
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete template", res.Error.Error())
	}
	if res.RowsAffected == 0 {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Template not found", nil)
	}
	return ok(c, map[string]interface{}{"message": "Template dihapus"})
}
