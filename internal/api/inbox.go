package api

import (
	"net/http"
	"time"

	"github.com/bjo163/wablast/internal/domain"
	"github.com/bjo163/wablast/internal/webserver"
	"github.com/bjo163/wablast/pkg/common"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func registerInboxRoutes() {
	webserver.ApiGET("/whatsapp/inbox-messages", listInboxMessages)
	webserver.ApiPUT("/whatsapp/inbox-messages/:id/read", putInboxMessageRead)
}

// noiseSenders are non-personal sources hidden from the inbox.
var noiseSenders = []string{"@newsletter", "@broadcast", "@channel"}

func listInboxMessages(c echo.Context) error {
	q := GetDB(c).Model(&domain.WaInboxMessage{})
	for _, noise := range noiseSenders {
		q = q.Where("sender_jid not like ?", "%"+noise+"%")
	}
	if status := c.QueryParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if dev := c.QueryParam("deviceName"); dev != "" {
		q = q.Where("device_name = ?", dev)
	}

	var msgs []domain.WaInboxMessage
	if err := q.Order("timestamp desc").Limit(500).Find(&msgs).Error; err != nil {
		zap.L().Warn("api: list inbox failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list inbox messages", err.Error())
	}
	return ok(c, msgs)
}

// putInboxMessageRead marks one inbox message as read, keyed by id.
func putInboxMessageRead(c echo.Context) error {
	id := common.ParseInt64(c.Param("id"), 0)
	if id == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid inbox message id", nil)
	}

	res := GetDB(c).Model(&domain.WaInboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": domain.InboxRead, "updated_at": time.Now()})
	if res.Error != nil {
		zap.L().Warn("api: mark inbox read failed", zap.Int64("id", id), zap.Error(res.Error))
		return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update inbox message", res.Error.Error())
	}
	if res.RowsAffected == 0 {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Inbox message not found", nil)
	}
	return ok(c, map[string]interface{}{"message": "Pesan ditandai sudah dibaca"})
}
