package api

import (
	"fmt"
	"net/http"

	"github.com/bjo163/wablast/internal/domain"
	"github.com/bjo163/wablast/internal/webserver"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func registerDeviceRoutes() {
	webserver.ApiGET("/whatsapp/devices", listDevices)
	webserver.ApiGET("/whatsapp/status", getAggregateStatus)
	webserver.ApiPOST("/whatsapp/start", postStartDevice)
	webserver.ApiPOST("/whatsapp/logout", postLogoutDevice)
	webserver.ApiGET("/socket-test", getSocketTest)
}

type deviceView struct {
	DeviceName  string `json:"deviceName"`
	Status      string `json:"status"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// listDevices returns every known device with its live session status.
func listDevices(c echo.Context) error {
	recs, err := GetAppContext(c).DeviceRegistry().List()
	if err != nil {
		zap.L().Warn("api: list devices failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list devices", err.Error())
	}

	views := make([]deviceView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, deviceView{
			DeviceName:  rec.Name,
			Status:      rec.Status,
			PhoneNumber: rec.PhoneNumber,
		})
	}
	return ok(c, views)
}

// getAggregateStatus reports one status for the whole install, polled by
// older dashboard builds that predate named devices.
func getAggregateStatus(c echo.Context) error {
	status := domain.DeviceDisconnected
	if _, ok := GetAppContext(c).DeviceRegistry().FirstConnected(); ok {
		status = domain.DeviceConnected
	}
	return ok(c, map[string]interface{}{"status": status})
}

// getSocketTest confirms the realtime channel is up and reports how many
// stream clients are attached.
func getSocketTest(c echo.Context) error {
	return ok(c, map[string]interface{}{
		"message": "socket server aktif",
		"clients": GetAppContext(c).Hub().ClientCount(),
	})
}

type devicePayload struct {
	DeviceName string `json:"deviceName" validate:"required"`
}

// postStartDevice begins or resumes pairing for the named device. The QR
// code arrives over the event stream, not in this response.
func postStartDevice(c echo.Context) error {
	var payload devicePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "deviceName is required", err.Error())
	}

	if err := GetAppContext(c).DeviceRegistry().Start(c.Request().Context(), payload.DeviceName); err != nil {
		zap.L().Warn("api: start device failed", zap.String("device", payload.DeviceName), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "START_FAILED", "Failed to start device session", err.Error())
	}

	return ok(c, map[string]interface{}{
		"message": fmt.Sprintf("Inisialisasi perangkat %s dimulai", payload.DeviceName),
	})
}

// postLogoutDevice unlinks the device and destroys its session.
func postLogoutDevice(c echo.Context) error {
	var payload devicePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "deviceName is required", err.Error())
	}

	err := GetAppContext(c).DeviceRegistry().Logout(c.Request().Context(), payload.DeviceName)
	if err != nil {
		if _, notFound := err.(*domain.ValidationError); notFound {
			return fail(c, http.StatusNotFound, "DEVICE_NOT_FOUND", "Device not found", nil)
		}
		zap.L().Warn("api: logout device failed", zap.String("device", payload.DeviceName), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "LOGOUT_FAILED", "Failed to logout device", err.Error())
	}

	return ok(c, map[string]interface{}{
		"message": fmt.Sprintf("Perangkat %s berhasil logout", payload.DeviceName),
	})
}
