// Package api implements the dashboard REST surface.
package api

import (
	"net/http"

	"github.com/bjo163/wablast/internal/app"
	"github.com/bjo163/wablast/internal/webserver"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// InitRouter registers every API route; call once before the webserver is
// built.
func InitRouter() {
	registerDeviceRoutes()
	registerMessageRoutes()
	registerInboxRoutes()
	registerBlastRoutes()
	registerValidateRoutes()
	registerTemplateRoutes()
	registerImageRoutes()
}

// GetAppContext pulls the application context injected by the webserver.
func GetAppContext(c echo.Context) app.AppContext {
	return c.Get(webserver.ContextAppKey).(app.AppContext)
}

// GetDB returns the request scoped database handle.
func GetDB(c echo.Context) *gorm.DB {
	return GetAppContext(c).DB()
}

func ok(c echo.Context, v interface{}) error {
	return c.JSON(http.StatusOK, v)
}

// fail renders the error envelope the dashboard reads
// (err.response.data.error / .details).
func fail(c echo.Context, status int, code, message string, details interface{}) error {
	body := map[string]interface{}{
		"error": message,
		"code":  code,
	}
	if details != nil {
		body["details"] = details
	}
	return c.JSON(status, body)
}
