// Package webserver hosts the dashboard API and the realtime event stream.
package webserver

import (
	"fmt"
	"net/http"

	"github.com/bjo163/wablast/internal/app"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const (
	ContextAppKey = "wablast_app"
)

type apiRoute struct {
	method  string
	path    string
	handler echo.HandlerFunc
}

var apiRoutes []apiRoute

func ApiGET(path string, h echo.HandlerFunc)    { addRoute(http.MethodGet, path, h) }
func ApiPOST(path string, h echo.HandlerFunc)   { addRoute(http.MethodPost, path, h) }
func ApiPUT(path string, h echo.HandlerFunc)    { addRoute(http.MethodPut, path, h) }
func ApiDELETE(path string, h echo.HandlerFunc) { addRoute(http.MethodDelete, path, h) }

func addRoute(method, path string, h echo.HandlerFunc) {
	apiRoutes = append(apiRoutes, apiRoute{method: method, path: path, handler: h})
}

type payloadValidator struct {
	validate *validator.Validate
}

func (v *payloadValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

type WebServer struct {
	root   *echo.Echo
	appCtx app.AppContext
}

func NewWebServer(appCtx app.AppContext) *WebServer {
	s := &WebServer{appCtx: appCtx}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &payloadValidator{validate: validator.New()}
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
	}))

	// every handler reaches services through the app context
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(ContextAppKey, appCtx)
			return next(c)
		}
	})

	api := e.Group("/api")
	for _, r := range apiRoutes {
		api.Add(r.method, r.path, r.handler)
	}

	// uploaded media referenced by /uploads/<id> paths
	e.Static("/uploads", appCtx.Config().GetImageDir())

	// realtime event stream consumed by the dashboard
	e.GET("/ws", func(c echo.Context) error {
		appCtx.Hub().HandleStream(c.Response(), c.Request())
		return nil
	})

	s.root = e
	return s
}

// Start blocks serving HTTP until the listener fails or is shut down.
func (s *WebServer) Start() error {
	cfg := s.appCtx.Config()
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	zap.S().Infof("Starting wablast API server %s", addr)
	return s.root.Start(addr)
}

// Echo exposes the router for tests.
func (s *WebServer) Echo() *echo.Echo {
	return s.root
}
