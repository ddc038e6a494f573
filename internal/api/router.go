package api

import (
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/splitget/splitget/internal/api/controllers"
	"github.com/splitget/splitget/internal/app"
	"github.com/splitget/splitget/internal/engine"
)

func RegisterRoutes(e *echo.Echo, appCtx *app.Context, queue *engine.QueueManager) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			appCtx.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	jobsCtrl := &controllers.JobsController{App: appCtx, Queue: queue}

	// Job queue endpoints
	e.GET("/api/jobs", jobsCtrl.List)
	e.POST("/api/jobs", jobsCtrl.Create)
	e.GET("/api/jobs/:id", jobsCtrl.Get)
	e.DELETE("/api/jobs/:id", jobsCtrl.Cancel)

	e.GET("/healthz", func(c *echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}
