package routes

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/any-hub/imghub/internal/objects"
)

// RegisterDiagnosticsRoutes 暴露 /-/cache 与 /-/metrics，供运维查看派生缓存状态。
func RegisterDiagnosticsRoutes(app *fiber.App, svc *objects.Service, gatherer prometheus.Gatherer) {
	if app == nil {
		return
	}

	if svc != nil {
		app.Get("/-/cache", func(c fiber.Ctx) error {
			return c.JSON(svc.CacheStats())
		})
	}

	if gatherer != nil {
		app.Get("/-/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}
