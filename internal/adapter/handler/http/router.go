package http

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

// RegisterRoutes sets up the monitor routes and the health check.
func RegisterRoutes(r *router.Router, h *MonitorHandler) {
	r.GET("/connections", h.GetConnections)
	r.GET("/connections/ranked", h.GetRanked)

	r.GET("/health", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("OK")
	})
}
