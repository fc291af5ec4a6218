package http

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"nodemonitor/internal/entity"
	"nodemonitor/internal/monitor"
)

// MonitorHandler serves the monitor's observable state to the routing
// layer.
type MonitorHandler struct {
	monitor *monitor.Monitor
	logger  *zap.Logger
}

// NewMonitorHandler creates a handler over the given monitor.
func NewMonitorHandler(m *monitor.Monitor, logger *zap.Logger) *MonitorHandler {
	return &MonitorHandler{
		monitor: m,
		logger:  logger.Named("MonitorHandler"),
	}
}

// GetConnections handles requests for the full connection state list.
func (h *MonitorHandler) GetConnections(ctx *fasthttp.RequestCtx) {
	snapshots := h.monitor.Snapshots()

	ctx.SetContentType("application/json")
	if err := json.NewEncoder(ctx).Encode(snapshots); err != nil {
		h.logger.Error("Failed to encode connections response", zap.Error(err))
	}
}

// GetRanked handles requests for the ranked, available endpoint list
// of one routing path, identified by transport and network query
// parameters.
func (h *MonitorHandler) GetRanked(ctx *fasthttp.RequestCtx) {
	transport := string(ctx.QueryArgs().Peek("transport"))
	network := string(ctx.QueryArgs().Peek("network"))
	if transport == "" || network == "" {
		ctx.Error("Bad Request: transport and network query parameters are required", fasthttp.StatusBadRequest)
		return
	}

	params := entity.PathParams{
		Transport: entity.TransportKind(transport),
		Network:   entity.NetworkID(network),
	}
	outputs := h.monitor.Ranked(params)

	ctx.SetContentType("application/json")
	if err := json.NewEncoder(ctx).Encode(outputs); err != nil {
		h.logger.Error("Failed to encode ranked response", zap.Error(err))
	}
}
