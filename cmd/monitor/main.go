package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	handler "nodemonitor/internal/adapter/handler/http"
	"nodemonitor/internal/config"
	"nodemonitor/internal/logger"
	"nodemonitor/internal/monitor"
	"nodemonitor/internal/pkg/recovery"
)

func main() {
	// --- Configuration ---
	cfgPath := "configs"
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration from %s: %v", cfgPath, err)
	}

	// --- Logger ---
	zlog, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to setup logger: %v", err)
	}
	defer zlog.Sync()
	zlog.Info("Logger initialized", zap.Any("config", cfg.Logger))

	// --- Node list ---
	nodes, err := config.LoadNodes(cfg.Nodes.File)
	if err != nil {
		zlog.Fatal("Failed to load node list", zap.Error(err))
	}
	zlog.Info("Node list loaded", zap.Int("nodes", len(nodes)))

	// --- Monitor ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mon := monitor.New(*cfg, zlog)
	if err := mon.Start(ctx, nodes); err != nil {
		zlog.Fatal("Failed to start monitor", zap.Error(err))
	}

	// --- HTTP Router & Server ---
	monitorHandler := handler.NewMonitorHandler(mon, zlog)
	r := router.New()
	handler.RegisterRoutes(r, monitorHandler)

	loggingMiddleware := func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			zlog.Debug("Request received",
				zap.ByteString("method", ctx.Method()),
				zap.ByteString("uri", ctx.RequestURI()))
			next(ctx)
		}
	}

	serverAddr := ":" + cfg.Server.Port
	server := &fasthttp.Server{Handler: loggingMiddleware(r.Handler)}

	recovery.Go(zlog, "http server", func() {
		zlog.Info("Starting HTTP server", zap.String("address", serverAddr))
		if err := server.ListenAndServe(serverAddr); err != nil {
			zlog.Error("HTTP server stopped", zap.Error(err))
		}
	})

	// --- Shutdown ---
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	zlog.Info("Shutting down", zap.String("signal", s.String()))

	if err := server.Shutdown(); err != nil {
		zlog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	mon.Stop()
	cancel()
}
