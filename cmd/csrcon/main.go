package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"csrcon/internal/config"
	"csrcon/internal/httpapi"
	"csrcon/internal/logging"
	"csrcon/internal/otel"
	"csrcon/internal/rcon"
	"csrcon/internal/servers"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		logging.New(false).Fatal("config", zap.Error(err))
	}
	log := logging.New(cfg.Debug)
	defer log.Sync()

	ctx := context.Background()
	shutdown, err := otel.Setup(ctx, "csrcon", cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	}
	defer shutdown(ctx)

	registry := servers.NewRegistry(cfg.Connections,
		servers.WithLogger(log),
		servers.WithRetryPolicy(cfg.RetryPolicy()),
		servers.WithConnectTimeout(cfg.DialTimeout+cfg.CommandDeadline),
		servers.WithConnOptions(
			rcon.WithDialer(rcon.GorconDialer(cfg.DialTimeout, cfg.CommandDeadline)),
			rcon.WithMinInterval(cfg.MinCommandInterval),
		),
	)
	defer registry.CloseAll()
	registry.StartJanitor(ctx, cfg.JanitorInterval)

	api := &httpapi.API{Registry: registry, Log: log}
	srv := &http.Server{
		Addr:              "0.0.0.0:" + strconv.Itoa(cfg.Port),
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("listening",
		zap.String("addr", "http://"+srv.Addr),
		zap.Int("servers", len(cfg.Connections)),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("http server", zap.Error(err))
		registry.CloseAll()
		os.Exit(1)
	}
}
