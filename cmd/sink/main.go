// Command sink runs the Core Sink service (spec §4.7): accepts a batch of
// normalized records and appends them to a day-partitioned NDJSON file,
// keeping an in-memory ring of the most recent records for diagnostics.
package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AllEyesOnMyPon/OpsLog/internal/app"
	"github.com/AllEyesOnMyPon/OpsLog/internal/config"
	"github.com/AllEyesOnMyPon/OpsLog/internal/observability"
	"github.com/AllEyesOnMyPon/OpsLog/internal/sink"
)

func main() {
	cfg, err := config.LoadSink(os.Getenv("SINK_CONFIG"))
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := observability.NewLogger(cfg.Log, "sink", os.Getenv("APP_ENV"))
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer, "sink")

	srv := sink.New(cfg, logger, metrics)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("sink starting", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	done := make(chan error, 1)
	go app.GracefulShutdown(httpServer, done)

	if err := <-done; err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("sink shutdown complete")
}
