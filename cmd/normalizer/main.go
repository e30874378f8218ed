// Command normalizer runs the Ingest Normalizer service (spec §4.5-§4.6):
// format-agnostic parsing, record normalization, PII masking, and label
// enforcement before forwarding to the Core Sink.
package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AllEyesOnMyPon/OpsLog/internal/app"
	"github.com/AllEyesOnMyPon/OpsLog/internal/config"
	"github.com/AllEyesOnMyPon/OpsLog/internal/normalizer"
	"github.com/AllEyesOnMyPon/OpsLog/internal/observability"
)

func main() {
	cfg, err := config.LoadNormalizer(os.Getenv("NORMALIZER_CONFIG"))
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := observability.NewLogger(cfg.Log, "normalizer", os.Getenv("APP_ENV"))
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer, "normalizer")

	srv, err := normalizer.New(cfg, logger, metrics)
	if err != nil {
		log.Fatalf("normalizer init error: %v", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("normalizer starting", "addr", cfg.Server.Addr)
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

	logger.Info("normalizer shutdown complete")
}
