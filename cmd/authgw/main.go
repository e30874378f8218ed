// Command authgw runs the Auth Gateway service (spec §4.1-§4.4): HMAC
// authentication, per-emitter token-bucket rate limiting, backpressure,
// and a breaker-gated retrying forwarder to the Ingest Normalizer.
package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AllEyesOnMyPon/OpsLog/internal/app"
	"github.com/AllEyesOnMyPon/OpsLog/internal/authgw"
	"github.com/AllEyesOnMyPon/OpsLog/internal/config"
	"github.com/AllEyesOnMyPon/OpsLog/internal/observability"
)

func main() {
	cfg, err := config.LoadAuthGW(os.Getenv("AUTHGW_CONFIG"))
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := observability.NewLogger(cfg.Log, "authgw", os.Getenv("APP_ENV"))
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer, "authgw")

	srv := authgw.New(cfg, logger, metrics, nil, cfg.RateLimit.RedisAddr)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("authgw starting", "addr", cfg.Server.Addr)
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

	logger.Info("authgw shutdown complete")
}
