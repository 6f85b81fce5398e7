// Command kissvdbd runs the KissVDB server: the State Engine, Vector
// Collections, Event Bus, and document store behind an HTTP surface,
// with optional NATS/WebSocket fan-out, tracing, and an audit mirror.
// Wiring follows fluxor's cmd/main/main.go: a direct runtime/signal/
// graceful-shutdown sequence with no verticle or dependency-injection
// container in between.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kissvdb/kissvdb/internal/auditmirror"
	"github.com/kissvdb/kissvdb/internal/config"
	"github.com/kissvdb/kissvdb/internal/engine"
	"github.com/kissvdb/kissvdb/internal/httpapi"
	"github.com/kissvdb/kissvdb/internal/httpapi/middleware"
	"github.com/kissvdb/kissvdb/internal/logging"
	"github.com/kissvdb/kissvdb/internal/natsbridge"
	"github.com/kissvdb/kissvdb/internal/tracing"
	"github.com/kissvdb/kissvdb/internal/wsbridge"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML or JSON configuration file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		if err := config.LoadWithEnv(*configPath, "KISSVDB", cfg); err != nil {
			log.Fatalf("kissvdbd: load config: %v", err)
		}
	} else if err := config.ApplyEnvOverrides("KISSVDB", cfg); err != nil {
		log.Fatalf("kissvdbd: apply env overrides: %v", err)
	}
	if err := config.Validate(cfg, config.DefaultValidator()); err != nil {
		log.Fatalf("kissvdbd: invalid config: %v", err)
	}

	logger := logging.Default()
	logger.Infof("kissvdbd: starting, data_dir=%q bind=%s:%d", cfg.DataDir, cfg.BindAddress, cfg.Port)

	eng, err := engine.Open(cfg, logger)
	if err != nil {
		log.Fatalf("kissvdbd: open engine: %v", err)
	}

	tracerProvider, err := tracing.New(context.Background(), "kissvdb", tracing.Config{
		Enabled:  cfg.Tracing.Enabled,
		Exporter: cfg.Tracing.Exporter,
		Endpoint: cfg.Tracing.Endpoint,
	})
	if err != nil {
		logger.Errorf("kissvdbd: tracing disabled: %v", err)
		tracerProvider = tracing.Noop()
	}

	router := httpapi.NewRouter()
	router.Use(middleware.Metrics(), middleware.Tracing(tracerProvider.Tracer()))
	if cfg.Auth.Enabled && cfg.Auth.APIKeyHash != "" {
		router.Use(middleware.APIKey(middleware.APIKeyConfig{
			Hash:      cfg.Auth.APIKeyHash,
			SkipPaths: []string{"/health", "/metrics"},
		}))
	} else if cfg.Auth.Enabled {
		router.Use(middleware.JWT(middleware.JWTConfig{
			Secret:    cfg.Auth.HMACSecret,
			SkipPaths: []string{"/health", "/metrics"},
		}))
	}
	router.Use(middleware.RateLimit(middleware.RateLimitConfig{}))

	httpapi.RegisterHealth(router)
	httpapi.RegisterKV(router, eng)
	httpapi.RegisterVector(router, eng)
	httpapi.RegisterDocs(router, eng)
	httpapi.RegisterStream(router, eng)

	server := httpapi.NewServer(httpapi.ServerConfig{
		Addr:            fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port),
		ReadTimeout:     cfg.RequestTimeout,
		WriteTimeout:    cfg.RequestTimeout,
		MaxRequestBytes: int(cfg.MaxBodyBytes),
	}, router, logger)

	// The WebSocket event-stream transport shares the Event Bus directly
	// rather than going through the HTTP router, so it gets its own
	// small net/http listener one port above the main one (spec §6:
	// "transport-agnostic" event stream contract).
	wsBridge := wsbridge.New(eng.Bus(), logger)
	wsMux := http.NewServeMux()
	wsMux.HandleFunc("/v1/events/ws", wsBridge.ServeHTTP)
	wsServer := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port+1), Handler: wsMux}
	go func() {
		if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("kissvdbd: ws bridge: %v", err)
		}
	}()

	var nb *natsbridge.Bridge
	if cfg.NATS.Enabled {
		nb, err = natsbridge.Start(eng.Bus(), natsbridge.Config{Enabled: true, SubjectPrefix: cfg.NATS.SubjectPrefix})
		if err != nil {
			logger.Errorf("kissvdbd: nats bridge disabled: %v", err)
		}
	}

	var mirror *auditmirror.Mirror
	if cfg.Audit.Enabled {
		mirror, err = auditmirror.Open(cfg.Audit.Path, logger)
		if err != nil {
			logger.Errorf("kissvdbd: audit mirror disabled: %v", err)
		} else {
			mirror.Start(eng.Bus())
		}
	}

	go func() {
		if err := server.ListenAndServe(); err != nil {
			logger.Errorf("kissvdbd: http server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Infof("kissvdbd: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("kissvdbd: http shutdown: %v", err)
	}
	if wsServer != nil {
		_ = wsServer.Shutdown(shutdownCtx)
	}
	if nb != nil {
		nb.Stop()
	}
	if mirror != nil {
		mirror.Stop()
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("kissvdbd: tracing shutdown: %v", err)
	}
	if err := eng.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("kissvdbd: engine shutdown: %v", err)
	}
	logger.Infof("kissvdbd: stopped")
}
