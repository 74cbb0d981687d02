// Command server runs the ledger HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/config"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/database"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/handler"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/metrics"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/queue"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/router"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/service"
)

func main() {
	cfg := config.Load()
	logger := log.New("bunker")
	if cfg.Env == "dev" {
		logger.SetLevel(log.DEBUG)
	}

	db, err := database.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatalf("open %s database: %v", cfg.DBDriver, err)
	}
	defer db.Close()
	if err := database.CheckSchema(context.Background(), db); err != nil {
		logger.Fatalf("%v; run `migrate baseline` and `migrate up` (MySQL schemas are provisioned separately)", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := service.Deps{DB: db, Dialect: cfg.DBDriver, Metrics: metrics.New(reg), Logger: logger}
	if cfg.Events.Enabled {
		deps.Events = queue.NewPublisher(cfg.Events.URL)
		if cfg.Events.Consume {
			go func() {
				if err := queue.StartLedgerConsumer(ctx, cfg.Events.URL, cfg.Events.AuditLog); err != nil && !errors.Is(err, context.Canceled) {
					logger.Errorf("ledger consumer stopped: %v", err)
				}
			}()
		}
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable; read cache disabled")
	} else {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.Logger = logger
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	router.RegisterRoutes(e, db, reg)
	router.RegisterLedger(e, router.Ledger{
		Venues:   handler.NewVenueHandler(service.NewVenueService(deps)),
		Sessions: handler.NewSessionHandler(service.NewSessionService(deps)),
	}, cfg.JWTSecret, config.LoadCacheConfig(), rdb)

	addr := ":" + cfg.Port
	logger.Infof("listening on %s (env=%s, db=%s)", addr, cfg.Env, cfg.DBDriver)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}
