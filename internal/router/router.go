// Package router defines how HTTP routes are registered for the API.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/config"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/handler"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/middleware"
)

// RegisterRoutes registers the unauthenticated operational endpoints:
// a health check backed by a database ping and the Prometheus scrape
// endpoint for gatherer.
func RegisterRoutes(e *echo.Echo, db *sql.DB, gatherer prometheus.Gatherer) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// Ledger bundles the handlers mounted under /v1.
type Ledger struct {
	Venues   *handler.VenueHandler
	Sessions *handler.SessionHandler
}

// RegisterLedger mounts the ledger API.  Every route needs a valid token;
// any known role may read, operators and admins may record sessions and
// line items, and only admins may change venues.  Reads are cached in Redis
// when rdb is non-nil and every successful write invalidates the cache.
func RegisterLedger(e *echo.Echo, h Ledger, jwtSecret string, cache config.CacheConfig, rdb *redis.Client) {
	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))
	v1.Use(middleware.RequireRole(middleware.RoleAdmin, middleware.RoleOperator, middleware.RoleViewer))
	v1.Use(middleware.InvalidateOnWrite(cache, rdb))
	v1.Use(middleware.NewRedisCache(cache, rdb))

	admin := middleware.RequireRole(middleware.RoleAdmin)
	writer := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleOperator)

	v1.GET("/venues", h.Venues.List)
	v1.GET("/venues/:id", h.Venues.Get)
	v1.POST("/venues", h.Venues.Create, admin)
	v1.PATCH("/venues/:id", h.Venues.Update, admin)
	v1.DELETE("/venues/:id", h.Venues.Delete, admin)

	v1.GET("/sessions", h.Sessions.List)
	v1.GET("/sessions/:id", h.Sessions.Get)
	v1.POST("/sessions", h.Sessions.Create, writer)
	v1.PATCH("/sessions/:id", h.Sessions.Update, writer)
	v1.DELETE("/sessions/:id", h.Sessions.Delete, writer)
	v1.POST("/sessions/:id/line-items", h.Sessions.AddLineItem, writer)
	v1.GET("/line-items/:id", h.Sessions.GetLineItem)
	v1.DELETE("/line-items/:id", h.Sessions.DeleteLineItem, writer)
}
