// Package handlers is the HTTP surface of the storefront.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/auth"
	"github.com/imrishuroy/go-storefront/internal/cart"
	"github.com/imrishuroy/go-storefront/internal/events"
	"github.com/imrishuroy/go-storefront/internal/idempotency"
	"github.com/imrishuroy/go-storefront/internal/logging"
	"github.com/imrishuroy/go-storefront/internal/metrics"
	"github.com/imrishuroy/go-storefront/internal/orders"
	"github.com/imrishuroy/go-storefront/internal/validation"
)

// HandlerConfig groups dependencies of the router.
type HandlerConfig struct {
	Coordinator *orders.Coordinator
	History     *orders.History
	Cart        *cart.Service
	Guard       *idempotency.Guard // optional
	Emitter     *events.Emitter
	Verifier    auth.Verifier
	Recorder    metrics.Recorder       // optional
	Server      *metrics.ServerMetrics // optional; enables /metrics
	Health      func() error           // optional readiness probe
	Log         logrus.FieldLogger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(cfg.Log))
	if cfg.Server != nil {
		r.Use(cfg.Server.Middleware())
		r.GET("/metrics", gin.WrapH(cfg.Server.Handler()))
	}

	// health
	r.GET("/health", func(c *gin.Context) {
		if cfg.Health != nil {
			if err := cfg.Health(); err != nil {
				cfg.Log.WithError(err).Warn("health check failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	RegisterRoutes(r, cfg)
	return r
}

// RegisterRoutes registers the authenticated order and cart routes.
func RegisterRoutes(r gin.IRouter, cfg HandlerConfig) {
	v := validation.New()
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = metrics.Multi{}
	}
	emitter := cfg.Emitter
	if emitter == nil {
		emitter = events.NewEmitter(events.Noop{}, 0, cfg.Log)
	}

	oh := &OrdersHandler{
		coordinator: cfg.Coordinator,
		history:     cfg.History,
		guard:       cfg.Guard,
		emitter:     emitter,
		metrics:     recorder,
		validate:    v,
		log:         cfg.Log,
	}
	ch := &CartHandler{cart: cfg.Cart, validate: v, log: cfg.Log}

	authed := r.Group("/", auth.Authenticate(cfg.Verifier))

	authed.POST("/orders", oh.Create)
	authed.GET("/orders/my", oh.Mine)
	authed.GET("/orders/all", auth.RequireRole(auth.RoleAdmin), oh.All)

	authed.GET("/cart", ch.Get)
	authed.POST("/cart", ch.Add)
	authed.PUT("/cart/:itemId", ch.Update)
	authed.DELETE("/cart/:itemId", ch.Remove)
	authed.DELETE("/cart", ch.Clear)
}
