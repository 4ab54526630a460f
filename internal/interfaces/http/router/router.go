// Package router assembles the gin engine of the allocation API.
package router

import (
	"github.com/erp/allocation/internal/infrastructure/logger"
	"github.com/erp/allocation/internal/interfaces/http/handler"
	"github.com/erp/allocation/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be registered by Setup
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup mounts every registrar under /api/<version>
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// Config holds what NewEngine needs to build the API
type Config struct {
	ServiceName    string
	Mode           string
	TracingEnabled bool
	Meter          metric.Meter
	MaxBodySize    int64
	Logger         *zap.Logger
	Allocations    handler.AllocationService
	DB             handler.Pinger
}

// NewEngine builds the engine with the middleware chain, /health and the
// versioned allocation routes.
func NewEngine(cfg Config) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		middleware.Tracing(middleware.TracingConfig{ServiceName: cfg.ServiceName, Enabled: cfg.TracingEnabled}),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(cfg.Meter, log),
		logger.GinMiddleware(log),
		middleware.BodyLimit(cfg.MaxBodySize),
	)

	engine.GET("/health", handler.NewHealthHandler(cfg.DB).Health)

	r := NewRouter(engine)
	r.Register(handler.NewAllocationHandler(cfg.Allocations))
	r.Setup()

	return engine
}
