// Package router assembles the gin engine for the claims API.
package router

import (
	"github.com/afp/backend/internal/infrastructure/logger"
	"github.com/afp/backend/internal/interfaces/http/handler"
	"github.com/afp/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouteRegistrar registers a handler's routes on the API group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Config holds the engine-wide middleware settings
type Config struct {
	ServiceName    string
	TracingEnabled bool
	MaxBodyBytes   int64
	CORS           middleware.CORSConfig
}

// Router builds the engine and mounts registrars under /api/<version>
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// New creates an engine with the standard middleware chain: recovery,
// request id, tracing, request logging, CORS and the body limit.
func New(cfg Config, log *zap.Logger, health *handler.HealthHandler, opts ...RouterOption) *Router {
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	engine.Use(logger.Recovery(log), middleware.RequestID())
	if cfg.TracingEnabled {
		engine.Use(middleware.Tracing(cfg.ServiceName), middleware.TraceAttributes())
	}
	engine.Use(logger.GinMiddleware(log), middleware.CORSWithConfig(cfg.CORS))
	if cfg.MaxBodyBytes > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	}

	engine.GET("/health", health.Health)

	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a registrar to be mounted by Setup
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup mounts every registrar and returns the engine
func (r *Router) Setup() *gin.Engine {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
	return r.engine
}
