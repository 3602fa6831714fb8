// Package http holds the contract between the router and the domain modules
// (technicians, work items, assignments, queues, intakes, work orders and
// the event stream).
package http

import (
	"context"

	"workshop_backend/platform/config"
	"workshop_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// Module is a domain module that serves HTTP routes.
type Module interface {
	// Name is used in startup logs.
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext is what a module gets to mount its routes on.
type RouterContext struct {
	Engine *gin.Engine
	// V1 is /api/v1 without authentication.
	V1 *gin.RouterGroup
	// Protected is /api/v1 behind AuthMiddleware. Every scheduling route
	// lives here.
	Protected      *gin.RouterGroup
	Config         config.JWTConfig
	AuthMiddleware gin.HandlerFunc
}

// RouterConfig is the configuration the router reads: CORS and the JWT
// secret.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// Pinger reports whether the scheduling store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// App is what cmd/api hands the router once the stores and modules exist.
type App struct {
	Config  RouterConfig
	Logger  *logger.Logger
	// Health backs /api/health. The memory backend leaves it nil and is
	// always reported healthy.
	Health  Pinger
	Modules []Module
}
