// Package router assembles the gin engine from the application's modules.
package router

import (
	"context"
	"net/http"
	"time"

	apphttp "workshop_backend/internal/http"
	"workshop_backend/internal/workflow"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	healthTimeout  = 2 * time.Second
	requestsPerSec = 20
	requestBurst   = 60
)

// WorkflowResponse describes one state machine.
type WorkflowResponse struct {
	Kind        string         `json:"kind"`
	Statuses    []string       `json:"statuses"`
	Transitions workflow.Table `json:"transitions"`
}

// New builds the engine: global middleware, health, workflow discovery and
// every module's routes under /api/v1.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(corsConfig(app.Config)))

	engine.GET("/api/health", health(app.Health))

	v1 := engine.Group("/api/v1")
	v1.Use(httpkit.NewIPRateLimiter(rate.Limit(requestsPerSec), requestBurst, app.Logger).RateLimit())
	v1.GET("/workflow", listWorkflows)
	v1.GET("/workflow/:kind", getWorkflow)

	auth := httpkit.AuthRequired(app.Config)
	ctx := &apphttp.RouterContext{
		Engine:         engine,
		V1:             v1,
		Protected:      v1.Group("", auth),
		Config:         app.Config,
		AuthMiddleware: auth,
	}
	for _, module := range app.Modules {
		module.RegisterRoutes(ctx)
		app.Logger.Info("module registered", "module", module.Name())
	}

	return engine
}

func corsConfig(cfg apphttp.RouterConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", httpkit.HeaderRequestID},
		ExposeHeaders:    []string{httpkit.HeaderRequestID},
		AllowCredentials: cfg.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	if cfg.GetCORSAllowAll() {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.GetCORSOrigins()
	}
	return c
}

func health(checker apphttp.Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			defer cancel()
			if err := checker.Ping(ctx); err != nil {
				httpkit.Error(c, http.StatusServiceUnavailable, "unavailable", "database unavailable", nil)
				return
			}
		}
		httpkit.OK(c, gin.H{"status": "ok"})
	}
}

func listWorkflows(c *gin.Context) {
	out := make([]WorkflowResponse, 0, len(workflow.Entities()))
	for _, entity := range workflow.Entities() {
		table, _ := workflow.Lookup(entity)
		out = append(out, WorkflowResponse{Kind: string(entity), Statuses: workflow.Statuses(entity), Transitions: table})
	}
	httpkit.OK(c, out)
}

func getWorkflow(c *gin.Context) {
	entity := workflow.Entity(c.Param("kind"))
	table, ok := workflow.Lookup(entity)
	if !ok {
		httpkit.HandleError(c, apperr.NotFound("unknown workflow "+string(entity)))
		return
	}
	httpkit.OK(c, WorkflowResponse{Kind: string(entity), Statuses: workflow.Statuses(entity), Transitions: table})
}
