// Package webserver is the HTTP control plane in front of the bot manager.
package webserver

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stake-plus/ibots/src/bots/core"
	"github.com/stake-plus/ibots/src/control"
)

// Controller is the part of *control.Manager the routes drive.
type Controller interface {
	Status(ctx context.Context, names []string) (map[string]control.BotStatus, error)
	Start(ctx context.Context, names []string) (map[string]string, error)
	Stop(ctx context.Context, names []string) (map[string]string, error)
	Command(ctx context.Context, names []string, instruction string) (map[string]any, error)
	Resource(ctx context.Context, names []string, instruction string) (map[string]any, error)
	Interact(ctx context.Context, name string) (*core.Inspection, error)
	Wipe(ctx context.Context, names []string) (map[string]string, error)
}

// Config tunes the router.
type Config struct {
	AllowOrigins []string
	// JWTSecret enables bearer auth on the control routes when set.
	JWTSecret string
	// RateLimit is requests per RateWindow per client; zero disables it.
	RateLimit  int
	RateWindow time.Duration
}

// New builds the control-plane router.
func New(ctrl Controller, cfg Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger())
	attachRoutes(r, ctrl, cfg)
	return r
}

func attachRoutes(r *gin.Engine, ctrl Controller, cfg Config) {
	if len(cfg.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", RequestIDHeader},
			ExposeHeaders:    []string{"Content-Length", RequestIDHeader},
			AllowCredentials: true,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := &handlers{ctrl: ctrl}
	ops := r.Group("/")
	if cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		ops.Use(RateLimitMiddleware(NewRateLimiter(cfg.RateLimit, window)))
	}
	if cfg.JWTSecret != "" {
		ops.Use(JWTMiddleware([]byte(cfg.JWTSecret)))
	}
	{
		ops.POST("/status", h.Status)
		ops.POST("/start", h.Start)
		ops.POST("/stop", h.Stop)
		ops.POST("/bot", h.Bot)
		ops.POST("/resource", h.Resource)
		ops.POST("/interact", h.Interact)
		ops.POST("/wipe", h.Wipe)
	}
}
