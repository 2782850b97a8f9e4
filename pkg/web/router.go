// Package web is the station's static file server with a small read-only
// status API. It only reads files written by the supervisor.
package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/urmzd/pira/pkg/web/handlers"
)

// Router holds the Gin engine and dependencies
type Router struct {
	engine   *gin.Engine
	dir      string
	snapshot handlers.SnapshotSource
	entries  handlers.EntryLister
	maxAge   time.Duration
}

// Option configures a Router.
type Option func(*Router)

// WithEventLog exposes the event log under /api/v1/log.
func WithEventLog(entries handlers.EntryLister) Option {
	return func(r *Router) { r.entries = entries }
}

// WithMaxAge marks snapshots older than d as stale in health checks.
func WithMaxAge(d time.Duration) Option {
	return func(r *Router) { r.maxAge = d }
}

// NewRouter creates a router serving dir and the snapshot status.
func NewRouter(dir string, snapshot handlers.SnapshotSource, opts ...Option) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	SetupMiddleware(engine)

	router := &Router{
		engine:   engine,
		dir:      dir,
		snapshot: snapshot,
	}
	for _, opt := range opts {
		opt(router)
	}

	router.setupRoutes()

	return router
}

// setupRoutes configures all routes
func (r *Router) setupRoutes() {
	// Swagger UI
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.engine.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})

	// Health check at root
	healthHandler := handlers.NewHealthHandler(r.snapshot, r.maxAge)
	r.engine.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.engine.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)

		statusHandler := handlers.NewStatusHandler(r.snapshot)
		v1.GET("/status", statusHandler.Status)

		if r.entries != nil {
			logHandler := handlers.NewLogHandler(r.entries)
			v1.GET("/log", logHandler.List)
		}
	}

	// Everything else is a file from the data directory
	files := http.FileServer(http.Dir(r.dir))
	r.engine.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Status(http.StatusMethodNotAllowed)
			return
		}
		files.ServeHTTP(c.Writer, c.Request)
	})
}

// Handler returns the router as an http.Handler
func (r *Router) Handler() http.Handler {
	return r.engine
}

// Run starts the HTTP server
func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}
