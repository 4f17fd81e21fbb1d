package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/attache/internal/metrics"
	"github.com/loykin/attache/internal/orchestrator"
)

// Router provides the loopback control API the shell drives. Endpoints:
//
//	POST {basePath}/restart    shut down, respawn and health-gate the backend
//	GET  {basePath}/status     orchestrator + backend snapshot
//	GET  {basePath}/logs       query: n=... (default 20, max 500)
//	GET  {basePath}/metrics    Prometheus metrics
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	orc      *orchestrator.Orchestrator
	basePath string
}

// NewRouter constructs a Router with a configurable basePath.
// Example basePath: "/control" results in /control/restart etc.
func NewRouter(orc *orchestrator.Orchestrator, basePath string) *Router {
	return &Router{orc: orc, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server or mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/restart", r.handleRestart)
	group.GET("/status", r.handleStatus)
	group.GET("/logs", r.handleLogs)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// Callers shut it down via http.Server's Close or Shutdown.
func NewServer(addr, basePath string, orc *orchestrator.Orchestrator) (*http.Server, error) {
	r := NewRouter(orc, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Restart blocks until the backend is healthy or its poll budget
		// lapses; leave room beyond the 15s default budget.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

type errorResp struct {
	Error string `json:"error"`
}

type restartResp struct {
	Message string `json:"message"`
}

type logsResp struct {
	Lines []string `json:"lines"`
}

func (r *Router) handleRestart(c *gin.Context) {
	msg, err := r.orc.Restart()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, orchestrator.ErrNoBackend) {
			status = http.StatusConflict
		}
		c.JSON(status, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, restartResp{Message: msg})
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.orc.Status())
}

func (r *Router) handleLogs(c *gin.Context) {
	n := 20
	if q := c.Query("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, errorResp{Error: "invalid n: must be a non-negative integer"})
			return
		}
		n = v
	}
	if n > 500 {
		n = 500
	}
	lines := r.orc.Tail(n)
	if lines == nil {
		lines = []string{}
	}
	c.JSON(http.StatusOK, logsResp{Lines: lines})
}

// sanitizeBase normalizes a base path: empty stays empty, otherwise a single
// leading slash and no trailing slash.
func sanitizeBase(base string) string {
	base = strings.TrimSpace(base)
	if base == "" || base == "/" {
		return ""
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return strings.TrimRight(base, "/")
}
