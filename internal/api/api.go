// Package api implements the HTTP control and diagnostics surface: one
// endpoint per source to read its synchronization state and jitter budget,
// and a handful of endpoints to steer rate, pause state and reference reset.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/meridianvideo/inputclockd/internal/clock"
)

// Registry resolves source names to their Clock. The core's source registry
// satisfies this directly.
type Registry interface {
	Clock(name string) (*clock.Clock, bool)
	ClockNames() []string
}

// Warner receives a startup diagnostic. *logger.Logger satisfies it.
type Warner interface {
	Infof(format string, args ...interface{})
}

// API is the HTTP control server.
type API struct {
	Address  string
	Registry Registry
	Warner   Warner

	listener   net.Listener
	httpServer *http.Server
}

// Initialize starts the listener and begins serving.
func (a *API) Initialize() error {
	router := gin.New()
	router.Use(a.middlewareCORS)

	group := router.Group("/v1")
	group.GET("/sources", a.onSourcesList)
	group.GET("/sources/:name/state", a.onSourceState)
	group.GET("/sources/:name/jitter", a.onSourceJitter)
	group.POST("/sources/:name/rate", a.onSourceSetRate)
	group.POST("/sources/:name/pause", a.onSourceSetPause)
	group.POST("/sources/:name/reset", a.onSourceReset)

	listener, err := net.Listen("tcp", a.Address)
	if err != nil {
		return err
	}
	a.listener = listener

	a.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if a.Warner != nil {
		a.Warner.Infof("api listener opened on %s", a.Address)
	}

	go a.run()
	return nil
}

func (a *API) run() {
	err := a.httpServer.Serve(a.listener)
	if err != http.ErrServerClosed {
		panic(err)
	}
}

// Close shuts the API server down.
func (a *API) Close() {
	a.httpServer.Shutdown(context.Background()) //nolint:errcheck
}

func (a *API) middlewareCORS(ctx *gin.Context) {
	ctx.Header("Access-Control-Allow-Origin", "*")
	if ctx.Request.Method == http.MethodOptions {
		ctx.Header("Access-Control-Allow-Methods", "OPTIONS, GET, POST")
		ctx.Header("Access-Control-Allow-Headers", "Content-Type")
		ctx.AbortWithStatus(http.StatusNoContent)
		return
	}
}

func (a *API) clockByParam(ctx *gin.Context) (*clock.Clock, bool) {
	name := ctx.Param("name")
	if name == "" {
		a.writeError(ctx, http.StatusBadRequest, "missing source name")
		return nil, false
	}

	clk, ok := a.Registry.Clock(name)
	if !ok {
		a.writeError(ctx, http.StatusNotFound, "unknown source: "+name)
		return nil, false
	}
	return clk, true
}

func (a *API) writeError(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{"status": "error", "error": message})
}

func (a *API) writeOK(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}
