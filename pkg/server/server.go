// Package server exposes the Narrative tools and resources over MCP.
//
// The Dispatcher runs tool calls, the Router resolves resource reads, and the
// Front ties both to an mcp-go server behind the stdio or HTTP transport.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prismon/narrative-mcp/pkg/config"
	"github.com/prismon/narrative-mcp/pkg/logger"
	"github.com/prismon/narrative-mcp/pkg/resources"
	"github.com/prismon/narrative-mcp/pkg/tools"
	"github.com/sirupsen/logrus"
)

var log *logrus.Entry

func init() {
	log = logger.WithName("server")
}

const shutdownTimeout = 5 * time.Second

// App bundles the components that make up one server instance
type App struct {
	Registry   *tools.Registry
	Store      *resources.Store
	Dispatcher *Dispatcher
	Router     *Router
	Front      *Front
}

// New wires a registry, an empty store, the dispatcher, the router and the
// mcp-go server around upstream
func New(upstream Upstream) *App {
	registry := tools.New()
	store := resources.NewStore()
	dispatcher := NewDispatcher(registry, store, upstream)
	router := NewRouter(store, upstream)
	mcpServer := NewMCPServer(registry, dispatcher, router)

	return &App{
		Registry:   registry,
		Store:      store,
		Dispatcher: dispatcher,
		Router:     router,
		Front:      NewFront(mcpServer, registry, dispatcher, router),
	}
}

// Start serves the app on the transport selected by cfg until ctx is done
func Start(ctx context.Context, cfg *config.Config, app *App) error {
	switch cfg.Server.Transport {
	case config.TransportStdio:
		return ServeStdio(ctx, app.Front, os.Stdin, os.Stdout)
	case config.TransportHTTP:
		return serveHTTP(ctx, cfg, app.Front)
	default:
		return fmt.Errorf("unsupported transport %q", cfg.Server.Transport)
	}
}

func serveHTTP(ctx context.Context, cfg *config.Config, front *Front) error {
	gin.SetMode(gin.ReleaseMode)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewHTTPHandler(front),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":         addr,
			"mcp_endpoint": "/mcp",
		}).Info("MCP HTTP server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("MCP HTTP server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
