package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prismon/narrative-mcp/pkg/logger"
	"github.com/sirupsen/logrus"
)

// maxRequestBody bounds a single JSON-RPC message posted to /mcp
const maxRequestBody = 4 * 1024 * 1024

// NewHTTPHandler exposes the front as one JSON-RPC message per POST /mcp.
// Requests are handled concurrently.
func NewHTTPHandler(front *Front) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "name": Name, "version": Version})
	})

	router.POST("/mcp", func(c *gin.Context) {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBody))
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, errorResponse(nil, -32600, "Request body too large"))
			return
		}

		resp := front.HandleMessage(c.Request.Context(), body)
		if resp == nil {
			c.Status(http.StatusAccepted)
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		path := c.Request.URL.Path

		clientIP := c.ClientIP()
		log.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      path,
			"clientIP":  clientIP,
			"userAgent": c.GetHeader("User-Agent"),
		}).Debug("Incoming request")

		if logger.IsLevelEnabled(logrus.TraceLevel) {
			headerFields := logrus.Fields{"method": c.Request.Method, "path": path}
			for key, values := range c.Request.Header {
				if key == "Authorization" {
					continue
				}
				headerFields["header_"+key] = values
			}
			log.WithFields(headerFields).Trace("Request headers (verbose)")
		}

		c.Next()

		log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     path,
			"status":   c.Writer.Status(),
			"duration": time.Since(startTime).Milliseconds(),
			"clientIP": clientIP,
		}).Info("Request completed")
	}
}
