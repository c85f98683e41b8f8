package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gxtnewfolder/cafe-pos-system-sub000/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

func NewEngine(log logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(accessLog(log))
	return r
}

func RegisterRoutes(r *gin.Engine, h *HTTPHandler) {
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api")
	{
		api.POST("/orders", h.PlaceOrder)
		api.GET("/orders/:id", h.GetOrder)

		api.GET("/products/:id", h.GetProduct)
		api.PUT("/products/:id/stock", h.SetStock)

		api.GET("/settings", h.GetSettings)
		api.PUT("/settings", h.UpdateSettings)
	}
}

// requestID reuses the caller's X-Request-ID or mints one, and threads it into the request context.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func accessLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithContext(c.Request.Context()).Info("http request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Int64("latency_ms", time.Since(start).Milliseconds()),
		)
	}
}
