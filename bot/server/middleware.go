package server

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/liuran001/SongShare-Go/bot"
	"github.com/liuran001/SongShare-Go/bot/telemetry"
)

// HeaderCorrelationID carries the request correlation id in both directions.
const HeaderCorrelationID = "X-Correlation-ID"

// Correlation reuses an inbound correlation id or mints one, and stores it in
// the request context.
func Correlation() gin.HandlerFunc {
	return func(c *gin.Context) {
		corr := c.GetHeader(HeaderCorrelationID)
		if corr == "" {
			corr = uuid.New().String()
		}
		c.Request = c.Request.WithContext(telemetry.WithCorrelation(c.Request.Context(), corr))
		c.Header(HeaderCorrelationID, corr)
		c.Next()
	}
}

// AccessLog writes one line per request.
func AccessLog(logger bot.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if logger == nil {
			return
		}

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"corr", telemetry.GetCorrelation(c.Request.Context()),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			logger.Error("request failed", attrs...)
		case status >= 400:
			logger.Warn("request error", attrs...)
		default:
			logger.Debug("request", attrs...)
		}
	}
}

// Recovery turns handler panics into a 500.
func Recovery(logger bot.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				if logger != nil {
					logger.Error("panic recovered",
						"error", fmt.Sprint(r),
						"method", c.Request.Method,
						"path", c.Request.URL.Path,
						"stack", string(debug.Stack()),
					)
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}
