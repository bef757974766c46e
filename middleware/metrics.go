package middleware

import (
	"strconv"
	"time"

	"github.com/JerryEnes/object-detection-with-Dockerfile/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics 记录请求数和耗时，route 使用注册的路由模板避免标签爆炸
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method

		metrics.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
