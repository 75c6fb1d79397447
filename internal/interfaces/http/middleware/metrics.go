package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/molmatch/internal/infrastructure/monitoring/prometheus"
)

// Metrics records request counts, latencies and in-flight requests.  The
// route template is the path label so that parameters cannot inflate label
// cardinality; unknown routes are labelled "unmatched".
func Metrics(m *prometheus.MatchMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		active := m.HTTPActiveRequests.WithLabelValues(method)
		active.Inc()
		start := time.Now()

		c.Next()

		active.Dec()
		m.RecordHTTPRequest(method, path, c.Writer.Status(), time.Since(start))
	}
}
