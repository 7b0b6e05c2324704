package tracing

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// HTTPMiddleware opens one span per request and echoes the trace headers
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := Extract(c.Request.Context(), c.Request.Header)

		name := c.FullPath()
		if name == "" {
			name = "unmatched"
		}
		span, ctx := tracer.StartSpan(ctx, c.Request.Method+" "+name)
		span.SetTag("http.host", c.Request.Host)
		c.Request = c.Request.WithContext(ctx)

		c.Header(HeaderTraceID, string(span.TraceID))
		c.Header(HeaderSpanID, string(span.SpanID))

		c.Next()

		span.SetStatus(c.Writer.Status())
		span.SetTag("http.status", strconv.Itoa(c.Writer.Status()))
		var err error
		if len(c.Errors) > 0 {
			err = c.Errors.Last()
		}
		tracer.End(span, err)
	}
}
