package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestStartSpanRootAndChild(t *testing.T) {
	tracer := New("test", zap.NewNop())
	defer tracer.Close()

	root, ctx := tracer.StartSpan(context.Background(), "root")
	assert.True(t, strings.HasPrefix(string(root.TraceID), "tr_"))
	assert.True(t, strings.HasPrefix(string(root.SpanID), "sp_"))
	assert.Empty(t, root.ParentID)
	assert.Equal(t, "test", root.Service)

	child, childCtx := tracer.StartSpan(ctx, "child")
	assert.Equal(t, root.TraceID, child.TraceID)
	assert.Equal(t, root.SpanID, child.ParentID)
	assert.NotEqual(t, root.SpanID, child.SpanID)
	assert.Equal(t, child.SpanID, GetSpanID(childCtx))
}

func TestCloseFlushesSpans(t *testing.T) {
	log, logs := observed()
	tracer := New("test", log)

	span, _ := tracer.StartSpan(context.Background(), "understand")
	span.SetTag("fingerprint", "example.com:abc")
	tracer.End(span, nil)

	failed, _ := tracer.StartSpan(context.Background(), "extract")
	tracer.End(failed, errors.New("boom"))

	tracer.Close()
	tracer.Close()

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, "span completed", entries[0].Message)
	assert.Equal(t, "example.com:abc", entries[0].ContextMap()["fingerprint"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, http.StatusInternalServerError, failed.StatusCode)

	// no panic after close
	late, _ := tracer.StartSpan(context.Background(), "late")
	tracer.End(late, nil)
}

func TestNilTracer(t *testing.T) {
	var tracer *Tracer
	span, ctx := tracer.StartSpan(context.Background(), "op")
	require.NotNil(t, span)
	assert.Equal(t, span.TraceID, GetTraceID(ctx))
	tracer.End(span, nil)
	tracer.Close()
}

func TestInjectExtract(t *testing.T) {
	tracer := New("test", zap.NewNop())
	defer tracer.Close()

	span, ctx := tracer.StartSpan(context.Background(), "op")
	h := http.Header{}
	Inject(ctx, h.Set)
	assert.Equal(t, string(span.TraceID), h.Get(HeaderTraceID))
	assert.Equal(t, string(span.SpanID), h.Get(HeaderSpanID))

	got := Extract(context.Background(), h)
	assert.Equal(t, span.TraceID, GetTraceID(got))

	empty := http.Header{}
	Inject(context.Background(), empty.Set)
	assert.Empty(t, empty)
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, logs := observed()
	tracer := New("test", log)

	var seen TraceID
	r := gin.New()
	r.Use(HTTPMiddleware(tracer))
	r.GET("/stats", func(c *gin.Context) {
		seen = GetTraceID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set(HeaderTraceID, "tr_upstream")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, TraceID("tr_upstream"), seen)
	assert.Equal(t, "tr_upstream", w.Header().Get(HeaderTraceID))
	assert.NotEmpty(t, w.Header().Get(HeaderSpanID))

	tracer.Close()
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "GET /stats", fields["operation"])
	assert.Equal(t, "200", fields["http.status"])
}
