package tracing

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/PageSense/backend/internal/shared/id"
)

// Propagation headers
const (
	HeaderTraceID = "X-Trace-ID"
	HeaderSpanID  = "X-Span-ID"
)

// TraceID represents a unique trace identifier
type TraceID string

// SpanID represents a unique span identifier
type SpanID string

// Span represents a single operation in a trace
type Span struct {
	TraceID    TraceID
	SpanID     SpanID
	ParentID   SpanID
	Name       string
	Service    string
	StartTime  time.Time
	Duration   time.Duration
	Tags       map[string]string
	Error      error
	StatusCode int
}

// Tracer collects finished spans and logs them off the hot path.
// A nil Tracer is valid and records nothing.
type Tracer struct {
	service string
	logger  *zap.Logger
	spans   chan *Span
	done    chan struct{}
	once    sync.Once
}

// New creates a tracer and starts its collector
func New(service string, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracer{
		service: service,
		logger:  logger.Named("trace"),
		spans:   make(chan *Span, 1000),
		done:    make(chan struct{}),
	}
	go t.collectSpans()
	return t
}

// Close stops accepting spans and waits for buffered ones to be logged
func (t *Tracer) Close() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		close(t.spans)
		<-t.done
	})
}

// StartSpan creates a child of the span in ctx, or a new trace root
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID := GetTraceID(ctx)
	if traceID == "" {
		traceID = TraceID(id.Default().GenerateWithPrefix(id.TracePrefix))
	}

	span := &Span{
		TraceID:   traceID,
		SpanID:    SpanID(id.Default().GenerateWithPrefix(id.SpanPrefix)),
		ParentID:  GetSpanID(ctx),
		Name:      name,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}
	if t != nil {
		span.Service = t.service
	}

	ctx = context.WithValue(ctx, traceIDKey, traceID)
	ctx = context.WithValue(ctx, spanIDKey, span.SpanID)
	return span, ctx
}

// Finish marks the span as complete
func (s *Span) Finish() {
	s.Duration = time.Since(s.StartTime)
}

// SetTag adds a tag to the span
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// SetError records an error in the span
func (s *Span) SetError(err error) {
	s.Error = err
	if s.StatusCode == 0 {
		s.StatusCode = http.StatusInternalServerError
	}
}

// SetStatus sets the HTTP status code
func (s *Span) SetStatus(code int) {
	s.StatusCode = code
}

// End finishes the span, records err if any and submits it
func (t *Tracer) End(span *Span, err error) {
	if err != nil {
		span.SetError(err)
	}
	span.Finish()
	t.Submit(span)
}

func (t *Tracer) collectSpans() {
	defer close(t.done)
	for span := range t.spans {
		t.processSpan(span)
	}
}

func (t *Tracer) processSpan(span *Span) {
	fields := []zap.Field{
		zap.String("trace_id", string(span.TraceID)),
		zap.String("span_id", string(span.SpanID)),
		zap.String("operation", span.Name),
		zap.Duration("duration", span.Duration),
	}
	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", string(span.ParentID)))
	}
	for k, v := range span.Tags {
		fields = append(fields, zap.String(k, v))
	}

	if span.Error != nil {
		fields = append(fields, zap.Error(span.Error))
		t.logger.Warn("span completed with error", fields...)
		return
	}
	t.logger.Debug("span completed", fields...)
}

// Submit sends a span to the collector, dropping it when the buffer is full
func (t *Tracer) Submit(span *Span) {
	if t == nil {
		return
	}
	defer func() {
		// Submit after Close
		_ = recover()
	}()
	select {
	case t.spans <- span:
	default:
		t.logger.Warn("span buffer full, dropping span",
			zap.String("trace_id", string(span.TraceID)),
			zap.String("span_id", string(span.SpanID)))
	}
}

// Extract reads trace context from request headers into ctx
func Extract(ctx context.Context, h http.Header) context.Context {
	if v := h.Get(HeaderTraceID); v != "" {
		ctx = context.WithValue(ctx, traceIDKey, TraceID(v))
	}
	if v := h.Get(HeaderSpanID); v != "" {
		ctx = context.WithValue(ctx, spanIDKey, SpanID(v))
	}
	return ctx
}

// Inject writes the trace context in ctx into outgoing headers
func Inject(ctx context.Context, set func(key, value string)) {
	if v := GetTraceID(ctx); v != "" {
		set(HeaderTraceID, string(v))
	}
	if v := GetSpanID(ctx); v != "" {
		set(HeaderSpanID, string(v))
	}
}

type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	spanIDKey  contextKey = "span_id"
)

// GetTraceID retrieves the trace ID from context
func GetTraceID(ctx context.Context) TraceID {
	v, _ := ctx.Value(traceIDKey).(TraceID)
	return v
}

// GetSpanID retrieves the span ID from context
func GetSpanID(ctx context.Context) SpanID {
	v, _ := ctx.Value(spanIDKey).(SpanID)
	return v
}
