/*
Package tracing provides lightweight request tracing.

Spans are opened for admin HTTP requests and for core operations
(understand, extract), and trace context travels to the completion and
OCR services in headers.

# Usage

	tracer := tracing.New("pagesense", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "understand")
	span.SetTag("fingerprint", key)
	defer tracer.End(span, err)

	// outgoing calls
	tracing.Inject(ctx, req.Header.Set)

# Trace Format

  - X-Trace-ID: identifier for the whole request flow
  - X-Span-ID: identifier for the current operation

Finished spans are buffered (1000) and logged asynchronously at debug
level; failed spans are logged at warn.
*/
package tracing
