/*
Package resilience provides circuit breaker implementation for graceful degradation.

# Overview

Breakers guard the completion service, the OCR service and page fetches,
so a failing dependency degrades the pipeline to its heuristic and
empty-result paths instead of stalling every request on timeouts.

# Usage

	breaker := resilience.New("llm-http", resilience.Settings{
		Probes:   2,
		Cooldown: 30 * time.Second,
		Trip:     resilience.ConsecutiveFailures(5),
		OnStateChange: func(name string, from, to resilience.State) {
			log.Warn("circuit breaker state change", zap.String("breaker", name),
				zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})

	resp, err := resilience.Run(ctx, breaker, func(ctx context.Context) (*Response, error) {
		return client.Call(ctx)
	})

Caller cancellation never counts as a failure, and a ctx that is already
done is rejected before it uses an admission. Snapshot feeds the admin
/stats endpoint.

# States

- Closed: Normal operation, requests pass through
- Open: Service unavailable, requests fail immediately
- Half-Open: Testing if service recovered, limited requests allowed

# Pattern

The circuit breaker transitions between states based on success/failure rates:

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
