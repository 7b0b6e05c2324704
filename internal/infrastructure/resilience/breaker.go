package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen   = errors.New("circuit breaker is open")
	ErrProbeInFlight = errors.New("circuit breaker is half-open and probing")
)

// State is the breaker's position in the closed -> open -> half-open cycle
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON stats
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Settings configures a Breaker. Zero fields take defaults.
type Settings struct {
	// Probes is how many calls half-open admits, and how many consecutive
	// successes close the circuit again. Default 1.
	Probes uint32
	// Window is how long closed-state counts accumulate before resetting. Default 60s.
	Window time.Duration
	// Cooldown is how long the circuit stays open. Default 30s.
	Cooldown time.Duration
	// Trip decides from closed-state counts whether to open. Default: 5 consecutive failures.
	Trip func(counts Counts) bool
	// OnStateChange is called under the breaker lock on every transition
	OnStateChange func(name string, from, to State)
	// Failure decides whether an error counts against the remote.
	// Default: any error except caller cancellation.
	Failure func(err error) bool
	// Clock is used by tests. Default time.Now.
	Clock func() time.Time
}

// Counts are the call statistics of the current generation
type Counts struct {
	Requests             uint32 `json:"requests"`
	TotalSuccesses       uint32 `json:"total_successes"`
	TotalFailures        uint32 `json:"total_failures"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures"`
}

// Snapshot is a point-in-time view for stats endpoints
type Snapshot struct {
	Name   string `json:"name"`
	State  State  `json:"state"`
	Counts Counts `json:"counts"`
}

// Breaker guards calls to one remote service.
// Each state change or closed-window reset starts a new generation, and
// results from calls admitted in an older generation are ignored.
type Breaker struct {
	name     string
	settings Settings

	mu       sync.Mutex
	state    State
	counts   Counts
	gen      uint64
	deadline time.Time
}

// New creates a closed breaker
func New(name string, settings Settings) *Breaker {
	if settings.Probes == 0 {
		settings.Probes = 1
	}
	if settings.Window <= 0 {
		settings.Window = 60 * time.Second
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	if settings.Trip == nil {
		settings.Trip = ConsecutiveFailures(5)
	}
	if settings.Failure == nil {
		settings.Failure = remoteFailure
	}
	if settings.Clock == nil {
		settings.Clock = time.Now
	}

	return &Breaker{
		name:     name,
		settings: settings,
		deadline: settings.Clock().Add(settings.Window),
	}
}

// ConsecutiveFailures trips once n calls in a row have failed
func ConsecutiveFailures(n uint32) func(Counts) bool {
	return func(c Counts) bool { return c.ConsecutiveFailures >= n }
}

// A caller giving up says nothing about the remote service
func remoteFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state, applying any due timeout
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.advance(b.settings.Clock())
}

// Counts returns the current generation's counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{Name: b.name, State: b.advance(b.settings.Clock()), Counts: b.counts}
}

// Run calls fn if the breaker admits it and records the outcome.
// A ctx that is already done is returned without using an admission.
func Run[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	gen, err := b.admit()
	if err != nil {
		return zero, err
	}

	defer func() {
		if p := recover(); p != nil {
			b.record(gen, false)
			panic(p)
		}
	}()

	out, err := fn(ctx)
	b.record(gen, !b.settings.Failure(err))
	return out, err
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.advance(b.settings.Clock()) {
	case StateOpen:
		return b.gen, ErrCircuitOpen
	case StateHalfOpen:
		if b.counts.Requests >= b.settings.Probes {
			return b.gen, ErrProbeInFlight
		}
	}
	b.counts.Requests++
	return b.gen, nil
}

func (b *Breaker) record(gen uint64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.settings.Clock()
	state := b.advance(now)
	if gen != b.gen {
		return
	}

	if ok {
		b.counts.TotalSuccesses++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.Probes {
			b.transition(StateClosed, now)
		}
		return
	}

	b.counts.TotalFailures++
	b.counts.ConsecutiveFailures++
	b.counts.ConsecutiveSuccesses = 0
	if state == StateHalfOpen || b.settings.Trip(b.counts) {
		b.transition(StateOpen, now)
	}
}

// advance applies window resets and cooldown expiry. Caller holds mu.
func (b *Breaker) advance(now time.Time) State {
	if b.deadline.IsZero() || now.Before(b.deadline) {
		return b.state
	}
	switch b.state {
	case StateClosed:
		b.gen++
		b.counts = Counts{}
		b.deadline = now.Add(b.settings.Window)
	case StateOpen:
		b.transition(StateHalfOpen, now)
	}
	return b.state
}

// transition starts a new generation in state. Caller holds mu.
func (b *Breaker) transition(state State, now time.Time) {
	if b.state == state {
		return
	}
	prev := b.state
	b.state = state
	b.gen++
	b.counts = Counts{}

	switch state {
	case StateClosed:
		b.deadline = now.Add(b.settings.Window)
	case StateOpen:
		b.deadline = now.Add(b.settings.Cooldown)
	case StateHalfOpen:
		b.deadline = time.Time{}
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, prev, state)
	}
}
