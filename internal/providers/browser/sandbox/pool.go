package sandbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned by a pool after Close
var ErrPoolClosed = errors.New("sandbox pool is closed")

// PoolStats describes pool occupancy
type PoolStats struct {
	Size    int   `json:"size"`
	Idle    int   `json:"idle"`
	InUse   int   `json:"in_use"`
	Created int64 `json:"created"`
	Closed  bool  `json:"closed"`
}

// Pool bounds the number of live runtimes. One runtime is built up
// front so a bad Config fails NewPool; the rest are built on demand.
type Pool struct {
	config  Config
	slots   chan struct{} // one token per live runtime
	idle    chan *Runtime
	done    chan struct{}
	once    sync.Once
	created atomic.Int64
}

// NewPool creates a pool of at most size runtimes
func NewPool(config Config, size int) (*Pool, error) {
	if size <= 0 {
		size = 2
	}
	p := &Pool{
		config: config,
		slots:  make(chan struct{}, size),
		idle:   make(chan *Runtime, size),
		done:   make(chan struct{}),
	}

	p.slots <- struct{}{}
	rt, err := p.build()
	if err != nil {
		return nil, err
	}
	p.idle <- rt
	return p, nil
}

// build creates a runtime for a slot the caller already holds
func (p *Pool) build() (*Runtime, error) {
	rt, err := New(p.config)
	if err != nil {
		<-p.slots
		return nil, err
	}
	p.created.Add(1)
	return rt, nil
}

// Acquire returns an idle runtime, builds one if a slot is free, or waits
func (p *Pool) Acquire(ctx context.Context) (*Runtime, error) {
	select {
	case <-p.done:
		return nil, ErrPoolClosed
	case rt := <-p.idle:
		return rt, nil
	default:
	}

	select {
	case <-p.done:
		return nil, ErrPoolClosed
	case rt := <-p.idle:
		return rt, nil
	case p.slots <- struct{}{}:
		return p.build()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release resets rt and makes it available again. A runtime that fails
// to reset is dropped and its slot freed.
func (p *Pool) Release(rt *Runtime) error {
	select {
	case <-p.done:
		<-p.slots
		return rt.Close()
	default:
	}

	if err := rt.Reset(); err != nil {
		_ = rt.Close()
		<-p.slots
		return err
	}
	p.idle <- rt
	return nil
}

// Execute runs script on a pooled runtime
func (p *Pool) Execute(ctx context.Context, script string, doc Document, args map[string]interface{}) (*Result, error) {
	rt, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = p.Release(rt) }()

	return rt.Execute(ctx, script, doc, args)
}

// Close stops the pool and closes idle runtimes. Runtimes in use are
// closed when released.
func (p *Pool) Close() error {
	p.once.Do(func() {
		close(p.done)
		for {
			select {
			case rt := <-p.idle:
				_ = rt.Close()
				<-p.slots
			default:
				return
			}
		}
	})
	return nil
}

func (p *Pool) Stats() PoolStats {
	live := len(p.slots)
	idle := len(p.idle)
	closed := false
	select {
	case <-p.done:
		closed = true
	default:
	}
	return PoolStats{
		Size:    cap(p.slots),
		Idle:    idle,
		InUse:   live - idle,
		Created: p.created.Load(),
		Closed:  closed,
	}
}
