package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/PageSense/backend/internal/domain/fingerprint"
	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

// Defaults used when Options leave a field zero
const (
	DefaultMemoryCapacity = 100
	DefaultMaxAge         = 24 * time.Hour
	DefaultDomainCap      = 50
)

var (
	// ErrNilCompute is returned when GetOrCompute is called without a compute function
	ErrNilCompute = errors.New("cache: nil compute function")
	// ErrNilValue is returned when a compute function succeeds with no value
	ErrNilValue = errors.New("cache: compute returned nil understanding")
)

// ComputeFunc produces an understanding on a cache miss.
// It runs detached from the caller's cancellation.
type ComputeFunc func(ctx context.Context) (*types.PageUnderstanding, error)

// Options configures a Store
type Options struct {
	Dir            string // empty disables the disk tier
	MemoryCapacity int
	MaxAge         time.Duration
	DomainCap      int
	SweepThreshold int // defaults to MemoryCapacity
	Logger         *zap.Logger
	Metrics        *monitoring.Metrics
	Now            func() time.Time
}

// Stats describes cache occupancy
type Stats struct {
	MemoryEntries int `json:"memory_entries"`
	MemoryMax     int `json:"memory_max"`
	ActiveLocks   int `json:"active_locks"`
	DiskDomains   int `json:"disk_domains"`
	DiskEntries   int `json:"disk_entries"`
}

// Store is a two-tier understanding cache with compute-once semantics.
// Values are cloned on the way in and out, so callers never share state.
type Store struct {
	mem     *lru
	disk    *disk
	locks   *lockTable
	maxAge  time.Duration
	log     *zap.Logger
	metrics *monitoring.Metrics
	now     func() time.Time
}

// New creates a Store
func New(opts Options) *Store {
	if opts.MemoryCapacity <= 0 {
		opts.MemoryCapacity = DefaultMemoryCapacity
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.DomainCap <= 0 {
		opts.DomainCap = DefaultDomainCap
	}
	if opts.SweepThreshold <= 0 {
		opts.SweepThreshold = opts.MemoryCapacity
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	log := opts.Logger.Named("cache")
	s := &Store{
		mem:     newLRU(opts.MemoryCapacity),
		locks:   newLockTable(opts.SweepThreshold),
		maxAge:  opts.MaxAge,
		log:     log,
		metrics: opts.Metrics,
		now:     opts.Now,
	}
	if opts.Dir != "" {
		s.disk = newDisk(opts.Dir, opts.DomainCap, log, opts.Metrics)
	}
	return s
}

func (s *Store) expired(e *entry) bool {
	return s.now().Sub(e.InsertedAt) > s.maxAge
}

// lookup checks memory then disk, warming memory on a disk hit.
// Expired entries are evicted from both tiers.
func (s *Store) lookup(key string) (*entry, string, bool) {
	if e, ok := s.mem.get(key); ok {
		if !s.expired(e) {
			return e, "memory", true
		}
		s.evictExpired(e)
		return nil, "", false
	}

	if s.disk == nil {
		return nil, "", false
	}
	e, ok := s.disk.load(key)
	if !ok {
		return nil, "", false
	}
	if s.expired(e) {
		s.evictExpired(e)
		return nil, "", false
	}
	s.putMemory(e)
	return e, "disk", true
}

// evictExpired drops e from both tiers unless a newer entry replaced it
func (s *Store) evictExpired(e *entry) {
	if s.mem.removeEntry(e) {
		s.metrics.RecordEviction("memory", "expired")
	}
	if s.disk != nil && s.disk.removeStale(e) {
		s.metrics.RecordEviction("disk", "expired")
	}
	s.log.Debug("evicted expired entry", zap.String("key", e.Key))
}

func (s *Store) putMemory(e *entry) {
	for _, evicted := range s.mem.put(e) {
		s.metrics.RecordEviction("memory", "capacity")
		s.log.Debug("evicted lru entry", zap.String("key", evicted))
	}
}

// Get returns a copy of the cached understanding for key
func (s *Store) Get(ctx context.Context, key string) (*types.PageUnderstanding, bool) {
	e, tier, ok := s.lookup(key)
	if !ok {
		s.metrics.RecordCacheMiss()
		return nil, false
	}
	s.metrics.RecordCacheHit(tier)
	return e.Value.Clone(), true
}

// Put stores a copy of value in memory and on disk
func (s *Store) Put(ctx context.Context, key string, value *types.PageUnderstanding) {
	if value == nil {
		return
	}
	e := &entry{Key: key, Value: value.Clone(), InsertedAt: s.now()}
	s.putMemory(e)
	if s.disk != nil {
		s.disk.save(e)
	}
	s.metrics.SetCacheGauges(s.mem.len(), s.locks.size())
}

type computeResult struct {
	value *types.PageUnderstanding
	err   error
}

// GetOrCompute returns the cached value or runs fn exactly once per key
// across concurrent callers. Errors are not cached. A caller whose ctx ends
// while waiting gets ctx.Err(); a compute already running still finishes
// and caches its result for the others.
func (s *Store) GetOrCompute(ctx context.Context, key string, fn ComputeFunc) (*types.PageUnderstanding, error) {
	if fn == nil {
		return nil, ErrNilCompute
	}
	if v, ok := s.Get(ctx, key); ok {
		return v, nil
	}

	release, err := s.locks.acquire(ctx, key)
	if err != nil {
		return nil, err
	}

	// Another caller may have filled the key while we waited
	if e, tier, ok := s.lookup(key); ok {
		release()
		s.metrics.RecordCacheHit(tier)
		return e.Value.Clone(), nil
	}

	done := make(chan computeResult, 1)
	detached := context.WithoutCancel(ctx)
	go func() {
		defer release()

		start := s.now()
		v, err := fn(detached)
		if err == nil && v == nil {
			err = ErrNilValue
		}
		s.metrics.RecordCompute(s.now().Sub(start), err)

		if err != nil {
			s.log.Warn("compute failed", zap.String("key", key), zap.Error(err))
			done <- computeResult{err: fmt.Errorf("compute %s: %w", key, err)}
			return
		}
		s.Put(detached, key, v)
		done <- computeResult{value: v.Clone()}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops one key from both tiers
func (s *Store) Invalidate(ctx context.Context, key string) bool {
	removed := s.mem.remove(key)
	if s.disk != nil && s.disk.remove(key) {
		removed = true
	}
	if removed {
		s.log.Info("invalidated entry", zap.String("key", key))
	}
	return removed
}

// InvalidateDomain drops every entry for a domain and returns how many
// memory and disk entries went
func (s *Store) InvalidateDomain(ctx context.Context, domain string) int {
	n := s.mem.removeIf(func(key string) bool {
		return fingerprint.DomainOf(key) == domain
	})
	if s.disk != nil {
		n += s.disk.removeDomain(domain)
	}
	s.log.Info("invalidated domain", zap.String("domain", domain), zap.Int("entries", n))
	return n
}

// InvalidatePattern drops every domain whose name matches a glob such as
// "*.example.com" and returns the matched domains
func (s *Store) InvalidatePattern(ctx context.Context, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid domain pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}

	seen := make(map[string]bool)
	for _, key := range s.mem.keys() {
		seen[fingerprint.DomainOf(key)] = true
	}
	if s.disk != nil {
		for _, d := range s.disk.domains() {
			seen[d] = true
		}
	}

	var matched []string
	for domain := range seen {
		if ok, _ := doublestar.Match(pattern, domain); ok {
			matched = append(matched, domain)
			s.InvalidateDomain(ctx, domain)
		}
	}
	return matched, nil
}

// Sweep drops idle per-key lock entries
func (s *Store) Sweep() int {
	return s.locks.Sweep()
}

// Stats reports cache occupancy
func (s *Store) Stats() Stats {
	st := Stats{
		MemoryEntries: s.mem.len(),
		MemoryMax:     s.mem.capacity,
		ActiveLocks:   s.locks.size(),
	}
	if s.disk != nil {
		st.DiskDomains, st.DiskEntries = s.disk.stats()
	}
	s.metrics.SetCacheGauges(st.MemoryEntries, st.ActiveLocks)
	return st
}
