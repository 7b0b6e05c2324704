/*
Package cache stores page understandings keyed by fingerprint.

# Overview

Two tiers back every lookup: a bounded in-memory LRU and a per-domain
directory of JSON files. Memory is checked first; a disk hit warms memory.
Entries older than MaxAge count as a miss and are evicted from both tiers.

GetOrCompute guarantees one computation per key across concurrent callers
using per-key locks. Waiters re-check the cache once they hold the lock.
The computation runs detached from the caller's cancellation, so a caller
that gives up does not waste the work for everyone else.

# Disk Layout

	{dir}/{domain}/{domain}_{hash}.json

Each domain keeps at most DomainCap files; the oldest by modification time
go first. Corrupt files are deleted and treated as a miss. Disk errors are
logged and never surface to callers.

# Locking

The LRU mutex and the lock-table mutex are never held together.
*/
package cache
