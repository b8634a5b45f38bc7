// Package cache provides a generic, thread-safe LRU cache with per-entry
// time-to-live, used to shield slow stores from bursty reads.
//
// Entries become stale a fixed duration after they were stored. Staleness is
// evaluated lazily against an injected Clock when an entry is read, so the
// cache never starts goroutines or timers and tests can move time explicitly:
//
//	now := time.Now()
//	c := cache.NewTTL[string, int64](1024, 5*time.Minute,
//		cache.WithClock(func() time.Time { return now }))
//
//	c.Put("tenant-1:forms", 2)
//	v, fresh := c.Get("tenant-1:forms") // 2, true
//
//	now = now.Add(5 * time.Minute)
//	_, fresh = c.Get("tenant-1:forms") // 0, false
//
// Writers that change the underlying data should call Invalidate rather than
// updating entries in place.
//
// Capacity bounds memory: when full, the least recently used entry is evicted.
// Get, Put and Invalidate are O(1).
package cache
