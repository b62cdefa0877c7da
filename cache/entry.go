package cache

import "time"

// entry is one cached value. All field access happens under the store
// mutex; hits counts reads of this entry since it was stored and feeds
// the least-used eviction scan.
type entry[V any] struct {
	value     V
	createdAt time.Time
	ttl       time.Duration
	hits      int64
}

// expiredAt reports whether the entry's age has reached its TTL.
func (e *entry[V]) expiredAt(now time.Time) bool {
	return now.Sub(e.createdAt) >= e.ttl
}
