// Package cache remembers recently seen keys, used to drop redelivered
// events.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Recent is a set of keys bounded by size and age. The oldest key is
// evicted when the set is full.
type Recent struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	items   map[string]*list.Element
	order   *list.List
}

type recentItem struct {
	key    string
	seenAt time.Time
}

func NewRecent(maxSize int, ttl time.Duration) *Recent {
	return &Recent{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Contains reports whether key was added and has not expired.
func (r *Recent) Contains(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	elem, ok := r.items[key]
	if !ok {
		return false
	}
	if r.expired(elem) {
		r.remove(elem)
		return false
	}
	return true
}

// Add records key as seen now.
func (r *Recent) Add(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if elem, ok := r.items[key]; ok {
		elem.Value.(*recentItem).seenAt = r.now()
		r.order.MoveToFront(elem)
		return
	}

	r.items[key] = r.order.PushFront(&recentItem{key: key, seenAt: r.now()})
	for r.order.Len() > r.maxSize {
		r.remove(r.order.Back())
	}
}

// CleanExpired removes expired keys and returns how many were removed.
func (r *Recent) CleanExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	// oldest keys sit at the back
	for elem := r.order.Back(); elem != nil && r.expired(elem); elem = r.order.Back() {
		r.remove(elem)
		removed++
	}
	return removed
}

// RunCleanup calls CleanExpired every interval until ctx is done.
func (r *Recent) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.CleanExpired()
		case <-ctx.Done():
			return
		}
	}
}

func (r *Recent) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *Recent) expired(elem *list.Element) bool {
	return r.now().Sub(elem.Value.(*recentItem).seenAt) > r.ttl
}

func (r *Recent) remove(elem *list.Element) {
	delete(r.items, elem.Value.(*recentItem).key)
	r.order.Remove(elem)
}
