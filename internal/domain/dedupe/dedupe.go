// Package dedupe coalesces duplicate work: a key stays recorded until the
// work it stands for is done and the key is released.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

// Deduper records in-flight keys.
type Deduper interface {
	// SeenAndRecord atomically reports whether key is already recorded and
	// records it if not.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord releases key so the same work can be requested again.
	Unrecord(ctx context.Context, key string)

	// Size returns the number of recorded keys.
	Size() int64
}

// inMemoryDeduper tracks keys in a map with insertion order kept in a list
// for eviction when bounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int
}

// NewInMemoryDeduper creates a deduper. It is unbounded unless WithMaxSize
// is given.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		seen:  make(map[string]*list.Element),
		order: list.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SeenAndRecord implements Deduper.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.seen, oldest.Value.(string))
	}
	d.seen[key] = d.order.PushBack(key)
	return false
}

// Unrecord implements Deduper.
func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.order.Remove(el)
		delete(d.seen, key)
	}
}

// Size implements Deduper.
func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
