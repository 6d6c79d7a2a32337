// Package dedupe remembers which reviews were already applied so a repeated
// confirmation cannot push the same batch twice.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen review IDs.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Seen reports whether id was recorded, without recording it.
	Seen(ctx context.Context, id string) bool

	// Unrecord forgets id, e.g. when an apply was refused before any store call.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

type entry struct {
	id  string
	seq uint64
}

// inMemoryDeduper keeps up to maxSize IDs and evicts the oldest first.
// maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]uint64 // id -> insertion sequence
	ring    []entry           // insertion order, bounded mode only
	head    int
	seq     uint64
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 1024,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]uint64)
	if d.maxSize > 0 {
		d.ring = make([]entry, 0, d.maxSize)
	}

	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	d.seq++
	if d.maxSize > 0 {
		e := entry{id: id, seq: d.seq}
		if len(d.ring) < d.maxSize {
			d.ring = append(d.ring, e)
		} else {
			// Slot at head holds the oldest entry; skip it if it was unrecorded
			// or recorded again since.
			if old := d.ring[d.head]; d.seen[old.id] == old.seq {
				delete(d.seen, old.id)
				d.size.Add(-1)
			}
			d.ring[d.head] = e
			d.head = (d.head + 1) % d.maxSize
		}
	}

	d.seen[id] = d.seq
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Seen(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[id]
	return ok
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; !ok {
		return
	}
	delete(d.seen, id)
	d.size.Add(-1)
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
