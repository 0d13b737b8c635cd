package mq

import (
	"container/list"
	"sync"
)

const defaultDedupeSize = 50_000

// Deduper remembers processed message ids. When full, the oldest id is forgotten.
type Deduper struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List
	seen    map[string]*list.Element
}

func NewDeduper(maxSize int) *Deduper {
	if maxSize <= 0 {
		maxSize = defaultDedupeSize
	}
	return &Deduper{
		maxSize: maxSize,
		order:   list.New(),
		seen:    make(map[string]*list.Element),
	}
}

// SeenAndRecord reports whether id was already recorded, recording it if not.
func (d *Deduper) SeenAndRecord(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if d.order.Len() >= d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.seen, oldest.Value.(string))
	}
	d.seen[id] = d.order.PushBack(id)
	return false
}

// Unrecord forgets id so a failed message can be processed again.
func (d *Deduper) Unrecord(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if elem, ok := d.seen[id]; ok {
		d.order.Remove(elem)
		delete(d.seen, id)
	}
}

func (d *Deduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}
