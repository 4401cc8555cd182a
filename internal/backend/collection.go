package backend

import (
	"cmp"
	"slices"
	"sync"
)

// collection is an in-memory table of wire records keyed by id.
type collection[W any] struct {
	mu     sync.Mutex
	items  map[int64]W
	nextID int64

	getID func(W) int64
	setID func(W, int64) W
}

func newCollection[W any](getID func(W) int64, setID func(W, int64) W) *collection[W] {
	return &collection[W]{items: make(map[int64]W), getID: getID, setID: setID}
}

// list returns every record ordered by id.
func (c *collection[W]) list() []W {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]W, 0, len(c.items))
	for _, w := range c.items {
		out = append(out, w)
	}
	slices.SortFunc(out, func(a, b W) int { return cmp.Compare(c.getID(a), c.getID(b)) })
	return out
}

func (c *collection[W]) get(id int64) (W, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.items[id]
	return w, ok
}

// find returns the first record, in id order, for which match is true.
func (c *collection[W]) find(match func(W) bool) (W, bool) {
	for _, w := range c.list() {
		if match(w) {
			return w, true
		}
	}
	var zero W
	return zero, false
}

// insert stores w under a fresh id and returns the stored record.
func (c *collection[W]) insert(w W) W {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	w = c.setID(w, c.nextID)
	c.items[c.nextID] = w
	return w
}

// update applies fn to the record with id and stores the result.
func (c *collection[W]) update(id int64, fn func(W) W) (W, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.items[id]
	if !ok {
		return w, false
	}
	w = c.setID(fn(w), id)
	c.items[id] = w
	return w, true
}

func (c *collection[W]) remove(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	return true
}

func (c *collection[W]) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[int64]W)
	c.nextID = 0
}
