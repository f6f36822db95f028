package paging

import (
	"strings"
	"sync"
)

// PlaceholderPrefix marks ids of records that exist only locally, pending
// server confirmation.
const PlaceholderPrefix = "temp-"

// IsPlaceholder reports whether id belongs to an unconfirmed local record.
func IsPlaceholder(id string) bool {
	return strings.HasPrefix(id, PlaceholderPrefix)
}

// Item is a record with a stable identity.
type Item interface {
	ItemID() string
}

// Confirmer is implemented by records that can carry unconfirmed parts, such
// as a feed item holding a pending reaction. Confirmed returns the record
// with those parts removed.
type Confirmer[T any] interface {
	Confirmed() T
}

// Collection is an ordered list of records with unique ids. It is safe for
// concurrent use; readers get copies.
type Collection[T Item] struct {
	mu    sync.RWMutex
	items []T
}

// NewCollection returns a collection holding items, de-duplicated.
func NewCollection[T Item](items ...T) *Collection[T] {
	c := &Collection[T]{}
	c.items = dedupe(items, nil)
	return c
}

// dedupe returns items without ids already in seen or repeated within
// items. The first occurrence wins. seen is updated.
func dedupe[T Item](items []T, seen map[string]struct{}) []T {
	if seen == nil {
		seen = make(map[string]struct{}, len(items))
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		id := it.ItemID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, it)
	}
	return out
}

func (c *Collection[T]) indexOf(id string) int {
	for i, it := range c.items {
		if it.ItemID() == id {
			return i
		}
	}
	return -1
}

// Replace discards the current contents and stores items.
func (c *Collection[T]) Replace(items []T) {
	fresh := dedupe(items, nil)
	c.mu.Lock()
	c.items = fresh
	c.mu.Unlock()
}

// Append adds items not already present, keeping their order, and returns
// how many were added.
func (c *Collection[T]) Append(items []T) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]struct{}, len(c.items)+len(items))
	for _, it := range c.items {
		seen[it.ItemID()] = struct{}{}
	}
	added := dedupe(items, seen)
	c.items = append(c.items, added...)
	return len(added)
}

// Insert puts item at index, clamped to the collection bounds. It returns
// false if a record with the same id is already present.
func (c *Collection[T]) Insert(index int, item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.indexOf(item.ItemID()) >= 0 {
		return false
	}
	if index < 0 {
		index = 0
	}
	if index > len(c.items) {
		index = len(c.items)
	}
	var zero T
	c.items = append(c.items, zero)
	copy(c.items[index+1:], c.items[index:])
	c.items[index] = item
	return true
}

// Prepend inserts item at the front.
func (c *Collection[T]) Prepend(item T) bool {
	return c.Insert(0, item)
}

// Upsert replaces the record with item's id in place, or appends item.
func (c *Collection[T]) Upsert(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(item.ItemID()); i >= 0 {
		c.items[i] = item
		return
	}
	c.items = append(c.items, item)
}

// Update applies fn to the record with id. It returns false if id is absent.
// fn must not change the record's id.
func (c *Collection[T]) Update(id string, fn func(T) T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	c.items[i] = fn(c.items[i])
	return true
}

// Swap replaces the record oldID with item at the same position. If item's
// id is already present elsewhere the old record is dropped instead, so the
// two never coexist. It returns false if oldID is absent.
func (c *Collection[T]) Swap(oldID string, item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(oldID)
	if i < 0 {
		return false
	}
	if newID := item.ItemID(); newID != oldID {
		if j := c.indexOf(newID); j >= 0 {
			c.items[j] = item
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	c.items[i] = item
	return true
}

// Remove deletes the record with id and returns it with its former index.
func (c *Collection[T]) Remove(id string) (item T, index int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return item, -1, false
	}
	item = c.items[i]
	c.items = append(c.items[:i], c.items[i+1:]...)
	return item, i, true
}

// Get returns the record with id.
func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i := c.indexOf(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// Contains reports whether id is present.
func (c *Collection[T]) Contains(id string) bool {
	_, ok := c.Get(id)
	return ok
}

// Items returns a copy of the records in order.
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of records.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
