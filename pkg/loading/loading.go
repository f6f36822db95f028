// Package loading tracks which logical operations are in flight.
//
// A Set is the only concurrency guard the screens use: an operation checks
// and inserts its tag before doing any work and removes it on every exit
// path. Tags double as spinner state for the terminal UI.
package loading

import (
	"context"
	"sort"
	"sync"
)

// Tag identifies one logical operation, e.g. {"fetch-page", "feed"} or
// {"react", "<item-id>:👍"}.
type Tag struct {
	Section string
	Target  string
}

// String renders the tag for logs and spinners.
func (t Tag) String() string {
	if t.Target == "" {
		return t.Section
	}
	return t.Section + ":" + t.Target
}

// Common sections.
const (
	SectionRefresh  = "refresh"
	SectionLoadMore = "load-more"
	SectionSubmit   = "submit"
	SectionReact    = "react"
	SectionFollow   = "follow"
	SectionMarkRead = "mark-read"
	SectionLike     = "like"
)

// Listener is called after a tag enters or leaves the set.
type Listener[K comparable] func(tag K, active bool)

// Set is a concurrency-safe set of in-flight operation tags.
type Set[K comparable] struct {
	mu       sync.Mutex
	active   map[K]struct{}
	listener Listener[K]
}

// NewSet creates an empty set.
func NewSet[K comparable]() *Set[K] {
	return &Set[K]{active: make(map[K]struct{})}
}

// OnChange registers a listener. Only one listener is kept.
func (s *Set[K]) OnChange(l Listener[K]) {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
}

// SetLoading inserts or removes tag.
func (s *Set[K]) SetLoading(tag K, on bool) {
	s.mu.Lock()
	_, present := s.active[tag]
	if on {
		s.active[tag] = struct{}{}
	} else {
		delete(s.active, tag)
	}
	l := s.listener
	s.mu.Unlock()

	if l != nil && present != on {
		l(tag, on)
	}
}

// TryAcquire inserts tag if it is not already present. The returned
// release func is safe to call more than once.
func (s *Set[K]) TryAcquire(tag K) (release func(), ok bool) {
	s.mu.Lock()
	if _, busy := s.active[tag]; busy {
		s.mu.Unlock()
		return func() {}, false
	}
	s.active[tag] = struct{}{}
	l := s.listener
	s.mu.Unlock()

	if l != nil {
		l(tag, true)
	}

	var once sync.Once
	return func() {
		once.Do(func() { s.SetLoading(tag, false) })
	}, true
}

// Do runs fn while holding tag. If tag is already held fn is not run and
// ran is false. The tag is released however fn exits, panics included.
func (s *Set[K]) Do(ctx context.Context, tag K, fn func(ctx context.Context) error) (ran bool, err error) {
	release, ok := s.TryAcquire(tag)
	if !ok {
		return false, nil
	}
	defer release()
	return true, fn(ctx)
}

// IsLoading reports whether tag is in flight.
func (s *Set[K]) IsLoading(tag K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[tag]
	return ok
}

// Len returns the number of in-flight tags.
func (s *Set[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Active returns the in-flight tags in no particular order.
func (s *Set[K]) Active() []K {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]K, 0, len(s.active))
	for k := range s.active {
		out = append(out, k)
	}
	return out
}

// Any reports whether any tag in section is in flight.
func Any(s *Set[Tag], section string) bool {
	for _, t := range s.Active() {
		if t.Section == section {
			return true
		}
	}
	return false
}

// Sorted returns the active tags ordered by their string form.
func Sorted(s *Set[Tag]) []Tag {
	tags := s.Active()
	sort.Slice(tags, func(i, j int) bool { return tags[i].String() < tags[j].String() })
	return tags
}
